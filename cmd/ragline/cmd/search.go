package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/search"
	"github.com/ragline/ragline/internal/store"
)

type searchCmdOptions struct {
	limit    int
	engine   string
	fusion   string
	format   string
	minScore float64
	noCache  bool

	org   string
	user  string
	role  string
	files []string
}

func newSearchCmd() *cobra.Command {
	var opts searchCmdOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed documents",
		Long: `Search runs hybrid retrieval over the indexed documents: full-text and
semantic results merged with rank fusion, scoped to the caller's
organization and access grants.

Examples:
  ragline search "incident response runbook" --org acme --user alice
  ragline search "квартальный отчет" --org acme --user alice --limit 5
  ragline search "database replication" --org acme --engine scan --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVar(&opts.engine, "engine", "hybrid", "Engine: hybrid (indexes) or scan (exact collection scan)")
	cmd.Flags().StringVar(&opts.fusion, "fusion", "", "Fusion method: rrf or weighted (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", -1, "Minimum relevance score (default from config)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "Bypass the result cache")
	cmd.Flags().StringVar(&opts.org, "org", "", "Organization scope (required)")
	cmd.Flags().StringVar(&opts.user, "user", "", "Requesting user ID")
	cmd.Flags().StringVar(&opts.role, "role", "", "Requesting user's role")
	cmd.Flags().StringSliceVar(&opts.files, "file", nil, "Restrict to explicitly allowed files (repeatable)")
	_ = cmd.MarkFlagRequired("org")

	return cmd
}

func runSearch(ctx context.Context, query string, opts searchCmdOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sOpts := searchOptions(cfg)
	if opts.limit > 0 {
		sOpts.MaxResults = opts.limit
	}
	if opts.fusion != "" {
		sOpts.Fusion = search.FusionMethod(opts.fusion)
	}
	if opts.minScore >= 0 {
		sOpts.MinRelevanceScore = opts.minScore
	}
	if opts.noCache {
		sOpts.UseCache = false
	}

	tenant := store.TenantFilter{
		OrganizationID: opts.org,
		UserID:         opts.user,
		Role:           opts.role,
		AllowedFiles:   opts.files,
	}

	var engine search.Engine
	switch opts.engine {
	case "hybrid":
		engine = a.hybrid
	case "scan":
		engine = a.scan
	default:
		return fmt.Errorf("unknown engine %q (want hybrid or scan)", opts.engine)
	}

	res, err := engine.Search(ctx, query, sOpts, tenant)
	if err != nil {
		return err
	}

	snap := a.metrics.Snapshot()
	slog.Debug("query metrics",
		"total", snap.TotalQueries,
		"zero_results", snap.ZeroResults,
		"avg_latency_ms", snap.AvgLatencyMS)

	if opts.format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(res)
	return nil
}

func printResult(res *search.Result) {
	if res.Stats.Error != "" {
		fmt.Println(styleDim("note: " + res.Stats.Error))
	}
	if len(res.SemanticResults) == 0 {
		fmt.Println("No results.")
		return
	}

	for i, doc := range res.SemanticResults {
		marker := ""
		if doc.Metadata.IsFilenameMatch {
			marker = " [filename match]"
		}
		fmt.Printf("%s %s%s\n",
			styleHeader(fmt.Sprintf("%d. %s #%d", i+1, doc.Metadata.Filename, doc.Metadata.ChunkIndex)),
			styleScore(fmt.Sprintf("(%.3f)", doc.Metadata.RelevanceScore)),
			marker)
		fmt.Printf("   %s\n", doc.Content)
	}

	if len(res.FilenameMatches) > 0 {
		fmt.Println(styleHeader("\nFilename matches:"))
		names := make([]string, 0, len(res.FilenameMatches))
		for name := range res.FilenameMatches {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fm := res.FilenameMatches[name]
			fmt.Printf("  %s (%d chunks)\n", name, fm.TotalChunks)
		}
	}

	fmt.Println(styleDim(fmt.Sprintf("\n%d checked, %d matched, %dms%s",
		res.Stats.TotalChecked, res.Stats.SemanticMatches, res.Stats.ProcessingTimeMS,
		cacheNote(res.Stats.CacheHit))))
}

func cacheNote(hit bool) string {
	if hit {
		return " (cached)"
	}
	return ""
}
