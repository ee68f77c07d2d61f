package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/ragline/ragline/internal/config"
	"github.com/ragline/ragline/internal/embed"
	"github.com/ragline/ragline/internal/ingest"
	"github.com/ragline/ragline/internal/search"
	"github.com/ragline/ragline/internal/store"
	"github.com/ragline/ragline/internal/telemetry"
)

// Output styles, disabled when stdout is not a terminal.
var (
	styled = isatty.IsTerminal(os.Stdout.Fd())

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

func styleHeader(s string) string {
	if !styled {
		return s
	}
	return headerStyle.Render(s)
}

func styleScore(s string) string {
	if !styled {
		return s
	}
	return scoreStyle.Render(s)
}

func styleDim(s string) string {
	if !styled {
		return s
	}
	return dimStyle.Render(s)
}

func styleError(s string) string {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return "error: " + s
	}
	return errorStyle.Render("error: " + s)
}

// app bundles the wired stores and engines for one CLI invocation.
type app struct {
	cfg      *config.Config
	coll     *store.SQLiteCollection
	vec      *store.VectorIndex
	lex      *store.LexicalIndex
	embedder embed.Embedder
	hybrid   *search.HybridEngine
	scan     *search.CollectionEngine
	ingester *ingest.Ingester
	metrics  *telemetry.QueryMetrics
}

// openApp builds the full stack from configuration. The vector index is
// loaded from its snapshot when one exists and saved back on Close.
func openApp(cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	embedder, err := embed.New(embed.FactoryConfig{
		Provider: embed.Provider(cfg.Embeddings.Provider),
		OpenAI: embed.OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  cfg.Embeddings.Model,
		},
		CacheSize:  cfg.Embeddings.CacheSize,
		CacheTTL:   cfg.Embeddings.CacheTTL.Std(),
		NoFallback: cfg.Embeddings.NoFallback,
	})
	if err != nil {
		return nil, err
	}

	coll, err := store.NewSQLiteCollection(cfg.Storage.CollectionPath())
	if err != nil {
		embedder.Close()
		return nil, err
	}

	vec, err := store.NewVectorIndex(store.DefaultVectorIndexConfig(embedder.Dimensions()))
	if err == nil {
		if _, statErr := os.Stat(cfg.Storage.VectorIndexPath()); statErr == nil {
			err = vec.Load(cfg.Storage.VectorIndexPath())
		}
	}
	if err != nil {
		coll.Close()
		embedder.Close()
		return nil, err
	}

	lex, err := store.NewLexicalIndex(cfg.Storage.LexicalIndexPath())
	if err != nil {
		vec.Close()
		coll.Close()
		embedder.Close()
		return nil, err
	}

	cache := search.NewResultCache(cfg.Cache.ResultCacheSize, cfg.Cache.ResultCacheTTL.Std())
	metrics := telemetry.NewQueryMetrics(100)

	hybrid, err := search.NewHybridEngine(lex, vec, coll, embedder,
		search.WithHybridResultCache(cache),
		search.WithHybridQueryMetrics(metrics))
	if err != nil {
		return nil, err
	}
	scan, err := search.NewCollectionEngine(coll, embedder,
		search.WithResultCache(cache),
		search.WithQueryMetrics(metrics))
	if err != nil {
		return nil, err
	}
	ingester, err := ingest.NewIngester(coll, vec, lex, embedder,
		ingest.WithChunker(ingest.NewChunkerWithOptions(ingest.ChunkerOptions{
			MaxChunkTokens: cfg.Ingest.MaxChunkTokens,
			OverlapTokens:  cfg.Ingest.OverlapTokens,
		})))
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		coll:     coll,
		vec:      vec,
		lex:      lex,
		embedder: embedder,
		hybrid:   hybrid,
		scan:     scan,
		ingester: ingester,
		metrics:  metrics,
	}, nil
}

// Close persists the vector index and releases everything.
func (a *app) Close() error {
	var firstErr error
	if err := a.vec.Save(a.cfg.Storage.VectorIndexPath()); err != nil {
		firstErr = fmt.Errorf("save vector index: %w", err)
	}
	for _, c := range []func() error{a.lex.Close, a.vec.Close, a.coll.Close, a.embedder.Close} {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// searchOptions converts configuration into per-call search options.
func searchOptions(cfg *config.Config) search.Options {
	return search.Options{
		SimilarityThreshold:         cfg.Search.SimilarityThreshold,
		FilenameSimilarityThreshold: cfg.Search.FilenameSimilarityThreshold,
		MaxResults:                  cfg.Search.MaxResults,
		MinRelevanceScore:           cfg.Search.MinRelevanceScore,
		MaxChunksPerFile:            cfg.Search.MaxChunksPerFile,
		FilenameMatchBoost:          cfg.Search.FilenameMatchBoost,
		UseCache:                    cfg.Search.UseCache,
		BatchSize:                   cfg.Search.BatchSize,
		MaxCharsPerChunk:            cfg.Search.MaxCharsPerChunk,
		Fusion:                      search.FusionMethod(cfg.Search.FusionMethod),
		RRFConstant:                 cfg.Search.RRFConstant,
		SemanticWeight:              cfg.Search.SemanticWeight,
		KeywordWeight:               cfg.Search.KeywordWeight,
	}
}
