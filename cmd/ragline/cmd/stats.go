package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/store"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context())
		},
	}
}

func runStats(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	chunks, err := a.coll.Count(ctx, store.ChunkFilter{})
	if err != nil {
		return err
	}
	lexDocs, err := a.lex.Count()
	if err != nil {
		return err
	}

	fmt.Println(styleHeader("Index statistics"))
	fmt.Printf("  data dir:       %s\n", cfg.Storage.DataDir)
	fmt.Printf("  chunks:         %d\n", chunks)
	fmt.Printf("  vectors:        %d\n", a.vec.Count())
	fmt.Printf("  lexical docs:   %d\n", lexDocs)
	fmt.Printf("  embedder:       %s (%d dims)\n", a.embedder.ModelName(), a.embedder.Dimensions())
	return nil
}
