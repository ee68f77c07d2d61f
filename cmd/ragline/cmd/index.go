package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/ingest"
	"github.com/ragline/ragline/internal/watcher"
)

type indexOptions struct {
	org    string
	owner  string
	public bool
	roles  []string
	users  []string
	watch  bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "Index a directory of documents",
		Long: `Index walks a directory for .txt and .md documents, chunks and embeds
them, and writes the chunks into the search stores.

Examples:
  ragline index ./docs --org acme --owner alice
  ragline index ./docs --org acme --owner alice --public
  ragline index ./docs --org acme --owner alice --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.org, "org", "", "Organization the documents belong to (required)")
	cmd.Flags().StringVar(&opts.owner, "owner", "", "Owner user ID (required)")
	cmd.Flags().BoolVar(&opts.public, "public", false, "Mark documents readable by the whole organization")
	cmd.Flags().StringSliceVar(&opts.roles, "role", nil, "Role granted read access (repeatable)")
	cmd.Flags().StringSliceVar(&opts.users, "user", nil, "User granted read access (repeatable)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Keep watching the directory and re-index changes")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func runIndex(ctx context.Context, dir string, opts indexOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	meta := ingest.FileMeta{
		OrganizationID: opts.org,
		OwnerID:        opts.owner,
		Public:         opts.public,
		AllowedRoles:   opts.roles,
		AllowedUsers:   opts.users,
	}

	results, err := a.ingester.IngestDir(ctx, dir, meta)
	if err != nil {
		return err
	}

	var chunks int
	for _, r := range results {
		chunks += r.Chunks
	}
	fmt.Printf("%s %d files, %d chunks\n", styleHeader("Indexed"), len(results), chunks)

	if !opts.watch {
		return nil
	}
	return watchAndReindex(ctx, a, dir, meta)
}

// watchAndReindex replays debounced filesystem events into the ingester
// until interrupted.
func watchAndReindex(ctx context.Context, a *app, dir string, meta ingest.FileMeta) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := watcher.NewDirWatcher(watcher.DefaultOptions(), slog.Default())
	if err := w.Start(ctx, dir); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Println(styleDim("Watching for changes, Ctrl-C to stop..."))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.Errors():
			slog.Warn("watcher error", "error", err)
		case batch, ok := <-w.Batches():
			if !ok {
				return nil
			}
			for _, ev := range batch {
				applyEvent(ctx, a, ev, meta)
			}
		}
	}
}

func applyEvent(ctx context.Context, a *app, ev watcher.FileEvent, meta ingest.FileMeta) {
	switch ev.Operation {
	case watcher.OpDelete:
		name := filepath.Base(ev.Path)
		if err := a.ingester.RemoveFile(ctx, meta.OrganizationID, name); err != nil {
			slog.Warn("failed to remove document", "path", ev.Path, "error", err)
			return
		}
		fmt.Printf("%s %s\n", styleDim("removed"), name)
	default:
		res, err := a.ingester.IngestFile(ctx, ev.Path, meta)
		if err != nil {
			slog.Warn("failed to re-index document", "path", ev.Path, "error", err)
			return
		}
		fmt.Printf("%s %s (%d chunks)\n", styleDim("indexed"), res.Filename, res.Chunks)
	}
}
