package integration

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragline/ragline/internal/search"
	"github.com/ragline/ragline/internal/store"
	"github.com/ragline/ragline/internal/watcher"
)

func TestIntegration_WatcherFeedsIngester(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := newStack(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dir := t.TempDir()

	w := watcher.NewDirWatcher(watcher.Options{
		DebounceWindow:  50 * time.Millisecond,
		EventBufferSize: 16,
	}, slog.Default())
	require.NoError(t, w.Start(ctx, dir))
	defer w.Stop()

	writeDoc(t, dir, "incidents.md", "Incident retro for the gateway outage on the payments path.")

	var batch []watcher.FileEvent
	select {
	case batch = <-w.Batches():
	case err := <-w.Errors():
		t.Fatalf("watcher error: %v", err)
	case <-ctx.Done():
		t.Fatal("timed out waiting for watcher batch")
	}
	require.NotEmpty(t, batch)
	assert.Equal(t, watcher.OpCreate, batch[0].Operation)

	for _, ev := range batch {
		if ev.Operation == watcher.OpDelete {
			continue
		}
		_, err := s.ingester.IngestFile(ctx, ev.Path, publicMeta("acme"))
		require.NoError(t, err)
	}

	tenant := store.TenantFilter{OrganizationID: "acme", UserID: "reader"}
	res, err := s.hybrid.Search(ctx, "gateway outage payments", search.Options{}, tenant)
	require.NoError(t, err)
	require.NotEmpty(t, res.SemanticResults)
	assert.Equal(t, "incidents.md", res.SemanticResults[0].Metadata.Filename)
}

func TestIntegration_WatcherDeleteRemovesDocument(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := newStack(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dir := t.TempDir()
	path := filepath.Join(dir, "doomed.md")
	writeDoc(t, dir, "doomed.md", "Decommission plan for the old reporting stack.")

	_, err := s.ingester.IngestFile(ctx, path, publicMeta("acme"))
	require.NoError(t, err)

	w := watcher.NewDirWatcher(watcher.Options{
		DebounceWindow:  50 * time.Millisecond,
		EventBufferSize: 16,
	}, slog.Default())
	require.NoError(t, w.Start(ctx, dir))
	defer w.Stop()

	require.NoError(t, os.Remove(path))

	var batch []watcher.FileEvent
	select {
	case batch = <-w.Batches():
	case <-ctx.Done():
		t.Fatal("timed out waiting for watcher batch")
	}
	require.NotEmpty(t, batch)
	require.Equal(t, watcher.OpDelete, batch[0].Operation)

	require.NoError(t, s.ingester.RemoveFile(ctx, "acme", filepath.Base(batch[0].Path)))

	tenant := store.TenantFilter{OrganizationID: "acme", UserID: "reader"}
	res, err := s.hybrid.Search(ctx, "decommission reporting stack", search.Options{}, tenant)
	require.NoError(t, err)
	assert.Empty(t, res.SemanticResults)
}
