package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, dir string) *DirWatcher {
	t.Helper()
	w := NewDirWatcher(Options{DebounceWindow: 50 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx, dir))
	t.Cleanup(func() { w.Stop() })
	return w
}

func waitBatch(t *testing.T, w *DirWatcher) []FileEvent {
	t.Helper()
	select {
	case batch := <-w.Batches():
		return batch
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watcher batch")
		return nil
	}
}

func TestDirWatcher_DetectsNewDocument(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("body"), 0o644))

	batch := waitBatch(t, w)
	require.NotEmpty(t, batch)
	assert.Equal(t, filepath.Join(dir, "new.txt"), batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDirWatcher_IgnoresNonDocuments(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "binary.bin"), []byte{0x1}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.md"), []byte("# doc"), 0o644))

	batch := waitBatch(t, w)
	for _, ev := range batch {
		assert.NotEqual(t, filepath.Join(dir, "binary.bin"), ev.Path)
	}
}

func TestDirWatcher_DetectsDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doomed.txt")
	require.NoError(t, os.WriteFile(path, []byte("body"), 0o644))

	w := startWatcher(t, dir)
	require.NoError(t, os.Remove(path))

	batch := waitBatch(t, w)
	require.NotEmpty(t, batch)
	assert.Equal(t, OpDelete, batch[0].Operation)
}

func TestDirWatcher_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
