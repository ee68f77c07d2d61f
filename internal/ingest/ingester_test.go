package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragline/ragline/internal/embed"
	"github.com/ragline/ragline/internal/store"
)

type ingestFixture struct {
	coll *store.SQLiteCollection
	vec  *store.VectorIndex
	lex  *store.LexicalIndex
	in   *Ingester
}

func newIngestFixture(t *testing.T, opts ...IngesterOption) *ingestFixture {
	t.Helper()

	coll, err := store.NewSQLiteCollection(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { coll.Close() })

	vec, err := store.NewVectorIndex(store.DefaultVectorIndexConfig(embed.StaticDimensions))
	require.NoError(t, err)
	t.Cleanup(func() { vec.Close() })

	lex, err := store.NewLexicalIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { lex.Close() })

	in, err := NewIngester(coll, vec, lex, embed.NewStaticEmbedder(), opts...)
	require.NoError(t, err)

	return &ingestFixture{coll: coll, vec: vec, lex: lex, in: in}
}

func orgMeta() FileMeta {
	return FileMeta{OrganizationID: "org1", OwnerID: "alice"}
}

func TestIngester_IngestContent(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	res, err := f.in.IngestContent(ctx, "guide.md", "a short guide about vector search", orgMeta())
	require.NoError(t, err)

	assert.NotEmpty(t, res.FileID)
	assert.Equal(t, "guide.md", res.Filename)
	assert.Equal(t, 1, res.Chunks)

	count, err := f.coll.Count(ctx, store.ChunkFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, f.vec.Count())

	lexCount, err := f.lex.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), lexCount)

	page, err := f.coll.Get(ctx, store.ChunkFilter{}, 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Chunks, 1)
	assert.Equal(t, "org1", page.Chunks[0].OrganizationID)
	assert.Equal(t, "alice", page.Chunks[0].OwnerID)
	assert.NotNil(t, page.Embeddings[0])
}

func TestIngester_ReingestReplaces(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	first, err := f.in.IngestContent(ctx, "doc.txt", "original version of the document", orgMeta())
	require.NoError(t, err)

	second, err := f.in.IngestContent(ctx, "doc.txt", "rewritten version of the document", orgMeta())
	require.NoError(t, err)
	assert.NotEqual(t, first.FileID, second.FileID)

	count, err := f.coll.Count(ctx, store.ChunkFilter{})
	require.NoError(t, err)
	assert.Equal(t, second.Chunks, count)

	page, err := f.coll.Get(ctx, store.ChunkFilter{}, 0, 0)
	require.NoError(t, err)
	for _, c := range page.Chunks {
		assert.Equal(t, second.FileID, c.FileID)
		assert.Contains(t, c.Content, "rewritten")
	}
	assert.Equal(t, second.Chunks, f.vec.Count())
}

func TestIngester_EmptyContentNoOp(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	res, err := f.in.IngestContent(ctx, "empty.txt", "   ", orgMeta())
	require.NoError(t, err)
	assert.Zero(t, res.Chunks)
	assert.Empty(t, res.FileID)

	count, err := f.coll.Count(ctx, store.ChunkFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngester_RemoveUnknownFileNoOp(t *testing.T) {
	f := newIngestFixture(t)
	assert.NoError(t, f.in.RemoveFile(context.Background(), "org1", "ghost.txt"))
}

func TestIngester_RemoveFile(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	_, err := f.in.IngestContent(ctx, "doc.txt", "document to be deleted later", orgMeta())
	require.NoError(t, err)
	require.NoError(t, f.in.RemoveFile(ctx, "org1", "doc.txt"))

	count, err := f.coll.Count(ctx, store.ChunkFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, f.vec.Count())
}

func TestIngester_IngestDir(t *testing.T) {
	f := newIngestFixture(t)
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("first document body"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("second document body"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.go"), []byte("package main"), 0o644))

	results, err := f.in.IngestDir(context.Background(), dir, orgMeta())
	require.NoError(t, err)
	require.Len(t, results, 2, "only .txt and .md files are indexable")

	names := make(map[string]bool)
	for _, r := range results {
		names[r.Filename] = true
	}
	assert.True(t, names["a.txt"])
	assert.True(t, names["b.md"])

	// The lock file is cleaned up afterwards.
	_, statErr := os.Stat(filepath.Join(dir, lockFileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestIngester_IngestDirLocked(t *testing.T) {
	f := newIngestFixture(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("body"), 0o644))

	held := flock.New(filepath.Join(dir, lockFileName))
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer held.Unlock()

	_, err = f.in.IngestDir(context.Background(), dir, orgMeta())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "already being indexed"))
}

func TestIngester_IngestFileFromDisk(t *testing.T) {
	f := newIngestFixture(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("notes about search quality"), 0o644))

	res, err := f.in.IngestFile(context.Background(), path, orgMeta())
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", res.Filename)
	assert.Equal(t, 1, res.Chunks)
}
