package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragline/ragline/internal/embed"
	"github.com/ragline/ragline/internal/ingest"
	"github.com/ragline/ragline/internal/search"
	"github.com/ragline/ragline/internal/store"
)

// End-to-end tests over the real stores: documents go in through the
// ingester and come back out through the search engines.

type stack struct {
	coll     *store.SQLiteCollection
	vec      *store.VectorIndex
	lex      *store.LexicalIndex
	embedder embed.Embedder
	ingester *ingest.Ingester
	hybrid   *search.HybridEngine
	scan     *search.CollectionEngine
}

func newStack(t *testing.T) *stack {
	t.Helper()

	embedder := embed.NewStaticEmbedder()

	coll, err := store.NewSQLiteCollection(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = coll.Close() })

	vec, err := store.NewVectorIndex(store.DefaultVectorIndexConfig(embed.StaticDimensions))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vec.Close() })

	lex, err := store.NewLexicalIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lex.Close() })

	ingester, err := ingest.NewIngester(coll, vec, lex, embedder)
	require.NoError(t, err)

	hybrid, err := search.NewHybridEngine(lex, vec, coll, embedder)
	require.NoError(t, err)

	scan, err := search.NewCollectionEngine(coll, embedder)
	require.NoError(t, err)

	return &stack{
		coll:     coll,
		vec:      vec,
		lex:      lex,
		embedder: embedder,
		ingester: ingester,
		hybrid:   hybrid,
		scan:     scan,
	}
}

func publicMeta(org string) ingest.FileMeta {
	return ingest.FileMeta{OrganizationID: org, OwnerID: "owner", Public: true}
}

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestIntegration_IngestDirAndHybridSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := newStack(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeDoc(t, dir, "replication.md", "Database replication lag grows when the standby falls behind the primary WAL stream.")
	writeDoc(t, dir, "backups.txt", "Nightly backups are written to object storage and verified with a restore drill.")
	writeDoc(t, dir, "notes.go", "package notes // not a document, must be skipped")

	results, err := s.ingester.IngestDir(ctx, dir, publicMeta("acme"))
	require.NoError(t, err)
	require.Len(t, results, 2)

	tenant := store.TenantFilter{OrganizationID: "acme", UserID: "reader"}

	res, err := s.hybrid.Search(ctx, "database replication lag", search.Options{}, tenant)
	require.NoError(t, err)
	require.NotEmpty(t, res.SemanticResults)
	assert.Equal(t, "replication.md", res.SemanticResults[0].Metadata.Filename)
	assert.Empty(t, res.Stats.Error)
}

func TestIntegration_CollectionEngineFindsSameFile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := newStack(t)
	ctx := context.Background()

	_, err := s.ingester.IngestContent(ctx, "replication.md",
		"Database replication lag grows when the standby falls behind.", publicMeta("acme"))
	require.NoError(t, err)
	_, err = s.ingester.IngestContent(ctx, "backups.txt",
		"Nightly backups are verified with a restore drill.", publicMeta("acme"))
	require.NoError(t, err)

	tenant := store.TenantFilter{OrganizationID: "acme", UserID: "reader"}

	res, err := s.scan.Search(ctx, "database replication lag", search.Options{}, tenant)
	require.NoError(t, err)
	require.NotEmpty(t, res.SemanticResults)
	assert.Equal(t, "replication.md", res.SemanticResults[0].Metadata.Filename)
}

func TestIntegration_ReingestReplacesOldChunks(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := newStack(t)
	ctx := context.Background()

	first, err := s.ingester.IngestContent(ctx, "runbook.md",
		"Escalate paging storms to the on-call platform engineer.", publicMeta("acme"))
	require.NoError(t, err)

	second, err := s.ingester.IngestContent(ctx, "runbook.md",
		"Silence paging storms from the alert console before escalating.", publicMeta("acme"))
	require.NoError(t, err)
	assert.NotEqual(t, first.FileID, second.FileID)

	total, err := s.coll.Count(ctx, store.ChunkFilter{OrganizationID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, second.Chunks, total, "old chunks must be gone after re-ingest")

	tenant := store.TenantFilter{OrganizationID: "acme", UserID: "reader"}
	res, err := s.hybrid.Search(ctx, "paging storms", search.Options{}, tenant)
	require.NoError(t, err)
	for _, doc := range res.SemanticResults {
		assert.Equal(t, second.FileID, doc.Metadata.FileID)
	}
}

func TestIntegration_TenantIsolation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := newStack(t)
	ctx := context.Background()

	_, err := s.ingester.IngestContent(ctx, "acme.md",
		"Quarterly revenue forecast for the acme widget line.", publicMeta("acme"))
	require.NoError(t, err)
	_, err = s.ingester.IngestContent(ctx, "globex.md",
		"Quarterly revenue forecast for the globex widget line.", publicMeta("globex"))
	require.NoError(t, err)

	res, err := s.hybrid.Search(ctx, "quarterly revenue forecast", search.Options{},
		store.TenantFilter{OrganizationID: "acme", UserID: "reader"})
	require.NoError(t, err)
	require.NotEmpty(t, res.SemanticResults)
	for _, doc := range res.SemanticResults {
		assert.Equal(t, "acme.md", doc.Metadata.Filename)
	}
}

func TestIntegration_RemoveFileDropsFromSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := newStack(t)
	ctx := context.Background()

	_, err := s.ingester.IngestContent(ctx, "stale.md",
		"Deprecated migration checklist for the legacy cluster.", publicMeta("acme"))
	require.NoError(t, err)

	require.NoError(t, s.ingester.RemoveFile(ctx, "acme", "stale.md"))

	tenant := store.TenantFilter{OrganizationID: "acme", UserID: "reader"}
	res, err := s.hybrid.Search(ctx, "deprecated migration checklist", search.Options{}, tenant)
	require.NoError(t, err)
	assert.Empty(t, res.SemanticResults)
}
