package search

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragline/ragline/internal/store"
)

type hybridFixture struct {
	coll *store.SQLiteCollection
	vec  *store.VectorIndex
	lex  *store.LexicalIndex
	emb  *stubEmbedder
	eng  *HybridEngine
}

func newHybridFixture(t *testing.T, emb *stubEmbedder, opts ...HybridEngineOption) *hybridFixture {
	t.Helper()

	coll, err := store.NewSQLiteCollection(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { coll.Close() })

	vec, err := store.NewVectorIndex(store.DefaultVectorIndexConfig(3))
	require.NoError(t, err)
	t.Cleanup(func() { vec.Close() })

	lex, err := store.NewLexicalIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { lex.Close() })

	eng, err := NewHybridEngine(lex, vec, coll, emb, opts...)
	require.NoError(t, err)

	return &hybridFixture{coll: coll, vec: vec, lex: lex, emb: emb, eng: eng}
}

func (f *hybridFixture) index(t *testing.T, chunks []*store.Chunk, embs [][]float32) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.coll.Add(ctx, chunks, embs))
	require.NoError(t, f.lex.Index(ctx, chunks))

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	require.NoError(t, f.vec.Add(ctx, ids, embs))
}

func TestHybridEngine_OverlapOutranksSinglePath(t *testing.T) {
	emb := newStubEmbedder(map[string][]float32{"database replication": {1, 0, 0}})
	f := newHybridFixture(t, emb)

	near := float32(math.Sqrt(1 - 0.9025))
	f.index(t, []*store.Chunk{
		// Matches both paths: close embedding and matching content.
		testChunk("both", "f1", "replication.txt", "org1", "database replication lag explained", 0),
		// Semantic only: close embedding, unrelated text.
		testChunk("sem", "f2", "vectors.txt", "org1", "completely unrelated prose", 0),
		// Keyword only: matching text, orthogonal embedding.
		testChunk("kw", "f3", "notes.txt", "org1", "database replication checklist", 0),
	}, [][]float32{
		{1, 0, 0},
		{0.95, near, 0},
		{0, 1, 0},
	})

	res, err := f.eng.Search(context.Background(), "database replication", Options{}, store.TenantFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, res.SemanticResults)

	assert.Equal(t, "f1", res.SemanticResults[0].Metadata.FileID)
	assert.Empty(t, res.Stats.Error)
}

func TestHybridEngine_KeywordOnlyMatchFound(t *testing.T) {
	// Query embedding is orthogonal to every stored vector, so retrieval
	// relies entirely on the lexical path.
	emb := newStubEmbedder(map[string][]float32{"kubernetes ingress": {0, 0, 1}})
	f := newHybridFixture(t, emb)

	f.index(t, []*store.Chunk{
		testChunk("c1", "f1", "k8s.txt", "org1", "kubernetes ingress controllers compared", 0),
		testChunk("c2", "f2", "other.txt", "org1", "gardening tips for spring", 0),
	}, [][]float32{
		{1, 0, 0},
		{0, 1, 0},
	})

	res, err := f.eng.Search(context.Background(), "kubernetes ingress", Options{}, store.TenantFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, res.SemanticResults)
	assert.Equal(t, "f1", res.SemanticResults[0].Metadata.FileID)
}

func TestHybridEngine_DegradesWhenLexicalFails(t *testing.T) {
	emb := newStubEmbedder(map[string][]float32{"database replication": {1, 0, 0}})
	f := newHybridFixture(t, emb)

	f.index(t, []*store.Chunk{
		testChunk("c1", "f1", "db.txt", "org1", "database replication", 0),
	}, [][]float32{{1, 0, 0}})

	require.NoError(t, f.lex.Close())

	res, err := f.eng.Search(context.Background(), "database replication", Options{}, store.TenantFilter{})
	require.NoError(t, err)

	assert.NotEmpty(t, res.SemanticResults, "semantic path should still serve results")
	assert.Contains(t, res.Stats.Error, "keyword path unavailable")
}

func TestHybridEngine_AllPathsFailed(t *testing.T) {
	emb := newStubEmbedder(nil)
	f := newHybridFixture(t, emb)

	require.NoError(t, f.lex.Close())
	require.NoError(t, emb.Close())

	res, err := f.eng.Search(context.Background(), "database replication", Options{}, store.TenantFilter{})
	require.NoError(t, err)

	assert.Empty(t, res.SemanticResults)
	assert.Contains(t, res.Stats.Error, "all search paths failed")
}

func TestHybridEngine_TenantIsolation(t *testing.T) {
	emb := newStubEmbedder(map[string][]float32{"quarterly numbers": {1, 0, 0}})
	f := newHybridFixture(t, emb)

	f.index(t, []*store.Chunk{
		testChunk("mine", "f1", "q1.txt", "org1", "quarterly numbers for org one", 0),
		testChunk("theirs", "f2", "q2.txt", "org2", "quarterly numbers for org two", 0),
	}, [][]float32{
		{1, 0, 0},
		{1, 0, 0},
	})

	res, err := f.eng.Search(context.Background(), "quarterly numbers",
		Options{}, store.TenantFilter{OrganizationID: "org1"})
	require.NoError(t, err)

	require.NotEmpty(t, res.SemanticResults)
	for _, doc := range res.SemanticResults {
		assert.Equal(t, "org1", doc.Metadata.OrganizationID)
	}
}

func TestHybridEngine_WeightedFusion(t *testing.T) {
	emb := newStubEmbedder(map[string][]float32{"database replication": {1, 0, 0}})
	f := newHybridFixture(t, emb)

	f.index(t, []*store.Chunk{
		testChunk("c1", "f1", "db.txt", "org1", "database replication strategies", 0),
		testChunk("c2", "f2", "other.txt", "org1", "unrelated content here", 0),
	}, [][]float32{
		{1, 0, 0},
		{0, 1, 0},
	})

	res, err := f.eng.Search(context.Background(), "database replication",
		Options{Fusion: FusionWeighted}, store.TenantFilter{})
	require.NoError(t, err)

	require.NotEmpty(t, res.SemanticResults)
	assert.Equal(t, "f1", res.SemanticResults[0].Metadata.FileID)
	// Normalized fused scores stay in [0, 1].
	for _, doc := range res.SemanticResults {
		assert.LessOrEqual(t, doc.Metadata.RelevanceScore, 1.0)
	}
}

func TestHybridEngine_EmptyQuery(t *testing.T) {
	emb := newStubEmbedder(nil)
	f := newHybridFixture(t, emb)

	res, err := f.eng.Search(context.Background(), "   ", Options{}, store.TenantFilter{})
	require.NoError(t, err)
	assert.Equal(t, ErrEmptyQueryMessage, res.Stats.Error)
	assert.Empty(t, res.SemanticResults)
}

func TestHybridEngine_FilenameBoostApplies(t *testing.T) {
	emb := newStubEmbedder(map[string][]float32{"incident runbook": {1, 0, 0}})
	f := newHybridFixture(t, emb)

	near := float32(math.Sqrt(1 - 0.81))
	f.index(t, []*store.Chunk{
		testChunk("c1", "f1", "incident_runbook.md", "org1", "steps for handling incidents", 0),
		testChunk("c2", "f2", "misc.md", "org1", "steps for handling incidents", 0),
	}, [][]float32{
		{0.9, near, 0},
		{1, 0, 0},
	})

	res, err := f.eng.Search(context.Background(), "incident runbook", Options{}, store.TenantFilter{})
	require.NoError(t, err)

	require.NotEmpty(t, res.SemanticResults)
	assert.Equal(t, "incident_runbook.md", res.SemanticResults[0].Metadata.Filename)
	assert.True(t, res.SemanticResults[0].Metadata.IsFilenameMatch)
	assert.Contains(t, res.FilenameMatches, "incident_runbook.md")
}
