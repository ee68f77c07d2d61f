package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ragline/ragline/internal/embed"
	"github.com/ragline/ragline/internal/store"
	"github.com/ragline/ragline/internal/telemetry"
	"github.com/ragline/ragline/internal/textnorm"
)

// Candidate oversampling factors. The lexical index applies tenant clauses
// at query time, so 2x covers fusion overlap; the vector index cannot
// filter during traversal, so its candidates are post-filtered and need
// more headroom.
const (
	lexicalOversample = 2
	vectorOversample  = 4
)

// HybridEngine runs full-text and k-NN retrieval in parallel and merges the
// ranked lists with a configurable fusion strategy. Either sub-path failing
// degrades the search to the surviving path rather than failing the call.
type HybridEngine struct {
	lexical    *store.LexicalIndex
	vector     *store.VectorIndex
	collection store.Collection
	embedder   embed.Embedder
	cache      *ResultCache
	metrics    *telemetry.QueryMetrics
	logger     *slog.Logger
}

// HybridEngineOption configures a HybridEngine.
type HybridEngineOption func(*HybridEngine)

// WithHybridResultCache attaches a TTL result cache.
func WithHybridResultCache(cache *ResultCache) HybridEngineOption {
	return func(e *HybridEngine) { e.cache = cache }
}

// WithHybridLogger sets the engine logger.
func WithHybridLogger(logger *slog.Logger) HybridEngineOption {
	return func(e *HybridEngine) { e.logger = logger }
}

// WithHybridQueryMetrics records every completed search into the given
// recorder.
func WithHybridQueryMetrics(m *telemetry.QueryMetrics) HybridEngineOption {
	return func(e *HybridEngine) { e.metrics = m }
}

// NewHybridEngine creates a hybrid search engine over the three stores.
func NewHybridEngine(
	lexical *store.LexicalIndex,
	vector *store.VectorIndex,
	collection store.Collection,
	embedder embed.Embedder,
	opts ...HybridEngineOption,
) (*HybridEngine, error) {
	if lexical == nil || vector == nil || collection == nil || embedder == nil {
		return nil, fmt.Errorf("hybrid engine: nil dependency")
	}
	e := &HybridEngine{
		lexical:    lexical,
		vector:     vector,
		collection: collection,
		embedder:   embedder,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search runs both retrieval paths concurrently, fuses their rankings, then
// applies the shared boost/filter/group/cap pipeline. Scores are normalized
// after fusion so MinRelevanceScore behaves the same under either strategy.
func (e *HybridEngine) Search(ctx context.Context, query string, opts Options, tenant store.TenantFilter) (*Result, error) {
	started := time.Now()
	opts = opts.withDefaults()

	lang := opts.Language
	if lang == "" {
		lang = textnorm.DetectLanguage(query)
	}

	normQuery := textnorm.NormalizeQuery(query, lang)
	if normQuery == "" {
		return emptyResult(ErrEmptyQueryMessage, started), nil
	}

	var key string
	if opts.UseCache && e.cache != nil {
		key = cacheKey("hybrid", normQuery, opts, tenant)
		if cached := e.cache.Get(key, started); cached != nil {
			e.logger.Debug("result cache hit", "query", normQuery)
			recordQuery(e.metrics, "hybrid", cached)
			return cached, nil
		}
	}

	var (
		semantic, keyword []Candidate
		semErr, kwErr     error
	)

	// Sub-path failures are held, not propagated, so one path going down
	// never cancels the other.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		semantic, semErr = e.semanticCandidates(gctx, normQuery, opts, tenant)
		return nil
	})
	g.Go(func() error {
		keyword, kwErr = e.keywordCandidates(gctx, query, normQuery, lang, opts, tenant)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if semErr != nil && kwErr != nil {
		msg := fmt.Sprintf("all search paths failed: semantic: %v; keyword: %v", semErr, kwErr)
		e.logger.Error("hybrid search failed", "error", msg)
		return emptyResult(msg, started), nil
	}

	var degraded []string
	if semErr != nil {
		e.logger.Warn("semantic path degraded", "error", semErr)
		degraded = append(degraded, fmt.Sprintf("semantic path unavailable: %v", semErr))
	}
	if kwErr != nil {
		e.logger.Warn("keyword path degraded", "error", kwErr)
		degraded = append(degraded, fmt.Sprintf("keyword path unavailable: %v", kwErr))
	}

	var merged []*fused
	switch opts.Fusion {
	case FusionWeighted:
		merged = fuseWeighted(semantic, keyword, opts.SemanticWeight, opts.KeywordWeight)
	default:
		merged = fuseRRF(semantic, keyword, opts.RRFConstant)
	}
	normalizeFusedScores(merged)

	var relevant, fnMatched []scoredChunk
	for _, f := range merged {
		score, isFn := applyFilenameBoost(f.Score, f.Chunk, query, opts)
		sc := scoredChunk{chunk: f.Chunk, score: score, fnMatch: isFn}
		if isFn {
			fnMatched = append(fnMatched, sc)
		}
		if score >= opts.MinRelevanceScore {
			relevant = append(relevant, sc)
		}
	}

	res := assembleResult(relevant, fnMatched, opts)
	res.Stats.TotalChecked = len(semantic) + len(keyword)
	res.Stats.ProcessingTimeMS = time.Since(started).Milliseconds()
	res.Stats.Error = strings.Join(degraded, "; ")

	// Degraded results carry a stats error, which Put refuses, so only
	// full-fidelity answers are memoized.
	if key != "" {
		e.cache.Put(key, res)
	}

	e.logger.Debug("hybrid search complete",
		"query", normQuery,
		"fusion", string(opts.Fusion),
		"semantic_candidates", len(semantic),
		"keyword_candidates", len(keyword),
		"returned", len(res.SemanticResults),
		"duration_ms", res.Stats.ProcessingTimeMS)

	recordQuery(e.metrics, "hybrid", res)
	return res, nil
}

// semanticCandidates embeds the query, runs k-NN with oversampling, then
// enriches and tenant-filters the hits. The HNSW graph has no metadata, so
// filtering happens after enrichment.
func (e *HybridEngine) semanticCandidates(ctx context.Context, normQuery string, opts Options, tenant store.TenantFilter) ([]Candidate, error) {
	queryVec, err := e.embedder.Embed(ctx, normQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := e.vector.Search(ctx, queryVec, opts.MaxResults*vectorOversample)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	scoreByID := make(map[string]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
		scoreByID[h.ID] = float64(h.Score)
	}

	chunks, err := e.collection.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("enrich candidates: %w", err)
	}

	candidates := make([]Candidate, 0, len(chunks))
	for _, chunk := range chunks {
		score := scoreByID[chunk.ID]
		if score < opts.SimilarityThreshold {
			continue
		}
		if !tenant.Allows(chunk) {
			continue
		}
		candidates = append(candidates, Candidate{Chunk: chunk, Score: score})
	}
	return candidates, nil
}

// keywordCandidates runs the tenant-scoped full-text query and enriches the
// hits from the collection.
func (e *HybridEngine) keywordCandidates(ctx context.Context, rawQuery, normQuery string, lang textnorm.Language, opts Options, tenant store.TenantFilter) ([]Candidate, error) {
	hits, err := e.lexical.Fulltext(ctx, rawQuery, normQuery, lang, tenant, opts.MaxResults*lexicalOversample)
	if err != nil {
		return nil, fmt.Errorf("fulltext search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	scoreByID := make(map[string]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
		scoreByID[h.ID] = h.Score
	}

	chunks, err := e.collection.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("enrich candidates: %w", err)
	}

	candidates := make([]Candidate, 0, len(chunks))
	for _, chunk := range chunks {
		candidates = append(candidates, Candidate{Chunk: chunk, Score: scoreByID[chunk.ID]})
	}
	return candidates, nil
}

// Close releases the embedder. The indexes and collection are owned by the
// caller, which typically shares them with the ingest pipeline.
func (e *HybridEngine) Close() error {
	return e.embedder.Close()
}
