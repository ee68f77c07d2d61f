package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ragline/ragline/internal/embed"
	"github.com/ragline/ragline/internal/store"
	"github.com/ragline/ragline/internal/telemetry"
	"github.com/ragline/ragline/internal/textnorm"
)

// Guard against zero-magnitude vectors in cosine computation.
const cosineEpsilon = 1e-10

// Floor for the adaptive collection page size.
const minScanBatch = 100

// CollectionEngine scores every stored chunk against the query embedding
// with batched cosine similarity. It trades throughput for exactness: no
// index recall loss, tenant filtering applied inline, and adaptive paging
// to keep memory bounded on large collections.
type CollectionEngine struct {
	collection store.Collection
	embedder   embed.Embedder
	cache      *ResultCache
	metrics    *telemetry.QueryMetrics
	logger     *slog.Logger
}

// CollectionEngineOption configures a CollectionEngine.
type CollectionEngineOption func(*CollectionEngine)

// WithResultCache attaches a TTL result cache, consulted when a call sets
// Options.UseCache.
func WithResultCache(cache *ResultCache) CollectionEngineOption {
	return func(e *CollectionEngine) { e.cache = cache }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) CollectionEngineOption {
	return func(e *CollectionEngine) { e.logger = logger }
}

// WithQueryMetrics records every completed search into the given recorder.
func WithQueryMetrics(m *telemetry.QueryMetrics) CollectionEngineOption {
	return func(e *CollectionEngine) { e.metrics = m }
}

// NewCollectionEngine creates a collection-scan search engine.
func NewCollectionEngine(collection store.Collection, embedder embed.Embedder, opts ...CollectionEngineOption) (*CollectionEngine, error) {
	if collection == nil {
		return nil, fmt.Errorf("collection engine: nil collection")
	}
	if embedder == nil {
		return nil, fmt.Errorf("collection engine: nil embedder")
	}
	e := &CollectionEngine{
		collection: collection,
		embedder:   embedder,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search runs the full scoring pipeline: normalize, embed, scan the tenant's
// chunks in pages, score with batched cosine similarity, boost filename
// matches, filter, group by file, cap, and truncate. Backend failures come
// back as an empty result with Stats.Error set; the error return is reserved
// for context cancellation.
func (e *CollectionEngine) Search(ctx context.Context, query string, opts Options, tenant store.TenantFilter) (*Result, error) {
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
		key = cacheKey("collection", normQuery, opts, tenant)
		if cached := e.cache.Get(key, started); cached != nil {
			e.logger.Debug("result cache hit", "query", normQuery)
			recordQuery(e.metrics, "collection", cached)
			return cached, nil
		}
	}

	queryVec, err := e.embedder.Embed(ctx, normQuery)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Warn("query embedding failed", "error", err)
		return emptyResult(fmt.Sprintf("embedding failed: %v", err), started), nil
	}

	filter := store.ChunkFilter{OrganizationID: tenant.OrganizationID}
	total, err := e.collection.Count(ctx, filter)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return emptyResult(fmt.Sprintf("collection unavailable: %v", err), started), nil
	}
	if total == 0 {
		res := emptyResult("", started)
		if key != "" {
			e.cache.Put(key, res)
		}
		return res, nil
	}

	batchSize := adaptiveBatchSize(opts.BatchSize, total)

	var (
		relevant  []scoredChunk
		fnMatched []scoredChunk
		checked   int
		skipped   int
	)

	for offset := 0; offset < total; offset += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := e.collection.Get(ctx, filter, batchSize, offset)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return emptyResult(fmt.Sprintf("collection scan failed: %v", err), started), nil
		}
		if len(page.Chunks) == 0 {
			break
		}

		scores := batchCosineSimilarity(queryVec, page.Embeddings)

		for i, chunk := range page.Chunks {
			if page.Embeddings[i] == nil {
				skipped++
				continue
			}
			if !tenant.Allows(chunk) {
				continue
			}
			checked++

			score, isFn := applyFilenameBoost(scores[i], chunk, query, opts)
			sc := scoredChunk{chunk: chunk, score: score, fnMatch: isFn}
			if isFn {
				fnMatched = append(fnMatched, sc)
			}
			if score >= opts.MinRelevanceScore {
				relevant = append(relevant, sc)
			}
		}
	}

	if skipped > 0 {
		e.logger.Warn("chunks without embeddings skipped", "count", skipped)
	}

	res := assembleResult(relevant, fnMatched, opts)
	res.Stats.TotalChecked = checked
	res.Stats.ProcessingTimeMS = time.Since(started).Milliseconds()

	if key != "" {
		e.cache.Put(key, res)
	}

	e.logger.Debug("collection search complete",
		"query", normQuery,
		"checked", checked,
		"matches", res.Stats.SemanticMatches,
		"returned", len(res.SemanticResults),
		"duration_ms", res.Stats.ProcessingTimeMS)

	recordQuery(e.metrics, "collection", res)
	return res, nil
}

// recordQuery reports one finished search to the metrics recorder, when one
// is attached.
func recordQuery(m *telemetry.QueryMetrics, engine string, res *Result) {
	if m == nil || res == nil {
		return
	}
	m.Record(telemetry.QueryEvent{
		Engine:      engine,
		ResultCount: len(res.SemanticResults),
		CacheHit:    res.Stats.CacheHit,
		Degraded:    res.Stats.Error != "",
		Latency:     time.Duration(res.Stats.ProcessingTimeMS) * time.Millisecond,
	})
}

// Close releases the embedder. The collection is owned by the caller.
func (e *CollectionEngine) Close() error {
	return e.embedder.Close()
}

// adaptiveBatchSize bounds page size by the configured maximum while
// scaling with collection size, so small collections load in one page and
// large ones stay within memory limits.
func adaptiveBatchSize(configured, total int) int {
	adaptive := total / 10
	if adaptive < minScanBatch {
		adaptive = minScanBatch
	}
	if adaptive > configured {
		adaptive = configured
	}
	return adaptive
}

// batchCosineSimilarity computes cosine similarity between the query and
// every vector in one pass. The query norm is hoisted out of the loop; nil
// or zero-magnitude vectors score 0.
func batchCosineSimilarity(query []float32, vectors [][]float32) []float64 {
	scores := make([]float64, len(vectors))

	var qNorm float64
	for _, v := range query {
		qNorm += float64(v) * float64(v)
	}
	qNorm = math.Sqrt(qNorm)
	if qNorm < cosineEpsilon {
		return scores
	}

	for i, vec := range vectors {
		if vec == nil || len(vec) != len(query) {
			continue
		}
		var dot, norm float64
		for j, v := range vec {
			dot += float64(query[j]) * float64(v)
			norm += float64(v) * float64(v)
		}
		norm = math.Sqrt(norm)
		if norm < cosineEpsilon {
			continue
		}
		scores[i] = dot / (qNorm * norm)
	}
	return scores
}
