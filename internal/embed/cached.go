package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultCacheSize bounds the number of cached embeddings.
	// At 384 dimensions * 4 bytes * 1000 entries this is ~1.5MB.
	DefaultCacheSize = 1000

	// DefaultCacheTTL expires entries that have not been refreshed.
	DefaultCacheTTL = time.Hour

	// subBatchSize bounds peak memory and provider payload size when
	// embedding large batches.
	subBatchSize = 32
)

// CachedEmbedder wraps an Embedder with an expiring LRU cache keyed by
// content hash. The cache is best-effort: losing an entry only costs a
// recompute, never correctness. Safe for concurrent use.
type CachedEmbedder struct {
	inner Embedder
	cache *expirable.LRU[string, []float32]
}

// NewCachedEmbedder creates a cached embedder with the given capacity and TTL.
// Non-positive capacity or TTL fall back to defaults.
func NewCachedEmbedder(inner Embedder, size int, ttl time.Duration) *CachedEmbedder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedEmbedder{
		inner: inner,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

// cacheKey hashes text together with the model name so a model switch
// never serves stale vectors.
func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + c.inner.ModelName()))
	return hex.EncodeToString(sum[:])
}

// Embed returns a cached embedding when present, otherwise computes and
// caches the result.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch resolves cache hits first, embeds only the miss subset in
// fixed-size sub-batches, and merges results back into original order.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	missIndices := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			results[i] = vec
		} else {
			missIndices = append(missIndices, i)
			missTexts = append(missTexts, text)
		}
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	for start := 0; start < len(missTexts); start += subBatchSize {
		end := start + subBatchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}

		vecs, err := c.inner.EmbedBatch(ctx, missTexts[start:end])
		if err != nil {
			return nil, err
		}

		for j, vec := range vecs {
			idx := missIndices[start+j]
			results[idx] = vec
			c.cache.Add(c.cacheKey(texts[idx]), vec)
		}
	}

	return results, nil
}

// Len returns the number of cached embeddings.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

// Dimensions returns the embedding dimension (passthrough to inner).
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// ModelName returns the model identifier (passthrough to inner).
func (c *CachedEmbedder) ModelName() string {
	return c.inner.ModelName()
}

// Available checks if the inner provider is ready.
func (c *CachedEmbedder) Available(ctx context.Context) bool {
	return c.inner.Available(ctx)
}

// Close releases the inner embedder.
func (c *CachedEmbedder) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}

var _ Embedder = (*CachedEmbedder)(nil)
