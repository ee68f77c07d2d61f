package search

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ragline/ragline/internal/store"
)

// Result cache defaults. Entries expire after the TTL; the LRU bound keeps
// memory flat under diverse query loads.
const (
	DefaultResultCacheSize = 512
	DefaultResultCacheTTL  = 5 * time.Minute
)

// ResultCache memoizes complete search results keyed by the normalized
// query, options, and tenant credentials. Only successful results are
// stored, so transient backend failures never pin an empty answer.
type ResultCache struct {
	lru *expirable.LRU[string, *Result]
}

// NewResultCache creates a TTL-bounded LRU result cache. Non-positive
// size or ttl fall back to the defaults.
func NewResultCache(size int, ttl time.Duration) *ResultCache {
	if size <= 0 {
		size = DefaultResultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultResultCacheTTL
	}
	return &ResultCache{lru: expirable.NewLRU[string, *Result](size, nil, ttl)}
}

// Get returns a cached result copy with CacheHit set, or nil on miss.
// The copy shares the (read-only) result slices but owns its stats, so
// callers see their own timings.
func (rc *ResultCache) Get(key string, started time.Time) *Result {
	cached, ok := rc.lru.Get(key)
	if !ok {
		return nil
	}
	out := *cached
	out.Stats.CacheHit = true
	out.Stats.ProcessingTimeMS = time.Since(started).Milliseconds()
	return &out
}

// Put stores a result. Failed results (non-empty stats error) are dropped.
func (rc *ResultCache) Put(key string, r *Result) {
	if r == nil || r.Stats.Error != "" {
		return
	}
	rc.lru.Add(key, r)
}

// Len returns the number of live cache entries.
func (rc *ResultCache) Len() int {
	return rc.lru.Len()
}

// Purge drops all entries.
func (rc *ResultCache) Purge() {
	rc.lru.Purge()
}

// cacheKey derives a stable digest of everything that can change a search
// answer: the normalized query, every scoring option, and the tenant
// credentials. Two calls with the same key must produce the same result.
func cacheKey(engine, normQuery string, opts Options, tenant store.TenantFilter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\x00%s\x00", engine, normQuery)
	fmt.Fprintf(&b, "%g|%g|%d|%g|%d|%g|%s|%d|%d|%s|%d|%g|%g\x00",
		opts.SimilarityThreshold,
		opts.FilenameSimilarityThreshold,
		opts.MaxResults,
		opts.MinRelevanceScore,
		opts.MaxChunksPerFile,
		opts.FilenameMatchBoost,
		opts.Language,
		opts.BatchSize,
		opts.MaxCharsPerChunk,
		opts.Fusion,
		opts.RRFConstant,
		opts.SemanticWeight,
		opts.KeywordWeight,
	)
	fmt.Fprintf(&b, "%s|%s|%s|%s",
		tenant.OrganizationID, tenant.UserID, tenant.Role,
		strings.Join(tenant.AllowedFiles, ","))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
