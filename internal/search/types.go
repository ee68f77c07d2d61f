// Package search implements hybrid retrieval over the chunk stores: a
// collection-scan engine with batched cosine scoring and filename-match
// boosting, a lexical+semantic engine over the bleve and HNSW indexes, and
// the rank-fusion strategies shared between them.
package search

import (
	"context"
	"time"

	"github.com/ragline/ragline/internal/store"
	"github.com/ragline/ragline/internal/textnorm"
)

// ErrEmptyQueryMessage is the stats-level diagnostic for queries that
// normalize to nothing. A soft condition: the call still succeeds with an
// empty, well-formed result.
const ErrEmptyQueryMessage = "Empty query after preprocessing"

// Engine is the common contract of both search implementations. A search
// never raises for runtime backend failures; those surface in Stats.Error
// with an empty result set. Only programmer errors (nil dependencies,
// unknown configuration) are returned as hard errors by constructors.
type Engine interface {
	Search(ctx context.Context, query string, opts Options, tenant store.TenantFilter) (*Result, error)
	Close() error
}

// FusionMethod selects the rank-fusion strategy for the hybrid path.
type FusionMethod string

const (
	FusionRRF      FusionMethod = "rrf"
	FusionWeighted FusionMethod = "weighted"
)

// Options configures a single search call. Zero values fall back to the
// defaults below; an Options value is ephemeral and never persisted.
type Options struct {
	// SimilarityThreshold is the floor on raw semantic similarity for
	// k-NN candidates in the hybrid path.
	SimilarityThreshold float64

	// FilenameSimilarityThreshold is the minimum filename similarity
	// before the filename boost applies.
	FilenameSimilarityThreshold float64

	// MaxResults caps the total number of returned chunks.
	MaxResults int

	// MinRelevanceScore filters chunks whose (boosted) score falls below it.
	MinRelevanceScore float64

	// MaxChunksPerFile caps chunks per file. 0 means unbounded.
	MaxChunksPerFile int

	// FilenameMatchBoost multiplies the semantic score of chunks whose
	// filename closely matches the query. Clamped so a boosted score
	// never exceeds 1.0 and never decreases.
	FilenameMatchBoost float64

	// Language selects the stopword list and analyzer weighting.
	// Empty means detect from the query.
	Language textnorm.Language

	// UseCache enables the TTL result cache for this call.
	UseCache bool

	// BatchSize bounds collection pages loaded per iteration.
	BatchSize int

	// MaxCharsPerChunk truncates returned content at a whitespace
	// boundary. 0 means no truncation.
	MaxCharsPerChunk int

	// Fusion selects the rank-fusion strategy (hybrid path only).
	Fusion FusionMethod

	// RRFConstant is the RRF smoothing constant k.
	RRFConstant int

	// SemanticWeight and KeywordWeight configure weighted fusion.
	// No particular split is load-tested as "correct"; they are simply
	// configurable.
	SemanticWeight float64
	KeywordWeight  float64
}

// Default option values.
const (
	DefaultMaxResults                  = 10
	DefaultFilenameSimilarityThreshold = 0.6
	DefaultFilenameMatchBoost          = 1.5
	DefaultBatchSize                   = 1000
	DefaultRRFConstant                 = 60
	DefaultSemanticWeight              = 0.6
	DefaultKeywordWeight               = 0.4
)

// withDefaults fills unset options.
func (o Options) withDefaults() Options {
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.FilenameSimilarityThreshold <= 0 {
		o.FilenameSimilarityThreshold = DefaultFilenameSimilarityThreshold
	}
	if o.FilenameMatchBoost < 1 {
		o.FilenameMatchBoost = DefaultFilenameMatchBoost
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Fusion == "" {
		o.Fusion = FusionRRF
	}
	if o.RRFConstant <= 0 {
		o.RRFConstant = DefaultRRFConstant
	}
	if o.SemanticWeight <= 0 && o.KeywordWeight <= 0 {
		o.SemanticWeight = DefaultSemanticWeight
		o.KeywordWeight = DefaultKeywordWeight
	}
	return o
}

// Metadata carries the typed chunk metadata returned with each document.
type Metadata struct {
	Filename        string  `json:"filename"`
	FileID          string  `json:"file_id"`
	OrganizationID  string  `json:"organization_id"`
	ChunkIndex      int     `json:"chunk_index"`
	RelevanceScore  float64 `json:"relevance_score"`
	IsFilenameMatch bool    `json:"is_filename_match"`
}

// Document is a single ranked result.
type Document struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// FileMatch groups the chunks of one file whose filename met the
// similarity threshold.
type FileMatch struct {
	Chunks      []Document `json:"chunks"`
	TotalChunks int        `json:"total_chunks"`
}

// Stats carries per-call diagnostics. Error is empty on success; a
// non-empty Error accompanies an empty (but well-formed) result set.
type Stats struct {
	TotalChecked     int    `json:"total_checked"`
	FilenameMatches  int    `json:"filename_matches"`
	SemanticMatches  int    `json:"semantic_matches"`
	ProcessingTimeMS int64  `json:"processing_time_ms"`
	CacheHit         bool   `json:"cache_hit"`
	Error            string `json:"error,omitempty"`
}

// Result is the complete output of one search call.
type Result struct {
	SemanticResults []Document            `json:"semantic_results"`
	FilenameMatches map[string]*FileMatch `json:"filename_matches"`
	Stats           Stats                 `json:"stats"`
}

// emptyResult returns a well-formed empty result, optionally with a
// stats-level error message.
func emptyResult(errMsg string, started time.Time) *Result {
	return &Result{
		SemanticResults: []Document{},
		FilenameMatches: map[string]*FileMatch{},
		Stats: Stats{
			ProcessingTimeMS: time.Since(started).Milliseconds(),
			Error:            errMsg,
		},
	}
}
