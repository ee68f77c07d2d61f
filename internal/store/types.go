// Package store provides the persistence layer for indexed chunks: a
// SQLite-backed collection (content + embeddings + metadata), an HNSW
// vector index for k-NN search, and a bleve lexical index for multilingual
// full-text search.
package store

import (
	"context"
	"fmt"
	"time"
)

// Chunk is the atomic unit of indexing and retrieval: a bounded span of a
// source document's text with its tenant metadata. ChunkIndex is unique
// within FileID; every chunk belongs to exactly one file and organization.
type Chunk struct {
	ID             string
	FileID         string
	Filename       string
	OrganizationID string
	OwnerID        string
	ChunkIndex     int
	Content        string
	TokenCount     int
	Public         bool
	AllowedRoles   []string
	AllowedUsers   []string
	CreatedAt      time.Time
	ModifiedAt     time.Time
}

// ChunkFilter selects chunks by metadata. Zero-value fields are ignored;
// set fields combine with AND.
type ChunkFilter struct {
	OrganizationID string
	FileID         string
	Filename       string
}

// CollectionPage is one page of a filtered collection scan. Chunks and
// Embeddings are parallel; an entry with a nil embedding had none stored.
type CollectionPage struct {
	Chunks     []*Chunk
	Embeddings [][]float32
}

// Collection is the persistent chunk store. It owns all persisted
// chunk+embedding state; search engines only hold transient copies.
type Collection interface {
	// Add stores chunks with their embeddings. Existing IDs are replaced.
	Add(ctx context.Context, chunks []*Chunk, embeddings [][]float32) error

	// Get returns a metadata-filtered page of chunks with embeddings,
	// for bounded-memory iteration over large collections.
	Get(ctx context.Context, filter ChunkFilter, limit, offset int) (*CollectionPage, error)

	// GetByIDs returns chunks for the given IDs, preserving input order.
	// Unknown IDs are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]*Chunk, error)

	// Delete removes all chunks matching the filter.
	Delete(ctx context.Context, filter ChunkFilter) error

	// Count returns the number of chunks matching the filter.
	Count(ctx context.Context, filter ChunkFilter) (int, error)

	// Close releases the underlying database.
	Close() error
}

// TenantFilter restricts results to what a caller may see. Credentials are
// resolved by an external authorization layer; the store only applies the
// pre-resolved constraints. OrganizationID is a hard constraint; the
// remaining fields grant access as a union (own + shared + public +
// explicitly allowed).
type TenantFilter struct {
	OrganizationID string
	UserID         string
	Role           string
	AllowedFiles   []string
}

// Empty reports whether the filter imposes no constraints.
func (t TenantFilter) Empty() bool {
	return t.OrganizationID == "" && t.UserID == "" && t.Role == "" && len(t.AllowedFiles) == 0
}

// Allows reports whether a chunk is visible under this filter. Used to
// post-filter k-NN candidates, mirroring the lexical index's query-time
// tenant clauses.
func (t TenantFilter) Allows(c *Chunk) bool {
	if t.OrganizationID != "" && c.OrganizationID != t.OrganizationID {
		return false
	}

	// No soft constraints configured: organization scoping is the only gate.
	if t.UserID == "" && t.Role == "" && len(t.AllowedFiles) == 0 {
		return true
	}

	if c.Public {
		return true
	}
	if t.UserID != "" && c.OwnerID == t.UserID {
		return true
	}
	if t.Role != "" && contains(c.AllowedRoles, t.Role) {
		return true
	}
	if t.UserID != "" && contains(c.AllowedUsers, t.UserID) {
		return true
	}
	for _, f := range t.AllowedFiles {
		if f == c.FileID || f == c.Filename {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// VectorResult is a single k-NN search result.
type VectorResult struct {
	ID       string  // Chunk ID
	Distance float32 // Cosine distance, lower is more similar
	Score    float32 // Normalized similarity (0-1)
}

// LexicalResult is a single full-text search result.
type LexicalResult struct {
	ID    string  // Chunk ID
	Score float64 // Backend relevance score
}

// VectorIndexConfig configures the HNSW index. M and the ef knobs trade
// build time and query latency for recall.
type VectorIndexConfig struct {
	Dimensions int
	M          int // Max connections per layer
	EfSearch   int // Query-time search width
}

// DefaultVectorIndexConfig returns sensible HNSW defaults.
func DefaultVectorIndexConfig(dimensions int) VectorIndexConfig {
	return VectorIndexConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   64,
	}
}

// SearchError wraps a backend failure with enough context for the engine
// to surface it as a diagnostic rather than a panic. Engines convert it
// into a stats-level error field; callers always get a well-formed result.
type SearchError struct {
	Backend string // "collection", "vector", "lexical"
	Op      string
	Err     error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// NewSearchError wraps err with backend and operation context.
func NewSearchError(backend, op string, err error) *SearchError {
	return &SearchError{Backend: backend, Op: op, Err: err}
}
