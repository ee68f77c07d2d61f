// Package embed provides embedding providers for chunk and query text.
// Providers are wrapped with a TTL-bounded cache so repeated content is
// never sent to the model twice within the cache window.
package embed

import (
	"context"
	"errors"
)

// ErrEmbedderClosed is returned by operations on a closed embedder.
var ErrEmbedderClosed = errors.New("embedder is closed")

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector dimension.
	Dimensions() int

	// ModelName returns the model identifier used for cache keys and
	// index compatibility checks.
	ModelName() string

	// Available reports whether the provider can serve requests.
	Available(ctx context.Context) bool

	// Close releases provider resources.
	Close() error
}
