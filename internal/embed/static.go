package embed

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"sync"
)

// StaticDimensions is the vector dimension of the hash-projection embedder.
// Matches the MiniLM family so static and model-backed indexes are
// interchangeable in tests.
const StaticDimensions = 384

// StaticModelName identifies the static embedder in cache keys and index
// compatibility metadata.
const StaticModelName = "static-hash-384"

// Feature weights for vector generation. Tokens carry most of the signal;
// character n-grams bridge morphology-heavy languages like Russian.
const (
	staticTokenWeight = 0.7
	staticNgramWeight = 0.3
	staticNgramSize   = 3
)

var staticTokenRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// StaticEmbedder generates deterministic hash-projection embeddings with no
// network or model dependency. Quality is reduced compared to a real model,
// but identical text always produces identical vectors, which makes it the
// offline fallback and the test vehicle.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

// NewStaticEmbedder creates a new static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed generates an embedding for a single text.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, ErrEmbedderClosed
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}

	vector := make([]float32, StaticDimensions)

	for _, token := range staticTokenRegex.FindAllString(strings.ToLower(trimmed), -1) {
		vector[hashToIndex(token)] += staticTokenWeight
	}

	runes := []rune(strings.ToLower(trimmed))
	for i := 0; i+staticNgramSize <= len(runes); i++ {
		vector[hashToIndex(string(runes[i:i+staticNgramSize]))] += staticNgramWeight
	}

	normalizeInPlace(vector)
	return vector, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int { return StaticDimensions }

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string { return StaticModelName }

// Available always returns true; the static embedder has no dependencies.
func (e *StaticEmbedder) Available(ctx context.Context) bool { return true }

// Close marks the embedder closed.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

var _ Embedder = (*StaticEmbedder)(nil)

func hashToIndex(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(StaticDimensions))
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
