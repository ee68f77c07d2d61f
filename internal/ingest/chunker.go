// Package ingest turns source documents into indexed chunks: word-bounded
// overlapping splitting, batch embedding, and writes into the collection,
// vector, and lexical stores.
package ingest

import (
	"strings"
)

// Chunk size defaults. Token counts are estimated at roughly four
// characters per token.
const (
	DefaultMaxChunkTokens = 512
	DefaultOverlapTokens  = 64
	TokensPerChar         = 4
)

// TextChunk is one split of a document, word-bounded with its position and
// estimated token count.
type TextChunk struct {
	Content    string
	Index      int
	TokenCount int
}

// ChunkerOptions configures chunk sizing.
type ChunkerOptions struct {
	MaxChunkTokens int
	OverlapTokens  int
}

// Chunker splits document text into overlapping word-bounded chunks.
// Overlap keeps sentences that straddle a boundary retrievable from both
// sides.
type Chunker struct {
	options ChunkerOptions
}

// NewChunker creates a chunker with default sizing.
func NewChunker() *Chunker {
	return NewChunkerWithOptions(ChunkerOptions{})
}

// NewChunkerWithOptions creates a chunker with custom sizing.
func NewChunkerWithOptions(opts ChunkerOptions) *Chunker {
	if opts.MaxChunkTokens <= 0 {
		opts.MaxChunkTokens = DefaultMaxChunkTokens
	}
	if opts.OverlapTokens < 0 {
		opts.OverlapTokens = 0
	}
	if opts.OverlapTokens == 0 {
		opts.OverlapTokens = DefaultOverlapTokens
	}
	if opts.OverlapTokens >= opts.MaxChunkTokens {
		opts.OverlapTokens = opts.MaxChunkTokens / 4
	}
	return &Chunker{options: opts}
}

// Chunk splits content into chunks of at most MaxChunkTokens estimated
// tokens, never splitting inside a word. Consecutive chunks share roughly
// OverlapTokens of trailing context. Empty or whitespace-only content
// yields no chunks.
func (c *Chunker) Chunk(content string) []TextChunk {
	words := strings.Fields(content)
	if len(words) == 0 {
		return nil
	}

	maxChars := c.options.MaxChunkTokens * TokensPerChar
	overlapChars := c.options.OverlapTokens * TokensPerChar

	var chunks []TextChunk
	start := 0
	for start < len(words) {
		end := start
		size := 0
		for end < len(words) && (end == start || size+len(words[end])+1 <= maxChars) {
			size += len(words[end]) + 1
			end++
		}

		text := strings.Join(words[start:end], " ")
		chunks = append(chunks, TextChunk{
			Content:    text,
			Index:      len(chunks),
			TokenCount: estimateTokens(text),
		})

		if end == len(words) {
			break
		}

		// Walk back from the boundary until the overlap budget is
		// spent, leaving at least one word of forward progress.
		back := end
		acc := 0
		for back > start+1 && acc < overlapChars {
			back--
			acc += len(words[back]) + 1
		}
		start = back
	}
	return chunks
}

// estimateTokens approximates the token count of text.
func estimateTokens(text string) int {
	n := len(text) / TokensPerChar
	if n < 1 {
		n = 1
	}
	return n
}
