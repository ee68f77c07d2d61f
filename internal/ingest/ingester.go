package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/ragline/ragline/internal/embed"
	"github.com/ragline/ragline/internal/store"
	"github.com/ragline/ragline/internal/textnorm"
)

// lockFileName is created inside a directory while it is being indexed,
// so concurrent ingest runs over the same tree fail fast instead of
// interleaving writes.
const lockFileName = ".ragline.lock"

// indexableExtensions are the document types the walker picks up.
var indexableExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// FileMeta carries the tenant metadata applied to every chunk of a file.
type FileMeta struct {
	OrganizationID string
	OwnerID        string
	Public         bool
	AllowedRoles   []string
	AllowedUsers   []string
}

// FileResult summarizes one ingested file.
type FileResult struct {
	FileID   string
	Filename string
	Chunks   int
}

// Ingester writes documents into the three stores as one logical unit:
// chunk, embed, then add to the collection, the vector index, and the
// lexical index. Re-ingesting a filename replaces its previous chunks.
type Ingester struct {
	collection store.Collection
	vector     *store.VectorIndex
	lexical    *store.LexicalIndex
	embedder   embed.Embedder
	chunker    *Chunker
	logger     *slog.Logger
}

// IngesterOption configures an Ingester.
type IngesterOption func(*Ingester)

// WithChunker replaces the default chunker.
func WithChunker(c *Chunker) IngesterOption {
	return func(in *Ingester) { in.chunker = c }
}

// WithIngestLogger sets the ingester logger.
func WithIngestLogger(logger *slog.Logger) IngesterOption {
	return func(in *Ingester) { in.logger = logger }
}

// NewIngester creates an ingester over the three stores.
func NewIngester(
	collection store.Collection,
	vector *store.VectorIndex,
	lexical *store.LexicalIndex,
	embedder embed.Embedder,
	opts ...IngesterOption,
) (*Ingester, error) {
	if collection == nil || vector == nil || lexical == nil || embedder == nil {
		return nil, fmt.Errorf("ingester: nil dependency")
	}
	in := &Ingester{
		collection: collection,
		vector:     vector,
		lexical:    lexical,
		embedder:   embedder,
		chunker:    NewChunker(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in, nil
}

// IngestFile reads, chunks, embeds, and indexes a single document. Any
// chunks previously stored under the same (organization, filename) are
// removed first, so re-ingesting a changed file never leaves stale chunks
// behind.
func (in *Ingester) IngestFile(ctx context.Context, path string, meta FileMeta) (*FileResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return in.IngestContent(ctx, filepath.Base(path), string(data), meta)
}

// IngestContent indexes already-loaded document content under filename.
func (in *Ingester) IngestContent(ctx context.Context, filename, content string, meta FileMeta) (*FileResult, error) {
	pieces := in.chunker.Chunk(content)
	if len(pieces) == 0 {
		return &FileResult{Filename: filename}, nil
	}

	if err := in.RemoveFile(ctx, meta.OrganizationID, filename); err != nil {
		return nil, fmt.Errorf("remove previous version of %s: %w", filename, err)
	}

	fileID := uuid.NewString()
	now := time.Now()

	chunks := make([]*store.Chunk, len(pieces))
	texts := make([]string, len(pieces))
	ids := make([]string, len(pieces))
	for i, p := range pieces {
		id := fmt.Sprintf("%s:%04d", fileID, p.Index)
		chunks[i] = &store.Chunk{
			ID:             id,
			FileID:         fileID,
			Filename:       filename,
			OrganizationID: meta.OrganizationID,
			OwnerID:        meta.OwnerID,
			ChunkIndex:     p.Index,
			Content:        p.Content,
			TokenCount:     p.TokenCount,
			Public:         meta.Public,
			AllowedRoles:   meta.AllowedRoles,
			AllowedUsers:   meta.AllowedUsers,
			CreatedAt:      now,
			ModifiedAt:     now,
		}
		ids[i] = id
		texts[i] = embeddingText(p.Content)
	}

	embeddings, err := in.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", filename, err)
	}

	if err := in.collection.Add(ctx, chunks, embeddings); err != nil {
		return nil, fmt.Errorf("store chunks for %s: %w", filename, err)
	}
	if err := in.vector.Add(ctx, ids, embeddings); err != nil {
		return nil, fmt.Errorf("index vectors for %s: %w", filename, err)
	}
	if err := in.lexical.Index(ctx, chunks); err != nil {
		return nil, fmt.Errorf("index fulltext for %s: %w", filename, err)
	}

	in.logger.Info("file ingested",
		"filename", filename,
		"file_id", fileID,
		"chunks", len(chunks),
		"organization", meta.OrganizationID)

	return &FileResult{FileID: fileID, Filename: filename, Chunks: len(chunks)}, nil
}

// IngestDir walks dir for indexable documents and ingests each one. The
// directory is locked for the duration; a second ingest over the same tree
// fails immediately. Per-file failures are logged and skipped so one bad
// document never aborts the batch.
func (in *Ingester) IngestDir(ctx context.Context, dir string, meta FileMeta) ([]*FileResult, error) {
	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("directory %s is already being indexed", dir)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	var results []*FileResult
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !indexableExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		res, ferr := in.IngestFile(ctx, path, meta)
		if ferr != nil {
			in.logger.Warn("skipping file", "path", path, "error", ferr)
			return nil
		}
		if res.Chunks > 0 {
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return results, fmt.Errorf("walk %s: %w", dir, err)
	}
	return results, nil
}

// RemoveFile deletes every chunk of a filename from all three stores.
// Unknown filenames are a no-op.
func (in *Ingester) RemoveFile(ctx context.Context, organizationID, filename string) error {
	filter := store.ChunkFilter{OrganizationID: organizationID, Filename: filename}

	ids, err := in.chunkIDs(ctx, filter)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	if err := in.vector.Delete(ctx, ids); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := in.lexical.Delete(ctx, ids); err != nil {
		return fmt.Errorf("delete fulltext: %w", err)
	}
	if err := in.collection.Delete(ctx, filter); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	in.logger.Debug("file removed", "filename", filename, "chunks", len(ids))
	return nil
}

// chunkIDs pages through the collection gathering matching chunk IDs.
func (in *Ingester) chunkIDs(ctx context.Context, filter store.ChunkFilter) ([]string, error) {
	const pageSize = 1000

	var ids []string
	for offset := 0; ; offset += pageSize {
		page, err := in.collection.Get(ctx, filter, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("list chunks: %w", err)
		}
		if len(page.Chunks) == 0 {
			return ids, nil
		}
		for _, c := range page.Chunks {
			ids = append(ids, c.ID)
		}
	}
}

// embeddingText is the text actually embedded for a chunk: the same
// normalization the query side applies, so both live in one vector space.
// Content that normalizes away entirely is embedded raw.
func embeddingText(content string) string {
	norm := textnorm.Normalize(content, textnorm.DetectLanguage(content))
	if norm == "" {
		return content
	}
	return norm
}
