package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteCollection implements Collection on a SQLite database. Embeddings
// are stored inline as little-endian float32 blobs so a collection scan
// returns content, metadata, and vectors in one pass.
type SQLiteCollection struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

const chunkSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id              TEXT PRIMARY KEY,
	file_id         TEXT NOT NULL,
	filename        TEXT NOT NULL,
	organization_id TEXT NOT NULL,
	owner_id        TEXT NOT NULL DEFAULT '',
	chunk_index     INTEGER NOT NULL,
	content         TEXT NOT NULL,
	token_count     INTEGER NOT NULL DEFAULT 0,
	public          INTEGER NOT NULL DEFAULT 0,
	allowed_roles   TEXT NOT NULL DEFAULT '[]',
	allowed_users   TEXT NOT NULL DEFAULT '[]',
	embedding       BLOB,
	created_at      INTEGER NOT NULL,
	modified_at     INTEGER NOT NULL,
	UNIQUE(file_id, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_chunks_org      ON chunks(organization_id);
CREATE INDEX IF NOT EXISTS idx_chunks_file     ON chunks(file_id);
CREATE INDEX IF NOT EXISTS idx_chunks_filename ON chunks(filename);
`

// NewSQLiteCollection opens (or creates) a collection at path.
// Use ":memory:" for an in-memory collection in tests.
func NewSQLiteCollection(path string) (*SQLiteCollection, error) {
	dsn := path
	if path != ":memory:" {
		// WAL allows concurrent readers during ingest.
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open collection db: %w", err)
	}

	if _, err := db.Exec(chunkSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create chunk schema: %w", err)
	}

	return &SQLiteCollection{db: db}, nil
}

// Add stores chunks with their embeddings inside one transaction.
// Existing IDs are replaced.
func (s *SQLiteCollection) Add(ctx context.Context, chunks []*Chunk, embeddings [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(embeddings) != 0 && len(embeddings) != len(chunks) {
		return fmt.Errorf("chunks and embeddings length mismatch: %d vs %d",
			len(chunks), len(embeddings))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return NewSearchError("collection", "add", sql.ErrConnDone)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewSearchError("collection", "begin tx", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks
		(id, file_id, filename, organization_id, owner_id, chunk_index,
		 content, token_count, public, allowed_roles, allowed_users,
		 embedding, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return NewSearchError("collection", "prepare insert", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for i, c := range chunks {
		var blob []byte
		if len(embeddings) > 0 && embeddings[i] != nil {
			blob = encodeEmbedding(embeddings[i])
		}

		roles, err := json.Marshal(c.AllowedRoles)
		if err != nil {
			return fmt.Errorf("marshal allowed roles: %w", err)
		}
		users, err := json.Marshal(c.AllowedUsers)
		if err != nil {
			return fmt.Errorf("marshal allowed users: %w", err)
		}

		createdAt := c.CreatedAt.Unix()
		if c.CreatedAt.IsZero() {
			createdAt = now
		}

		if _, err := stmt.ExecContext(ctx,
			c.ID, c.FileID, c.Filename, c.OrganizationID, c.OwnerID,
			c.ChunkIndex, c.Content, c.TokenCount, boolToInt(c.Public),
			string(roles), string(users), blob, createdAt, now,
		); err != nil {
			return NewSearchError("collection", "insert chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewSearchError("collection", "commit", err)
	}
	return nil
}

// Get returns a filtered, paginated page ordered by (file_id, chunk_index)
// so iteration over the collection is deterministic.
func (s *SQLiteCollection) Get(ctx context.Context, filter ChunkFilter, limit, offset int) (*CollectionPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, NewSearchError("collection", "get", sql.ErrConnDone)
	}

	where, args := buildWhere(filter)
	q := `SELECT id, file_id, filename, organization_id, owner_id, chunk_index,
	             content, token_count, public, allowed_roles, allowed_users,
	             embedding, created_at, modified_at
	      FROM chunks` + where + ` ORDER BY file_id, chunk_index`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, NewSearchError("collection", "query chunks", err)
	}
	defer rows.Close()

	page := &CollectionPage{}
	for rows.Next() {
		chunk, emb, err := scanChunk(rows)
		if err != nil {
			// One malformed row must never abort the whole scan.
			slog.Warn("skipping malformed chunk row", slog.String("error", err.Error()))
			continue
		}
		page.Chunks = append(page.Chunks, chunk)
		page.Embeddings = append(page.Embeddings, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, NewSearchError("collection", "scan chunks", err)
	}

	return page, nil
}

// GetByIDs returns chunks for the given IDs in input order.
func (s *SQLiteCollection) GetByIDs(ctx context.Context, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, NewSearchError("collection", "get by ids", sql.ErrConnDone)
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_id, filename, organization_id, owner_id, chunk_index,
		       content, token_count, public, allowed_roles, allowed_users,
		       embedding, created_at, modified_at
		FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, NewSearchError("collection", "query by ids", err)
	}
	defer rows.Close()

	byID := make(map[string]*Chunk, len(ids))
	for rows.Next() {
		chunk, _, err := scanChunk(rows)
		if err != nil {
			slog.Warn("skipping malformed chunk row", slog.String("error", err.Error()))
			continue
		}
		byID[chunk.ID] = chunk
	}
	if err := rows.Err(); err != nil {
		return nil, NewSearchError("collection", "scan by ids", err)
	}

	out := make([]*Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Delete removes all chunks matching the filter.
func (s *SQLiteCollection) Delete(ctx context.Context, filter ChunkFilter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return NewSearchError("collection", "delete", sql.ErrConnDone)
	}

	where, args := buildWhere(filter)
	if where == "" {
		return fmt.Errorf("refusing to delete without a filter")
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks"+where, args...); err != nil {
		return NewSearchError("collection", "delete chunks", err)
	}
	return nil
}

// Count returns the number of chunks matching the filter.
func (s *SQLiteCollection) Count(ctx context.Context, filter ChunkFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, NewSearchError("collection", "count", sql.ErrConnDone)
	}

	where, args := buildWhere(filter)
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks"+where, args...).Scan(&count); err != nil {
		return 0, NewSearchError("collection", "count chunks", err)
	}
	return count, nil
}

// Close releases the database handle.
func (s *SQLiteCollection) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

var _ Collection = (*SQLiteCollection)(nil)

func buildWhere(filter ChunkFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.OrganizationID != "" {
		conds = append(conds, "organization_id = ?")
		args = append(args, filter.OrganizationID)
	}
	if filter.FileID != "" {
		conds = append(conds, "file_id = ?")
		args = append(args, filter.FileID)
	}
	if filter.Filename != "" {
		conds = append(conds, "filename = ?")
		args = append(args, filter.Filename)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanChunk(rows *sql.Rows) (*Chunk, []float32, error) {
	var (
		c         Chunk
		public    int
		roles     string
		users     string
		blob      []byte
		createdAt int64
		modified  int64
	)
	if err := rows.Scan(
		&c.ID, &c.FileID, &c.Filename, &c.OrganizationID, &c.OwnerID,
		&c.ChunkIndex, &c.Content, &c.TokenCount, &public, &roles, &users,
		&blob, &createdAt, &modified,
	); err != nil {
		return nil, nil, err
	}

	c.Public = public != 0
	if err := json.Unmarshal([]byte(roles), &c.AllowedRoles); err != nil {
		return nil, nil, fmt.Errorf("decode allowed roles: %w", err)
	}
	if err := json.Unmarshal([]byte(users), &c.AllowedUsers); err != nil {
		return nil, nil, fmt.Errorf("decode allowed users: %w", err)
	}
	c.CreatedAt = time.Unix(createdAt, 0)
	c.ModifiedAt = time.Unix(modified, 0)

	var emb []float32
	if len(blob) > 0 {
		var err error
		emb, err = decodeEmbedding(blob)
		if err != nil {
			return nil, nil, err
		}
	}
	return &c, emb, nil
}

func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
