package rag

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// DefaultSQLitePath is the index file used when none is configured.
const DefaultSQLitePath = "book_vector_db.sqlite"

// SQLiteStore is a VectorStore persisted to a single local SQLite file.
// On open the whole index is loaded into memory; Search is a brute-force
// cosine scan over that snapshot and never touches the database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// path is the index file location.
	path string
	// entries is the in-memory snapshot searched by Search. It is replaced
	// only by Replace, which runs during a build, never while serving.
	entries []indexEntry
}

// indexEntry is one loaded document with its embedding and precomputed norm.
type indexEntry struct {
	doc  Document
	vec  []float32
	norm float64
}

// CreateSQLiteStore opens (or creates) the index file at path for building.
// Parent directories are created as needed.
func CreateSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite index: could not create %s: %w", dir, err)
		}
	}

	s, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := s.migrate(); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	return s, nil
}

// OpenSQLiteStore opens an existing index file for serving and loads it into
// memory. It returns ErrIndexNotFound when path does not exist.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("sqlite index %s: %w", path, ErrIndexNotFound)
		}
		return nil, fmt.Errorf("sqlite index: stat %s: %w", path, err)
	}

	s, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := s.load(ctx); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	return s, nil
}

// openSQLite opens the connection pool for path.
func openSQLite(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite index: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db, path: path}, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    position   INTEGER PRIMARY KEY,
    id         TEXT    NOT NULL UNIQUE,
    content    TEXT    NOT NULL,
    metadata   TEXT    NOT NULL,  -- JSON object
    embedding  BLOB    NOT NULL   -- little-endian float32
);
CREATE TABLE IF NOT EXISTS index_info (
    key    TEXT PRIMARY KEY,
    value  TEXT NOT NULL
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("sqlite index: migrate: %w", err)
	}
	return nil
}

// Replace deletes every stored document and writes docs in one transaction,
// then refreshes the in-memory snapshot.
func (s *SQLiteStore) Replace(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("sqlite index: %d documents but %d embeddings", len(docs), len(embeddings))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite index: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("sqlite index: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO documents (position, id, content, metadata, embedding) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite index: prepare: %w", err)
	}
	defer stmt.Close()

	dims := 0
	for i, doc := range docs {
		if i == 0 {
			dims = len(embeddings[0])
		} else if len(embeddings[i]) != dims {
			return fmt.Errorf("sqlite index: embedding %d has %d dimensions, want %d", i, len(embeddings[i]), dims)
		}

		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("sqlite index: encode metadata for %s: %w", doc.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, i, doc.ID, doc.Content, string(meta), encodeVector(embeddings[i])); err != nil {
			return fmt.Errorf("sqlite index: insert %s: %w", doc.ID, err)
		}
	}

	info := map[string]string{
		"dimensions": fmt.Sprintf("%d", dims),
		"built_at":   time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range info {
		if _, err := tx.ExecContext(ctx, `INSERT INTO index_info (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
			return fmt.Errorf("sqlite index: write info: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite index: commit: %w", err)
	}

	return s.load(ctx)
}

// load reads every document into the in-memory snapshot, in build order.
func (s *SQLiteStore) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, metadata, embedding FROM documents ORDER BY position ASC`)
	if err != nil {
		return fmt.Errorf("sqlite index: load: %w", err)
	}
	defer rows.Close()

	var entries []indexEntry
	for rows.Next() {
		var (
			doc  Document
			meta string
			blob []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &meta, &blob); err != nil {
			return fmt.Errorf("sqlite index: load scan: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
			return fmt.Errorf("sqlite index: decode metadata for %s: %w", doc.ID, err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return fmt.Errorf("sqlite index: decode embedding for %s: %w", doc.ID, err)
		}
		entries = append(entries, indexEntry{doc: doc, vec: vec, norm: norm(vec)})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite index: load rows: %w", err)
	}

	s.entries = entries
	return nil
}

// Search scores every loaded document against the query embedding and
// returns the top-k by descending cosine similarity. Ties keep build order.
func (s *SQLiteStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error) {
	if topK <= 0 || len(s.entries) == 0 {
		return []Document{}, nil
	}
	if dims := len(s.entries[0].vec); len(queryEmbedding) != dims {
		return nil, fmt.Errorf("sqlite index: query has %d dimensions, index has %d", len(queryEmbedding), dims)
	}

	qNorm := norm(queryEmbedding)
	scored := make([]Document, len(s.entries))
	for i, e := range s.entries {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("sqlite index: search: %w", err)
			}
		}
		d := e.doc
		d.Metadata = copyMetadata(e.doc.Metadata)
		d.Score = float32(cosine(queryEmbedding, e.vec, qNorm, e.norm))
		scored[i] = d
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Count returns the number of documents in the in-memory snapshot.
func (s *SQLiteStore) Count(_ context.Context) (int, error) {
	return len(s.entries), nil
}

// Path returns the index file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sqlite index: close: %w", err)
	}
	return nil
}

// copyMetadata returns a shallow copy so callers cannot mutate the snapshot.
func copyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// encodeVector serializes v as little-endian float32 values.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
