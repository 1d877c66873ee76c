// Package storage provides a SQLite-backed embedding cache so unchanged
// texts are not re-embedded between pipeline runs.
package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteEmbeddingStore implements embedding.Store using SQLite.
type SQLiteEmbeddingStore struct {
	db *sql.DB
}

// NewSQLiteEmbeddingStore opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if they do not exist.
func NewSQLiteEmbeddingStore(dbPath string) (*SQLiteEmbeddingStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteEmbeddingStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS embeddings (
		text_hash TEXT NOT NULL,
		model TEXT NOT NULL,
		dims INTEGER NOT NULL,
		vector BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (model, text_hash)
	);

	CREATE INDEX IF NOT EXISTS idx_embeddings_created_at ON embeddings(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Get looks up the stored embedding for text under model.
func (s *SQLiteEmbeddingStore) Get(ctx context.Context, model, text string) ([]float32, bool, error) {
	var dims int
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT dims, vector FROM embeddings WHERE model = ? AND text_hash = ?`,
		model, hashText(text),
	).Scan(&dims, &blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query embedding: %w", err)
	}
	vector, err := decodeVector(blob, dims)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode embedding: %w", err)
	}
	return vector, true, nil
}

// Put stores the embedding for text under model, replacing any prior entry.
func (s *SQLiteEmbeddingStore) Put(ctx context.Context, model, text string, vector []float32) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embeddings (text_hash, model, dims, vector, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		hashText(text), model, len(vector), encodeVector(vector), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// Count returns the number of cached embeddings across all models.
func (s *SQLiteEmbeddingStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return n, nil
}

// Prune removes entries older than the cutoff and returns how many were deleted.
func (s *SQLiteEmbeddingStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE created_at < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune embeddings: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLiteEmbeddingStore) Close() error {
	return s.db.Close()
}

// hashText keys rows by content hash so arbitrarily long texts stay off the
// primary key.
func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte, dims int) ([]float32, error) {
	if len(blob) != 4*dims {
		return nil, fmt.Errorf("vector blob is %d bytes, want %d", len(blob), 4*dims)
	}
	out := make([]float32, dims)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out, nil
}
