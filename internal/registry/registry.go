// Package registry provides SQLite bookkeeping for ingested artifacts.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/docent-ai/docent/internal/models"
)

// Registry records what has been ingested: filename, size, and how many
// chunks each upload produced.
type Registry struct {
	db *sql.DB
}

// NewRegistry opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewRegistry(dbPath string) (*Registry, error) {
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

	return &Registry{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		chunk_count INTEGER NOT NULL,
		ingested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_ingested_at ON artifacts(ingested_at);
	CREATE INDEX IF NOT EXISTS idx_artifacts_filename ON artifacts(filename);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordArtifact inserts a new record for one ingested upload.
func (r *Registry) RecordArtifact(ctx context.Context, filename string, sizeBytes int64, chunkCount int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, filename, size_bytes, chunk_count, ingested_at)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), filename, sizeBytes, chunkCount, time.Now(),
	)
	return err
}

// ListArtifacts returns artifacts newest first, with offset and limit.
func (r *Registry) ListArtifacts(ctx context.Context, offset, limit int) ([]*models.Artifact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, filename, size_bytes, chunk_count, ingested_at
		 FROM artifacts ORDER BY ingested_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []*models.Artifact
	for rows.Next() {
		var a models.Artifact
		if err := rows.Scan(&a.ID, &a.Filename, &a.SizeBytes, &a.ChunkCount, &a.IngestedAt); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, &a)
	}
	return artifacts, rows.Err()
}

// CountArtifacts returns the total number of recorded uploads.
func (r *Registry) CountArtifacts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (r *Registry) Close() error {
	return r.db.Close()
}
