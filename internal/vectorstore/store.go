// Package vectorstore provides the vector collection abstraction and its
// Qdrant-backed and in-memory implementations.
package vectorstore

import (
	"context"

	"github.com/docent-ai/docent/internal/models"
)

// Point is one embedded chunk as stored in the collection.
type Point struct {
	ID     string
	Vector []float32
	Chunk  models.Chunk
}

// VectorStore persists embedded chunks and supports nearest-neighbor search.
// The collection is append-only: re-ingesting the same content inserts
// duplicates, never replaces.
type VectorStore interface {
	// EnsureCollection creates the collection with the given vector dimension
	// if it does not exist yet.
	EnsureCollection(ctx context.Context, dimensions int) error
	Upsert(ctx context.Context, points []Point) error
	// Search returns up to k nearest neighbors by cosine similarity, including
	// the stored vectors. An empty collection yields an empty result, not an error.
	Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error)
	// Count returns the number of points in the collection.
	Count(ctx context.Context) (int, error)
	Close() error
}
