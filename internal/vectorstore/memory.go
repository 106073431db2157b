package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/docent-ai/docent/internal/models"
	"github.com/docent-ai/docent/pkg/utils"
)

// MemoryStore is an in-memory vector store using brute-force cosine search.
// Suitable for tests and store-less development runs.
type MemoryStore struct {
	dimensions int
	points     []Point
	mu         sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// EnsureCollection records the vector dimension. Subsequent upserts must match it.
func (m *MemoryStore) EnsureCollection(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dimensions != 0 && m.dimensions != dimensions {
		return fmt.Errorf("collection dimension mismatch: have %d, got %d", m.dimensions, dimensions)
	}
	m.dimensions = dimensions
	return nil
}

// Upsert appends points. Vectors are copied and normalized so search can use
// plain inner product.
func (m *MemoryStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return fmt.Errorf("no points to upsert")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		if m.dimensions != 0 && len(p.Vector) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(p.Vector), m.dimensions)
		}
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		utils.NormalizeL2(vec)
		m.points = append(m.points, Point{ID: p.ID, Vector: vec, Chunk: p.Chunk})
	}
	return nil
}

// Search returns the top-k points by cosine similarity.
func (m *MemoryStore) Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.points) == 0 {
		return nil, nil
	}
	query := make([]float32, len(vector))
	copy(query, vector)
	utils.NormalizeL2(query)

	scored := make([]models.ScoredChunk, 0, len(m.points))
	for _, p := range m.points {
		if len(p.Vector) != len(query) {
			continue
		}
		var dot float64
		for i := range query {
			dot += float64(query[i] * p.Vector[i])
		}
		scored = append(scored, models.ScoredChunk{Chunk: p.Chunk, Score: dot, Vector: p.Vector})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// Count returns the number of stored points.
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points), nil
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error { return nil }
