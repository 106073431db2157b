// Package retriever selects relevant chunks for a query using maximal
// marginal relevance over the vector collection.
package retriever

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/docent-ai/docent/internal/embedding"
	"github.com/docent-ai/docent/internal/models"
	"github.com/docent-ai/docent/internal/vectorstore"
)

// Retriever embeds queries and returns a diversified top-k chunk selection.
// A fetchK-sized candidate pool comes back from the store by similarity; the
// final k are picked greedily, trading relevance against redundancy by lambda.
type Retriever struct {
	embedder embedding.Embedder
	store    vectorstore.VectorStore
	k        int
	fetchK   int
	lambda   float64
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger for the retriever.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Retriever) { r.logger = logger }
}

// NewRetriever creates a retriever. k is the result count, fetchK the candidate
// pool size, lambda the relevance/diversity tradeoff in [0, 1] (1 is pure
// relevance).
func NewRetriever(embedder embedding.Embedder, store vectorstore.VectorStore, k, fetchK int, lambda float64, opts ...Option) *Retriever {
	if k <= 0 {
		k = 3
	}
	if fetchK < k {
		fetchK = k
	}
	if lambda < 0 || lambda > 1 {
		lambda = 0.5
	}
	r := &Retriever{
		embedder: embedder,
		store:    store,
		k:        k,
		fetchK:   fetchK,
		lambda:   lambda,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns up to k chunks for the query. An empty collection yields an
// empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]models.ScoredChunk, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	candidates, err := r.store.Search(ctx, vector, r.fetchK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	selected := maximalMarginalRelevance(candidates, r.k, r.lambda)
	r.logger.Debug("retrieved chunks",
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(selected)))
	return selected, nil
}

// Ready reports whether the collection holds any indexed content.
func (r *Retriever) Ready(ctx context.Context) bool {
	n, err := r.store.Count(ctx)
	return err == nil && n > 0
}

// maximalMarginalRelevance greedily picks k candidates, each step taking the
// one maximizing lambda*relevance - (1-lambda)*max similarity to the picks so
// far. Candidates must arrive sorted by relevance; the first pick is the most
// relevant one, so at lambda=1 the output equals the top-k by score.
func maximalMarginalRelevance(candidates []models.ScoredChunk, k int, lambda float64) []models.ScoredChunk {
	if k >= len(candidates) {
		return candidates
	}
	selected := make([]models.ScoredChunk, 0, k)
	remaining := make([]models.ScoredChunk, len(candidates))
	copy(remaining, candidates)

	selected = append(selected, remaining[0])
	remaining = remaining[1:]

	for len(selected) < k && len(remaining) > 0 {
		bestIdx, bestScore := -1, math.Inf(-1)
		for i, cand := range remaining {
			maxSim := math.Inf(-1)
			for _, s := range selected {
				if sim := cosine(cand.Vector, s.Vector); sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*cand.Score - (1-lambda)*maxSim
			if score > bestScore {
				bestIdx, bestScore = i, score
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
