package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docent-ai/docent/internal/embedding"
	"github.com/docent-ai/docent/internal/extract"
	"github.com/docent-ai/docent/internal/models"
	"github.com/docent-ai/docent/internal/vectorstore"
)

// Recorder persists bookkeeping about ingested artifacts.
type Recorder interface {
	RecordArtifact(ctx context.Context, filename string, sizeBytes int64, chunkCount int) error
}

// Indexer runs the ingestion pipeline: extract, split, embed, upsert.
// Ingestion is append-only; re-ingesting the same artifact adds new points.
type Indexer struct {
	extractor *extract.Extractor
	splitter  *Splitter
	embedder  embedding.Embedder
	store     vectorstore.VectorStore
	recorder  Recorder
	logger    *zap.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger for the indexer.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Indexer) { i.logger = logger }
}

// WithRecorder sets the artifact recorder for the indexer.
func WithRecorder(r Recorder) Option {
	return func(i *Indexer) { i.recorder = r }
}

// NewIndexer creates an ingestion pipeline over the given components.
func NewIndexer(extractor *extract.Extractor, splitter *Splitter, embedder embedding.Embedder, store vectorstore.VectorStore, opts ...Option) *Indexer {
	idx := &Indexer{
		extractor: extractor,
		splitter:  splitter,
		embedder:  embedder,
		store:     store,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IngestFile extracts the artifact at path and indexes its chunks. Returns the
// number of chunks indexed.
func (idx *Indexer) IngestFile(ctx context.Context, path string) (int, error) {
	units, err := idx.extractor.Extract(path)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}
	var size int64
	if info, statErr := os.Stat(path); statErr == nil {
		size = info.Size()
	}
	return idx.IngestExtracted(ctx, units, unitsSource(units, path), size)
}

// IngestExtracted indexes already-extracted units and records the artifact.
// Used when the caller has the extraction in hand, such as image analysis.
func (idx *Indexer) IngestExtracted(ctx context.Context, units []models.TextUnit, filename string, sizeBytes int64) (int, error) {
	count, err := idx.IngestUnits(ctx, units)
	if err != nil {
		return 0, err
	}
	if idx.recorder != nil {
		if recErr := idx.recorder.RecordArtifact(ctx, filename, sizeBytes, count); recErr != nil {
			idx.logger.Warn("failed to record artifact", zap.String("filename", filename), zap.Error(recErr))
		}
	}
	return count, nil
}

// IngestUnits splits, embeds, and upserts the given text units. Units with no
// text are skipped; an error is returned if nothing indexable remains.
func (idx *Indexer) IngestUnits(ctx context.Context, units []models.TextUnit) (int, error) {
	var chunks []models.Chunk
	for _, unit := range units {
		if unit.Text == "" {
			continue
		}
		for n, piece := range idx.splitter.Split(unit.Text) {
			meta := make(map[string]string, len(unit.Metadata)+1)
			for k, v := range unit.Metadata {
				meta[k] = v
			}
			meta["chunk"] = strconv.Itoa(n)
			chunks = append(chunks, models.Chunk{Text: piece, Metadata: meta})
		}
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no text to index")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedding count mismatch: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	if err := idx.store.EnsureCollection(ctx, len(vectors[0])); err != nil {
		return 0, fmt.Errorf("ensure collection: %w", err)
	}

	points := make([]vectorstore.Point, len(chunks))
	for i := range chunks {
		points[i] = vectorstore.Point{
			ID:     uuid.New().String(),
			Vector: vectors[i],
			Chunk:  chunks[i],
		}
	}
	if err := idx.store.Upsert(ctx, points); err != nil {
		return 0, fmt.Errorf("upsert: %w", err)
	}

	idx.logger.Info("indexed chunks",
		zap.Int("chunks", len(chunks)),
		zap.Int("units", len(units)))
	return len(chunks), nil
}

// unitsSource returns the source name recorded for an artifact, falling back
// to the path's base when extraction produced no units.
func unitsSource(units []models.TextUnit, path string) string {
	for _, u := range units {
		if s, ok := u.Metadata["source"]; ok {
			return s
		}
	}
	return filepath.Base(path)
}
