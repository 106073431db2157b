// Package models defines core data structures for text units, chunks, chat turns, and API payloads.
package models

// TextUnit is a block of extracted text with source metadata, the unit handed
// from extraction to chunking. A PDF yields one unit per page; an image or a
// plain-text file yields a single unit.
type TextUnit struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Chunk is a bounded contiguous slice of extracted text, the unit of
// embedding and retrieval. Immutable once created.
type Chunk struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ScoredChunk is a chunk returned from similarity search together with its
// similarity score and the stored vector (needed for diversity re-ranking).
type ScoredChunk struct {
	Chunk  Chunk     `json:"chunk"`
	Score  float64   `json:"score"`
	Vector []float32 `json:"-"`
}
