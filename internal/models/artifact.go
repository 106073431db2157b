package models

import "time"

// Artifact is the bookkeeping record for one ingested upload. Re-uploading
// the same filename creates a new record; ingestion is append-only.
type Artifact struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size_bytes"`
	ChunkCount int       `json:"chunk_count"`
	IngestedAt time.Time `json:"ingested_at"`
}
