package model

import (
	"time"

	"github.com/google/uuid"
)

type ChunkID string

// NewChunkID generates a new unique ChunkID
func NewChunkID() ChunkID {
	return ChunkID(uuid.New().String())
}

// DocumentChunk is the unit of indexing and retrieval: a bounded slice of a
// source document with its embedding vector.
type DocumentChunk struct {
	ID         ChunkID   `json:"id"`
	SourceID   string    `json:"source_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Vector     []float32 `json:"vector"`
}

// ScoredChunk is a chunk returned by a similarity search.
type ScoredChunk struct {
	Chunk      DocumentChunk
	Similarity float64
}

// IndexSnapshot is the persisted form of a vector index. The embedding model
// name and dimension are recorded at write time; a snapshot produced by a
// different model must not be loaded.
type IndexSnapshot struct {
	Model     string          `json:"model"`
	Dimension int             `json:"dimension"`
	CreatedAt time.Time       `json:"created_at"`
	Chunks    []DocumentChunk `json:"chunks"`
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	Documents     int
	ChunksIndexed int
	Duration      time.Duration
}
