package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrEmbedding indicates the embedding provider failed or returned a
	// malformed vector.
	ErrEmbedding = goerr.New("embedding failed")

	// ErrModel indicates the language model call failed.
	ErrModel = goerr.New("model call failed")

	// ErrTool indicates an individual tool invocation failed, including the
	// missing-credential case. Tool errors are caught at the router boundary.
	ErrTool = goerr.New("tool failed")

	// ErrIndexLoad indicates the persisted index snapshot is unreadable.
	ErrIndexLoad = goerr.New("failed to load index snapshot")

	// ErrIndexIncompatible indicates the snapshot was produced by a different
	// embedding model or dimension than the one configured now.
	ErrIndexIncompatible = goerr.New("index snapshot is incompatible with embedding model")

	// ErrDimensionMismatch indicates a query vector dimension differs from the
	// stored dimension. Always a hard error: it means the embedding model
	// changed without reindexing.
	ErrDimensionMismatch = goerr.New("embedding dimension mismatch")

	// ErrIndexBusy is returned when a reindex is requested while another
	// ingestion is in flight. The request is rejected, never queued.
	ErrIndexBusy = goerr.New("ingestion already in progress")

	// ErrNoGrounding is returned when retrieval yields zero chunks, so the
	// caller can answer with a canned response instead of hallucinating.
	ErrNoGrounding = goerr.New("no grounding context available")
)
