// Package indexer builds the document index: it splits source documents into
// token-bounded chunks, embeds them, persists the result as a snapshot, and
// serves lookups from the live index. Ingestion replaces the live index only
// after the new one is fully built and persisted, so concurrent lookups
// always see a complete index.
package indexer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/service/embedding"
	"github.com/m-mizutani/kioku/pkg/service/index"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

const DefaultSnapshotKey = "vectorstore.json"

type Indexer struct {
	gw       embedding.Gateway
	storage  adapter.Storage
	key      string
	splitter *splitter

	ingestMu sync.Mutex

	mu      sync.RWMutex
	current *index.Index
}

type Option func(*Indexer)

func WithSnapshotKey(key string) Option {
	return func(x *Indexer) {
		x.key = key
	}
}

func WithChunkBudget(chunkTokens, overlapTokens int) Option {
	return func(x *Indexer) {
		x.splitter = newSplitter(chunkTokens, overlapTokens)
	}
}

func New(gw embedding.Gateway, storage adapter.Storage, options ...Option) *Indexer {
	x := &Indexer{
		gw:       gw,
		storage:  storage,
		key:      DefaultSnapshotKey,
		splitter: newSplitter(DefaultChunkTokens, DefaultOverlapTokens),
		current:  index.New(gw.Model(), gw.Dimension()),
	}
	for _, opt := range options {
		opt(x)
	}
	return x
}

// Ingest rebuilds the index from src. Only one ingestion may run at a time;
// a second call while one is in flight fails with model.ErrIndexBusy rather
// than queueing. A source with zero documents is not an error and leaves
// the current index untouched.
func (x *Indexer) Ingest(ctx context.Context, src Source) (*model.IngestResult, error) {
	if !x.ingestMu.TryLock() {
		return nil, goerr.Wrap(model.ErrIndexBusy, "ingestion already in progress")
	}
	defer x.ingestMu.Unlock()

	start := time.Now()
	logger := logging.From(ctx)

	docs, err := src.Load(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load source documents")
	}
	if len(docs) == 0 {
		logger.Info("no source documents found, keeping current index")
		return &model.IngestResult{Duration: time.Since(start)}, nil
	}

	next := index.New(x.gw.Model(), x.gw.Dimension())
	for _, doc := range docs {
		for i, text := range x.splitter.split(doc.Text) {
			vec, err := x.gw.Embed(ctx, text)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to embed chunk",
					goerr.V("source", doc.ID), goerr.V("chunk", i))
			}
			chunk := model.DocumentChunk{
				ID:         model.NewChunkID(),
				SourceID:   doc.ID,
				ChunkIndex: i,
				Text:       text,
				Vector:     vec,
			}
			if err := next.Add(chunk); err != nil {
				return nil, err
			}
		}
	}

	if err := index.Persist(ctx, x.storage, x.key, next); err != nil {
		return nil, err
	}

	x.mu.Lock()
	x.current = next
	x.mu.Unlock()

	result := &model.IngestResult{
		Documents:     len(docs),
		ChunksIndexed: next.Size(),
		Duration:      time.Since(start),
	}
	logger.Info("ingestion completed",
		"documents", result.Documents,
		"chunks", result.ChunksIndexed,
		"duration", result.Duration,
	)
	return result, nil
}

// Load restores the index from a persisted snapshot, falling back to a fresh
// ingestion when no snapshot exists or the snapshot cannot be used (corrupt,
// or built with a different embedding model).
func (x *Indexer) Load(ctx context.Context, src Source) error {
	logger := logging.From(ctx)

	loaded, err := index.Load(ctx, x.storage, x.key)
	switch {
	case err == nil:
		if verr := loaded.VerifyCompatible(x.gw.Model(), x.gw.Dimension()); verr != nil {
			logger.Warn("index snapshot incompatible, reingesting", "error", verr)
		} else {
			x.mu.Lock()
			x.current = loaded
			x.mu.Unlock()
			return nil
		}
	case errors.Is(err, adapter.ErrArtifactNotFound):
		logger.Info("no index snapshot found, ingesting", "key", x.key)
	case errors.Is(err, model.ErrIndexLoad):
		logger.Warn("index snapshot unreadable, reingesting", "error", err)
	default:
		return err
	}

	if _, err := x.Ingest(ctx, src); err != nil {
		return err
	}
	return nil
}

// Search ranks indexed chunks against an already-embedded query vector.
func (x *Indexer) Search(qvec []float32, topK int) ([]model.ScoredChunk, error) {
	x.mu.RLock()
	current := x.current
	x.mu.RUnlock()
	return current.Search(qvec, topK)
}

// Size returns the number of chunks in the live index.
func (x *Indexer) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.current.Size()
}
