// Package index holds the in-memory vector index over document chunks and
// its persisted snapshot form. An Index is built once (by ingestion or by
// loading a snapshot) and is read-only afterwards, so lookups need no
// locking.
package index

import (
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/utils/vectors"
)

type Index struct {
	embedModel string
	dimension  int
	createdAt  time.Time
	chunks     []model.DocumentChunk
}

// New creates an empty index bound to an embedding model. dim may be 0 when
// the dimension is not known yet; the first added chunk pins it.
func New(embedModel string, dim int) *Index {
	return &Index{
		embedModel: embedModel,
		dimension:  dim,
		createdAt:  time.Now(),
	}
}

// Add appends a chunk during the build phase. Every stored vector must match
// the index dimension.
func (x *Index) Add(chunk model.DocumentChunk) error {
	if len(chunk.Vector) == 0 {
		return goerr.Wrap(model.ErrEmbedding, "chunk has no vector", goerr.V("source", chunk.SourceID))
	}
	if x.dimension == 0 {
		x.dimension = len(chunk.Vector)
	} else if len(chunk.Vector) != x.dimension {
		return goerr.Wrap(model.ErrDimensionMismatch, "chunk vector dimension differs from index",
			goerr.V("index", x.dimension), goerr.V("chunk", len(chunk.Vector)),
			goerr.V("source", chunk.SourceID))
	}

	x.chunks = append(x.chunks, chunk)
	return nil
}

// Search ranks all chunks by cosine similarity against the query vector,
// highest first; equal scores break toward the most recently added chunk.
// A query dimension that differs from the index dimension is a hard error.
func (x *Index) Search(qvec []float32, topK int) ([]model.ScoredChunk, error) {
	if topK <= 0 || len(x.chunks) == 0 {
		return nil, nil
	}
	if len(qvec) != x.dimension {
		return nil, goerr.Wrap(model.ErrDimensionMismatch, "query vector dimension differs from index",
			goerr.V("index", x.dimension), goerr.V("query", len(qvec)))
	}

	scored := make([]model.ScoredChunk, 0, len(x.chunks))
	for _, c := range x.chunks {
		sim, err := vectors.Cosine(c.Vector, qvec)
		if err != nil {
			return nil, err
		}
		scored = append(scored, model.ScoredChunk{Chunk: c, Similarity: sim})
	}

	order := make([]int, len(scored))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return i > j
	})

	if topK > len(order) {
		topK = len(order)
	}
	result := make([]model.ScoredChunk, 0, topK)
	for _, i := range order[:topK] {
		result = append(result, scored[i])
	}
	return result, nil
}

// Size returns the number of indexed chunks.
func (x *Index) Size() int {
	return len(x.chunks)
}

func (x *Index) Model() string {
	return x.embedModel
}

func (x *Index) Dimension() int {
	return x.dimension
}

// VerifyCompatible rejects an index built with a different embedding model
// or dimension than the currently configured one. Loading such a snapshot
// would make every similarity score meaningless.
func (x *Index) VerifyCompatible(embedModel string, dim int) error {
	if x.embedModel != embedModel {
		return goerr.Wrap(model.ErrIndexIncompatible, "snapshot built with different embedding model",
			goerr.V("snapshot", x.embedModel), goerr.V("configured", embedModel))
	}
	if dim != 0 && x.dimension != 0 && x.dimension != dim {
		return goerr.Wrap(model.ErrIndexIncompatible, "snapshot built with different dimension",
			goerr.V("snapshot", x.dimension), goerr.V("configured", dim))
	}
	return nil
}
