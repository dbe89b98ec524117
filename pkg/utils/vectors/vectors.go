// Package vectors provides the similarity arithmetic shared by the session
// memory store and the document index.
package vectors

import (
	"math"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/kioku/pkg/model"
)

// Cosine returns the cosine similarity of two vectors in [-1, 1]. A zero-norm
// vector yields 0 rather than a division error. Dimension mismatch between the
// two vectors is a hard error: it indicates the embedding model changed
// without reindexing.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, goerr.Wrap(model.ErrDimensionMismatch, "cosine similarity",
			goerr.V("len_a", len(a)), goerr.V("len_b", len(b)))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
