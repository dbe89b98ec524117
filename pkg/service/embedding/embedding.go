// Package embedding is the gateway that converts text into fixed-dimension
// vectors. Every similarity-ranked component (session memory, document index)
// consumes it through the Gateway interface.
package embedding

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
)

// Gateway converts text to an embedding vector. Embed must be idempotent:
// the same text yields a consistent vector within provider determinism.
type Gateway interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Model returns the embedding model name.
	Model() string
	// Dimension returns the vector dimension, or 0 if no vector has been
	// produced yet and no dimension was configured.
	Dimension() int
}

// Client implements Gateway over the Gemini adapter. The vector dimension is
// pinned on the first successful call (or up front via WithDimension); any
// later vector of a different length is rejected as a dimension mismatch
// rather than silently stored.
type Client struct {
	gemini adapter.Gemini

	mu  sync.Mutex
	dim int
}

type Option func(*Client)

// WithDimension pins the expected vector dimension up front. Use it when the
// index snapshot already records a dimension.
func WithDimension(dim int) Option {
	return func(c *Client) {
		c.dim = dim
	}
}

func New(gemini adapter.Gemini, opts ...Option) *Client {
	c := &Client{gemini: gemini}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.gemini.Embedding(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(model.ErrEmbedding, "embedding provider call failed", goerr.V("cause", err))
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, goerr.Wrap(model.ErrEmbedding, "embedding provider returned no vector")
	}

	vec := resp.Embeddings[0].Values

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dim == 0 {
		c.dim = len(vec)
	} else if len(vec) != c.dim {
		return nil, goerr.Wrap(model.ErrDimensionMismatch, "provider returned unexpected dimension",
			goerr.V("expected", c.dim), goerr.V("actual", len(vec)))
	}

	return vec, nil
}

func (c *Client) Model() string {
	return c.gemini.EmbeddingModel()
}

func (c *Client) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dim
}
