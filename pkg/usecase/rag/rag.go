// Package rag answers questions from the document index: embed the query,
// retrieve the nearest chunks, and synthesize a grounded reply with the
// language model.
package rag

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"

	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/service/embedding"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

const (
	// DefaultTopK is how many chunks ground one answer.
	DefaultTopK = 3

	// DefaultMaxContextBytes bounds the assembled grounding context so a
	// large index cannot blow up the prompt.
	DefaultMaxContextBytes = 4096

	// SourcePrefix marks answers that were grounded in the document index.
	SourcePrefix = "[Source: RAG] "
)

// Index serves nearest-chunk lookups over an embedded query.
type Index interface {
	Search(qvec []float32, topK int) ([]model.ScoredChunk, error)
}

type Engine struct {
	gw       embedding.Gateway
	index    Index
	gemini   adapter.Gemini
	topK     int
	maxBytes int
}

type Option func(*Engine)

func WithTopK(topK int) Option {
	return func(e *Engine) {
		e.topK = topK
	}
}

func WithMaxContextBytes(n int) Option {
	return func(e *Engine) {
		e.maxBytes = n
	}
}

func New(gw embedding.Gateway, idx Index, gemini adapter.Gemini, options ...Option) *Engine {
	e := &Engine{
		gw:       gw,
		index:    idx,
		gemini:   gemini,
		topK:     DefaultTopK,
		maxBytes: DefaultMaxContextBytes,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Query embeds the question once and returns the nearest indexed chunks,
// best first.
func (e *Engine) Query(ctx context.Context, text string, topK int) ([]model.ScoredChunk, error) {
	vec, err := e.gw.Embed(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}
	return e.index.Search(vec, topK)
}

// AssembleContext concatenates chunk text in ranking order, separated by a
// blank line. Chunks that would push the context past the byte limit are
// dropped whole; a chunk is never cut in the middle.
func (e *Engine) AssembleContext(chunks []model.ScoredChunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		need := len(c.Chunk.Text)
		if sb.Len() > 0 {
			need += 2
		}
		if sb.Len()+need > e.maxBytes {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(c.Chunk.Text)
	}
	return sb.String()
}

// Answer produces a grounded reply for the query. When retrieval finds
// nothing, it fails with model.ErrNoGrounding so the caller can respond with
// an honest "not found" instead of letting the model improvise.
func (e *Engine) Answer(ctx context.Context, query string) (string, error) {
	chunks, err := e.Query(ctx, query, e.topK)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "", goerr.Wrap(model.ErrNoGrounding, "no chunks retrieved", goerr.V("query", query))
	}

	grounding := e.AssembleContext(chunks)
	logging.From(ctx).Debug("assembled grounding context",
		"chunks", len(chunks),
		"bytes", len(grounding),
	)

	systemPrompt := "Answer the question using only the following context. " +
		"If the context does not contain the answer, say so.\n\nContext:\n" + grounding

	contents := []*genai.Content{genai.NewContentFromText(query, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, ""),
	}

	resp, err := e.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(model.ErrModel, "failed to generate grounded answer", goerr.V("cause", err.Error()))
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", goerr.Wrap(model.ErrModel, "model returned empty response")
	}

	return SourcePrefix + resp.Candidates[0].Content.Parts[0].Text, nil
}
