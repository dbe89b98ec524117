package rag_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"google.golang.org/genai"

	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/usecase/rag"
)

type stubGateway struct {
	calls int
}

func (g *stubGateway) Embed(ctx context.Context, text string) ([]float32, error) {
	g.calls++
	return []float32{1, 0}, nil
}

func (g *stubGateway) Model() string  { return "test-embedding-001" }
func (g *stubGateway) Dimension() int { return 2 }

type stubIndex struct {
	chunks []model.ScoredChunk
	err    error
	topK   int
}

func (x *stubIndex) Search(qvec []float32, topK int) ([]model.ScoredChunk, error) {
	x.topK = topK
	if x.err != nil {
		return nil, x.err
	}
	if topK > len(x.chunks) {
		topK = len(x.chunks)
	}
	return x.chunks[:topK], nil
}

type mockGemini struct {
	reply        string
	err          error
	systemPrompt string
	userText     string
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if config != nil && config.SystemInstruction != nil && len(config.SystemInstruction.Parts) > 0 {
		m.systemPrompt = config.SystemInstruction.Parts[0].Text
	}
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		m.userText = contents[0].Parts[0].Text
	}
	if m.err != nil {
		return nil, m.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(m.reply, genai.RoleModel)},
		},
	}, nil
}

func (m *mockGemini) Embedding(ctx context.Context, text string) (*genai.EmbedContentResponse, error) {
	return nil, errors.New("not used")
}

func (m *mockGemini) EmbeddingModel() string { return "test-embedding-001" }

func scored(text string, sim float64) model.ScoredChunk {
	return model.ScoredChunk{
		Chunk:      model.DocumentChunk{ID: model.NewChunkID(), SourceID: "doc.txt", Text: text},
		Similarity: sim,
	}
}

func TestAnswer(t *testing.T) {
	gw := &stubGateway{}
	idx := &stubIndex{chunks: []model.ScoredChunk{
		scored("Rotation happens every 90 days.", 0.9),
		scored("Keys live in the vault.", 0.8),
	}}
	gemini := &mockGemini{reply: "Keys rotate every 90 days."}

	e := rag.New(gw, idx, gemini)
	answer, err := e.Answer(context.Background(), "how often do keys rotate?")
	gt.NoError(t, err)
	gt.V(t, answer).Equal("[Source: RAG] Keys rotate every 90 days.")

	gt.V(t, idx.topK).Equal(rag.DefaultTopK)
	gt.V(t, gemini.userText).Equal("how often do keys rotate?")
	gt.S(t, gemini.systemPrompt).Contains("Rotation happens every 90 days.")
	gt.S(t, gemini.systemPrompt).Contains("Keys live in the vault.")
}

func TestAnswerNoGrounding(t *testing.T) {
	e := rag.New(&stubGateway{}, &stubIndex{}, &mockGemini{reply: "unused"})

	_, err := e.Answer(context.Background(), "anything")
	gt.True(t, errors.Is(err, model.ErrNoGrounding))
}

func TestAnswerModelFailure(t *testing.T) {
	idx := &stubIndex{chunks: []model.ScoredChunk{scored("some context", 0.9)}}
	gemini := &mockGemini{err: errors.New("quota exceeded")}

	e := rag.New(&stubGateway{}, idx, gemini)
	_, err := e.Answer(context.Background(), "anything")
	gt.True(t, errors.Is(err, model.ErrModel))
}

func TestQueryEmbedsOnce(t *testing.T) {
	gw := &stubGateway{}
	idx := &stubIndex{chunks: []model.ScoredChunk{scored("a", 0.5)}}

	e := rag.New(gw, idx, &mockGemini{})
	chunks, err := e.Query(context.Background(), "question", 1)
	gt.NoError(t, err)
	gt.A(t, chunks).Length(1)
	gt.V(t, gw.calls).Equal(1)
}

func TestAssembleContext(t *testing.T) {
	e := rag.New(&stubGateway{}, &stubIndex{}, &mockGemini{}, rag.WithMaxContextBytes(20))

	got := e.AssembleContext([]model.ScoredChunk{
		scored("one two", 0.9),      // 7 bytes
		scored("three four", 0.8),   // +2+10 = 19
		scored("five six seven", 0.7), // would exceed, dropped whole
	})
	gt.V(t, got).Equal("one two\n\nthree four")
}

func TestAssembleContextEmpty(t *testing.T) {
	e := rag.New(&stubGateway{}, &stubIndex{}, &mockGemini{})
	gt.V(t, e.AssembleContext(nil)).Equal("")
}
