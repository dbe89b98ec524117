package converse_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"

	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/tool"
	"github.com/m-mizutani/kioku/pkg/usecase/converse"
	"github.com/m-mizutani/kioku/pkg/usecase/rag"
)

type appended struct {
	role    model.Role
	content string
}

type mockMemory struct {
	recalled  []model.Recalled
	recallErr error
	appendErr error
	appends   []appended
}

func (m *mockMemory) Append(ctx context.Context, key model.SessionKey, role model.Role, content string) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appends = append(m.appends, appended{role: role, content: content})
	return nil
}

func (m *mockMemory) Recall(ctx context.Context, key model.SessionKey, query string, topK int) ([]model.Recalled, error) {
	if m.recallErr != nil {
		return nil, m.recallErr
	}
	if topK > len(m.recalled) {
		topK = len(m.recalled)
	}
	return m.recalled[:topK], nil
}

type mockGemini struct {
	reply        string
	err          error
	systemPrompt string
	calls        int
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.calls++
	if config != nil && config.SystemInstruction != nil && len(config.SystemInstruction.Parts) > 0 {
		m.systemPrompt = config.SystemInstruction.Parts[0].Text
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

type fakeTool struct {
	kind   tool.Kind
	output string
	err    error
	calls  int
}

func (x *fakeTool) Name() string      { return string(x.kind) }
func (x *fakeTool) Kind() tool.Kind   { return x.kind }
func (x *fakeTool) Flags() []cli.Flag { return nil }

func (x *fakeTool) Run(ctx context.Context, query string) (string, error) {
	x.calls++
	return x.output, x.err
}

func emptyRouter() *tool.Router {
	return tool.NewRouter(tool.New())
}

func TestHandleTurn(t *testing.T) {
	mem := &mockMemory{recalled: []model.Recalled{
		{Role: model.RoleUser, Content: "my name is Mallory", Similarity: 0.9},
		{Role: model.RoleAssistant, Content: "nice to meet you", Similarity: 0.8},
	}}
	clock := &fakeTool{kind: tool.KindTime, output: "The current time is 2026-03-14T15:09:26Z"}
	gemini := &mockGemini{reply: "It's quarter past three."}

	o := converse.New(mem, tool.NewRouter(tool.New(clock)), gemini)
	reply, err := o.HandleTurn(context.Background(), "session-1", "what time is it?")
	gt.NoError(t, err)
	gt.V(t, reply).Equal("It's quarter past three.")
	gt.V(t, clock.calls).Equal(1)

	gt.S(t, gemini.systemPrompt).Contains("You are a helpful AI assistant named Kioku.")
	gt.S(t, gemini.systemPrompt).Contains("Context:\n")
	gt.S(t, gemini.systemPrompt).Contains("user: my name is Mallory")
	gt.S(t, gemini.systemPrompt).Contains("assistant: nice to meet you")
	gt.S(t, gemini.systemPrompt).Contains("Tool Outputs:\nTool 'time' output: The current time is 2026-03-14T15:09:26Z")
	gt.S(t, gemini.systemPrompt).Contains("Respond naturally.")

	gt.A(t, mem.appends).Length(2)
	gt.V(t, mem.appends[0].role).Equal(model.RoleUser)
	gt.V(t, mem.appends[0].content).Equal("what time is it?")
	gt.V(t, mem.appends[1].role).Equal(model.RoleAssistant)
	gt.V(t, mem.appends[1].content).Equal("It's quarter past three.")
}

func TestHandleTurnNoTool(t *testing.T) {
	mem := &mockMemory{}
	gemini := &mockGemini{reply: "hello"}

	o := converse.New(mem, emptyRouter(), gemini)
	reply, err := o.HandleTurn(context.Background(), "session-1", "good morning")
	gt.NoError(t, err)
	gt.V(t, reply).Equal("hello")
	gt.S(t, gemini.systemPrompt).Contains("Tool Outputs:\n\nRespond naturally.")
}

func TestHandleTurnToolFailureDoesNotAbort(t *testing.T) {
	mem := &mockMemory{}
	search := &fakeTool{kind: tool.KindWebSearch, err: errors.New("connection refused")}
	gemini := &mockGemini{reply: "sorry, search is down"}

	o := converse.New(mem, tool.NewRouter(tool.New(search)), gemini)
	reply, err := o.HandleTurn(context.Background(), "session-1", "search for gophers")
	gt.NoError(t, err)
	gt.V(t, reply).Equal("sorry, search is down")
	gt.S(t, gemini.systemPrompt).Contains("failed")
	gt.A(t, mem.appends).Length(2)
}

func TestHandleTurnModelFailure(t *testing.T) {
	mem := &mockMemory{}
	gemini := &mockGemini{err: errors.New("quota exceeded")}

	o := converse.New(mem, emptyRouter(), gemini)
	_, err := o.HandleTurn(context.Background(), "session-1", "hello")
	gt.True(t, errors.Is(err, model.ErrModel))
	gt.A(t, mem.appends).Length(0)
}

func TestHandleTurnRecallFailure(t *testing.T) {
	mem := &mockMemory{recallErr: model.ErrEmbedding}
	gemini := &mockGemini{reply: "unused"}

	o := converse.New(mem, emptyRouter(), gemini)
	_, err := o.HandleTurn(context.Background(), "session-1", "hello")
	gt.True(t, errors.Is(err, model.ErrEmbedding))
	gt.V(t, gemini.calls).Equal(0)
}

func TestHandleTurnAppendFailure(t *testing.T) {
	mem := &mockMemory{appendErr: model.ErrEmbedding}
	gemini := &mockGemini{reply: "hello"}

	o := converse.New(mem, emptyRouter(), gemini)
	_, err := o.HandleTurn(context.Background(), "session-1", "hello")
	gt.True(t, errors.Is(err, model.ErrEmbedding))
}

type stubAnswerer struct {
	answer string
	err    error
	calls  int
}

func (a *stubAnswerer) Answer(ctx context.Context, query string) (string, error) {
	a.calls++
	return a.answer, a.err
}

func TestAnswerWithKnowledge(t *testing.T) {
	t.Run("answer returned verbatim without model call or memory write", func(t *testing.T) {
		mem := &mockMemory{}
		gemini := &mockGemini{reply: "unused"}
		answerer := &stubAnswerer{answer: "[Source: RAG] Keys rotate quarterly."}

		o := converse.New(mem, emptyRouter(), gemini, converse.WithKnowledge(answerer))
		answer, err := o.AnswerWithKnowledge(context.Background(), "session-1", "rotation?")
		gt.NoError(t, err)
		gt.V(t, answer).Equal("[Source: RAG] Keys rotate quarterly.")
		gt.V(t, answerer.calls).Equal(1)
		gt.V(t, gemini.calls).Equal(0)
		gt.A(t, mem.appends).Length(0)
	})

	t.Run("no grounding becomes canned reply", func(t *testing.T) {
		answerer := &stubAnswerer{err: model.ErrNoGrounding}

		o := converse.New(&mockMemory{}, emptyRouter(), &mockGemini{}, converse.WithKnowledge(answerer))
		answer, err := o.AnswerWithKnowledge(context.Background(), "session-1", "rotation?")
		gt.NoError(t, err)
		gt.V(t, answer).Equal(converse.NoGroundingReply)
	})

	t.Run("unconfigured knowledge base is an error", func(t *testing.T) {
		o := converse.New(&mockMemory{}, emptyRouter(), &mockGemini{})
		_, err := o.AnswerWithKnowledge(context.Background(), "session-1", "rotation?")
		gt.Error(t, err)
	})
}

type stubGateway struct{}

func (g *stubGateway) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}
func (g *stubGateway) Model() string  { return "test-embedding-001" }
func (g *stubGateway) Dimension() int { return 2 }

type stubIndex struct {
	chunks []model.ScoredChunk
}

func (x *stubIndex) Search(qvec []float32, topK int) ([]model.ScoredChunk, error) {
	if topK > len(x.chunks) {
		topK = len(x.chunks)
	}
	return x.chunks[:topK], nil
}

func TestKnowledgeAnswerer(t *testing.T) {
	t.Run("grounded answer passes through", func(t *testing.T) {
		idx := &stubIndex{chunks: []model.ScoredChunk{
			{Chunk: model.DocumentChunk{Text: "rotation is quarterly"}, Similarity: 0.9},
		}}
		engine := rag.New(&stubGateway{}, idx, &mockGemini{reply: "Keys rotate quarterly."})

		answer, err := converse.NewKnowledgeAnswerer(engine).Answer(context.Background(), "rotation?")
		gt.NoError(t, err)
		gt.V(t, answer).Equal("[Source: RAG] Keys rotate quarterly.")
	})

	t.Run("empty retrieval becomes canned reply", func(t *testing.T) {
		engine := rag.New(&stubGateway{}, &stubIndex{}, &mockGemini{reply: "unused"})

		answer, err := converse.NewKnowledgeAnswerer(engine).Answer(context.Background(), "rotation?")
		gt.NoError(t, err)
		gt.V(t, answer).Equal(converse.NoGroundingReply)
	})
}
