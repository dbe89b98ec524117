// Package converse orchestrates one conversation turn: recall prior turns
// from session memory, run at most one tool, assemble the prompt, call the
// language model, and persist both sides of the exchange.
package converse

import (
	"context"
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"

	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/tool"
	"github.com/m-mizutani/kioku/pkg/usecase/rag"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

// DefaultRecallTopK is how many prior turns ground a new one.
const DefaultRecallTopK = 5

// NoGroundingReply is the canned answer when the knowledge base has nothing
// relevant. Returning it beats letting the model invent an answer.
const NoGroundingReply = "I couldn't find any information in my knowledge base."

// persona opens every system prompt.
const persona = "You are a helpful AI assistant named Kioku. You have access to previous conversation context and tools.\n"

// Memory is the session store consumed by the orchestrator.
type Memory interface {
	Append(ctx context.Context, key model.SessionKey, role model.Role, content string) error
	Recall(ctx context.Context, key model.SessionKey, query string, topK int) ([]model.Recalled, error)
}

// Answerer produces a grounded answer from the knowledge base.
type Answerer interface {
	Answer(ctx context.Context, query string) (string, error)
}

type Orchestrator struct {
	memory     Memory
	router     *tool.Router
	gemini     adapter.Gemini
	knowledge  Answerer
	recallTopK int
}

type Option func(*Orchestrator)

func WithRecallTopK(topK int) Option {
	return func(o *Orchestrator) {
		o.recallTopK = topK
	}
}

// WithKnowledge enables AnswerWithKnowledge, the direct retrieval path.
func WithKnowledge(answerer Answerer) Option {
	return func(o *Orchestrator) {
		o.knowledge = answerer
	}
}

func New(memory Memory, router *tool.Router, gemini adapter.Gemini, options ...Option) *Orchestrator {
	o := &Orchestrator{
		memory:     memory,
		router:     router,
		gemini:     gemini,
		recallTopK: DefaultRecallTopK,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// HandleTurn runs one request/response exchange. The turn is linear: recall,
// tool dispatch, one model call, persist. There is no replanning loop. Both
// the user utterance and the assistant reply are appended to memory, in that
// order, only after the model call succeeds.
func (o *Orchestrator) HandleTurn(ctx context.Context, key model.SessionKey, utterance string) (string, error) {
	recalled, err := o.memory.Recall(ctx, key, utterance, o.recallTopK)
	if err != nil {
		return "", goerr.Wrap(err, "failed to recall session memory", goerr.V("session", key))
	}

	decision, toolOutput := o.router.Dispatch(ctx, utterance)
	logging.From(ctx).Debug("turn routed",
		"session", key,
		"tool", decision.Kind,
		"recalled", len(recalled),
	)

	systemPrompt := buildSystemPrompt(recalled, toolOutput)
	contents := []*genai.Content{genai.NewContentFromText(utterance, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, ""),
	}

	resp, err := o.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(model.ErrModel, "failed to generate response", goerr.V("cause", err.Error()))
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", goerr.Wrap(model.ErrModel, "model returned empty response")
	}
	reply := resp.Candidates[0].Content.Parts[0].Text

	if err := o.memory.Append(ctx, key, model.RoleUser, utterance); err != nil {
		return "", goerr.Wrap(err, "failed to store user turn", goerr.V("session", key))
	}
	if err := o.memory.Append(ctx, key, model.RoleAssistant, reply); err != nil {
		return "", goerr.Wrap(err, "failed to store assistant turn", goerr.V("session", key))
	}

	return reply, nil
}

// AnswerWithKnowledge bypasses the conversational flow and answers straight
// from the knowledge base. The answer is returned to the user as-is, without
// a second model pass and without touching session memory; a no-grounding
// result becomes the canned reply.
func (o *Orchestrator) AnswerWithKnowledge(ctx context.Context, key model.SessionKey, query string) (string, error) {
	if o.knowledge == nil {
		return "", goerr.New("knowledge base is not configured", goerr.V("session", key))
	}

	logging.From(ctx).Debug("direct knowledge base query", "session", key)

	answer, err := o.knowledge.Answer(ctx, query)
	if errors.Is(err, model.ErrNoGrounding) {
		return NoGroundingReply, nil
	}
	if err != nil {
		return "", goerr.Wrap(err, "failed to answer from knowledge base", goerr.V("session", key))
	}
	return answer, nil
}

func buildSystemPrompt(recalled []model.Recalled, toolOutput string) string {
	var sb strings.Builder
	sb.WriteString(persona)
	sb.WriteString("Context:\n")
	for _, r := range recalled {
		sb.WriteString(r.Line())
		sb.WriteString("\n")
	}
	sb.WriteString("\nTool Outputs:\n")
	if toolOutput != "" {
		sb.WriteString(toolOutput)
		sb.WriteString("\n")
	}
	sb.WriteString("\nRespond naturally.")
	return sb.String()
}

type knowledgeAnswerer struct {
	engine *rag.Engine
}

// NewKnowledgeAnswerer adapts the retrieval engine for the knowledge-base
// tool: a no-grounding result becomes the canned reply instead of an error,
// so the turn still completes.
func NewKnowledgeAnswerer(engine *rag.Engine) *knowledgeAnswerer {
	return &knowledgeAnswerer{engine: engine}
}

func (x *knowledgeAnswerer) Answer(ctx context.Context, query string) (string, error) {
	answer, err := x.engine.Answer(ctx, query)
	if errors.Is(err, model.ErrNoGrounding) {
		return NoGroundingReply, nil
	}
	return answer, err
}
