package tool

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"

	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

// Triggers maps each tool kind to the keywords that select it. Matching is a
// case-insensitive substring check against the utterance.
type Triggers map[Kind][]string

// DefaultTriggers returns the built-in trigger table.
func DefaultTriggers() Triggers {
	return Triggers{
		KindTime:          {"time", "clock"},
		KindWebSearch:     {"search", "tavily"},
		KindKnowledgeBase: {"/rag", "/kb", "knowledge base"},
	}
}

type triggerFile struct {
	Triggers map[string][]string `yaml:"triggers"`
}

// LoadTriggers reads a trigger table from a YAML file. Kinds absent from the
// file keep their built-in keywords; an empty list disables the kind.
func LoadTriggers(path string) (Triggers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read trigger config", goerr.V("path", path))
	}

	var file triggerFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse trigger config", goerr.V("path", path))
	}

	triggers := DefaultTriggers()
	for name, keywords := range file.Triggers {
		kind := Kind(name)
		switch kind {
		case KindTime, KindWebSearch, KindKnowledgeBase:
			triggers[kind] = keywords
		default:
			return nil, goerr.New("unknown tool kind in trigger config",
				goerr.V("path", path), goerr.V("kind", name))
		}
	}
	return triggers, nil
}

// Router selects and runs at most one tool per utterance.
type Router struct {
	registry *Registry
	triggers Triggers
}

type RouterOption func(*Router)

func WithTriggers(triggers Triggers) RouterOption {
	return func(r *Router) {
		r.triggers = triggers
	}
}

func NewRouter(registry *Registry, options ...RouterOption) *Router {
	r := &Router{
		registry: registry,
		triggers: DefaultTriggers(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// selection priority; first match wins
var priority = []Kind{KindTime, KindWebSearch, KindKnowledgeBase}

// Select decides which tool the utterance triggers. Evaluation walks the
// fixed priority order and stops at the first kind with a matching keyword,
// so an utterance that mentions both "time" and "search" runs only the time
// tool.
func (r *Router) Select(utterance string) Decision {
	lower := strings.ToLower(utterance)
	for _, kind := range priority {
		for _, keyword := range r.triggers[kind] {
			if keyword == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(keyword)) {
				return Decision{
					Kind:  kind,
					Query: extractQuery(utterance, keyword),
				}
			}
		}
	}
	return Decision{Kind: KindNone}
}

// extractQuery strips a leading trigger token ("/kb summarize X" asks about
// "summarize X"); a keyword in the middle of the utterance keeps the whole
// utterance as the query.
func extractQuery(utterance, keyword string) string {
	trimmed := strings.TrimSpace(utterance)
	if len(trimmed) >= len(keyword) && strings.EqualFold(trimmed[:len(keyword)], keyword) {
		rest := strings.TrimSpace(trimmed[len(keyword):])
		if rest != "" {
			return rest
		}
	}
	return trimmed
}

// Dispatch routes the utterance and runs the selected tool. Output is
// prefixed with the tool name ("Tool 'time' output: ..."); a tool failure is
// converted into a diagnostic string so the turn can still complete.
// KindNone yields empty output.
func (r *Router) Dispatch(ctx context.Context, utterance string) (Decision, string) {
	decision := r.Select(utterance)
	if decision.Kind == KindNone {
		return decision, ""
	}

	t := r.registry.Lookup(decision.Kind)
	if t == nil {
		return decision, ""
	}

	logging.From(ctx).Debug("dispatching tool", "tool", t.Name(), "kind", decision.Kind)

	output, err := t.Run(ctx, decision.Query)
	if err != nil {
		logging.From(ctx).Warn("tool execution failed", "tool", t.Name(), "error", err)
		return decision, fmt.Sprintf("Tool '%s' failed: %v", t.Name(), err)
	}
	return decision, fmt.Sprintf("Tool '%s' output: %s", t.Name(), output)
}
