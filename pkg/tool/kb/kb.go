// Package kb provides the knowledge-base tool. It delegates to an answerer
// that retrieves indexed chunks and synthesizes a grounded reply.
package kb

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/kioku/pkg/tool"
)

// Answerer produces a grounded answer for a query, typically retrieval plus
// language-model synthesis.
type Answerer interface {
	Answer(ctx context.Context, query string) (string, error)
}

type kb struct {
	answerer Answerer
}

// New creates a new knowledge-base tool
func New(answerer Answerer) *kb {
	return &kb{answerer: answerer}
}

func (x *kb) Name() string {
	return "knowledge_base"
}

func (x *kb) Kind() tool.Kind {
	return tool.KindKnowledgeBase
}

func (x *kb) Run(ctx context.Context, query string) (string, error) {
	return x.answerer.Answer(ctx, query)
}

func (x *kb) Flags() []cli.Flag {
	return nil
}
