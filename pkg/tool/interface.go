// Package tool routes a user utterance to at most one external capability.
// Selection is a fixed-priority match over trigger keywords; execution
// failures never abort the turn, they become diagnostic text in the prompt.
package tool

import (
	"context"

	"github.com/urfave/cli/v3"
)

// Kind identifies a tool category. Selection priority is the declaration
// order below, KindNone meaning no tool applies.
type Kind string

const (
	KindTime          Kind = "time"
	KindWebSearch     Kind = "web_search"
	KindKnowledgeBase Kind = "knowledge_base"
	KindNone          Kind = "none"
)

// Decision is the outcome of routing one utterance: which tool to run and
// the query text extracted for it.
type Decision struct {
	Kind  Kind
	Query string
}

// Tool is one external capability the router can dispatch to.
type Tool interface {
	// Name identifies the tool in diagnostics and logs
	Name() string

	// Kind declares which trigger category this tool serves
	Kind() Kind

	// Run executes the tool and returns its output text
	Run(ctx context.Context, query string) (string, error)

	// Flags returns CLI flags for this tool
	// Returns nil if no flags are needed
	Flags() []cli.Flag
}
