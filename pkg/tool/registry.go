package tool

import (
	"github.com/urfave/cli/v3"
)

// Registry holds the available tools keyed by kind. At most one tool may
// serve a kind; a later registration for the same kind replaces the earlier
// one.
type Registry struct {
	tools    map[Kind]Tool
	allTools []Tool
}

// New creates a new tool registry with the given tools
func New(tools ...Tool) *Registry {
	r := &Registry{
		tools:    make(map[Kind]Tool),
		allTools: tools,
	}
	for _, t := range tools {
		r.tools[t.Kind()] = t
	}
	return r
}

// Lookup returns the tool registered for a kind, or nil.
func (r *Registry) Lookup(kind Kind) Tool {
	return r.tools[kind]
}

// Flags returns all tool flags combined
func (r *Registry) Flags() []cli.Flag {
	var flags []cli.Flag
	for _, t := range r.allTools {
		if toolFlags := t.Flags(); toolFlags != nil {
			flags = append(flags, toolFlags...)
		}
	}
	return flags
}
