package tool_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/kioku/pkg/tool"
)

type fakeTool struct {
	name   string
	kind   tool.Kind
	output string
	err    error
	calls  int
	query  string
}

func (x *fakeTool) Name() string    { return x.name }
func (x *fakeTool) Kind() tool.Kind { return x.kind }
func (x *fakeTool) Flags() []cli.Flag {
	return nil
}

func (x *fakeTool) Run(ctx context.Context, query string) (string, error) {
	x.calls++
	x.query = query
	return x.output, x.err
}

func newTestRouter(tools ...tool.Tool) *tool.Router {
	return tool.NewRouter(tool.New(tools...))
}

func TestSelectPriority(t *testing.T) {
	clock := &fakeTool{name: "time", kind: tool.KindTime, output: "12:00"}
	search := &fakeTool{name: "web_search", kind: tool.KindWebSearch, output: "results"}
	router := newTestRouter(clock, search)

	decision, output := router.Dispatch(context.Background(), "What time is it?")
	gt.V(t, decision.Kind).Equal(tool.KindTime)
	gt.V(t, output).Equal("Tool 'time' output: 12:00")
	gt.V(t, clock.calls).Equal(1)
	gt.V(t, search.calls).Equal(0)

	// both categories match, only the higher-priority one runs
	decision, _ = router.Dispatch(context.Background(), "search for the time zone")
	gt.V(t, decision.Kind).Equal(tool.KindTime)
	gt.V(t, clock.calls).Equal(2)
	gt.V(t, search.calls).Equal(0)
}

func TestSelectWebSearch(t *testing.T) {
	search := &fakeTool{name: "web_search", kind: tool.KindWebSearch, output: "results"}
	router := newTestRouter(search)

	decision, output := router.Dispatch(context.Background(), "search golang generics")
	gt.V(t, decision.Kind).Equal(tool.KindWebSearch)
	gt.V(t, output).Equal("Tool 'web_search' output: results")
	gt.V(t, search.query).Equal("golang generics")
}

func TestSelectKnowledgeBase(t *testing.T) {
	kb := &fakeTool{name: "knowledge_base", kind: tool.KindKnowledgeBase, output: "grounded"}
	router := newTestRouter(kb)

	decision, _ := router.Dispatch(context.Background(), "/kb how do I rotate keys")
	gt.V(t, decision.Kind).Equal(tool.KindKnowledgeBase)
	gt.V(t, kb.query).Equal("how do I rotate keys")

	decision, _ = router.Dispatch(context.Background(), "check the knowledge base about rotation")
	gt.V(t, decision.Kind).Equal(tool.KindKnowledgeBase)
	gt.V(t, kb.query).Equal("check the knowledge base about rotation")
}

func TestSelectNone(t *testing.T) {
	clock := &fakeTool{name: "time", kind: tool.KindTime}
	router := newTestRouter(clock)

	decision, output := router.Dispatch(context.Background(), "hello there")
	gt.V(t, decision.Kind).Equal(tool.KindNone)
	gt.V(t, output).Equal("")
	gt.V(t, clock.calls).Equal(0)
}

func TestDispatchFailureIsolated(t *testing.T) {
	search := &fakeTool{
		name: "web_search",
		kind: tool.KindWebSearch,
		err:  errors.New("connection refused"),
	}
	router := newTestRouter(search)

	decision, output := router.Dispatch(context.Background(), "search something")
	gt.V(t, decision.Kind).Equal(tool.KindWebSearch)
	gt.S(t, output).Contains("web_search")
	gt.S(t, output).Contains("failed")
}

func TestDispatchUnregisteredKind(t *testing.T) {
	router := newTestRouter()

	decision, output := router.Dispatch(context.Background(), "What time is it?")
	gt.V(t, decision.Kind).Equal(tool.KindTime)
	gt.V(t, output).Equal("")
}

func TestLoadTriggers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "triggers.yml")
	body := strings.Join([]string{
		"triggers:",
		"  time:",
		"    - uhrzeit",
		"  web_search: []",
	}, "\n")
	gt.NoError(t, os.WriteFile(path, []byte(body), 0600))

	triggers, err := tool.LoadTriggers(path)
	gt.NoError(t, err)

	clock := &fakeTool{name: "time", kind: tool.KindTime, output: "12:00"}
	search := &fakeTool{name: "web_search", kind: tool.KindWebSearch}
	router := tool.NewRouter(tool.New(clock, search), tool.WithTriggers(triggers))

	decision, _ := router.Dispatch(context.Background(), "wie spät ist es? uhrzeit bitte")
	gt.V(t, decision.Kind).Equal(tool.KindTime)

	// web search disabled by the empty list, kb keywords kept
	decision, _ = router.Dispatch(context.Background(), "search something")
	gt.V(t, decision.Kind).Equal(tool.KindNone)

	decision, _ = router.Dispatch(context.Background(), "/kb rotation policy")
	gt.V(t, decision.Kind).Equal(tool.KindKnowledgeBase)
}

func TestLoadTriggersUnknownKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "triggers.yml")
	gt.NoError(t, os.WriteFile(path, []byte("triggers:\n  teleport:\n    - beam\n"), 0600))

	_, err := tool.LoadTriggers(path)
	gt.Error(t, err)
}
