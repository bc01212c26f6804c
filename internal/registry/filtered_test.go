package registry

import (
	"context"
	"testing"
	"time"

	"github.com/mwiater/agon-mcp/internal/agonerr"
	"github.com/mwiater/agon-mcp/internal/chatmsg"
	"github.com/mwiater/agon-mcp/internal/toolexec"
)

type fakeExecutor struct {
	name string
}

func (f *fakeExecutor) Name() string                    { return f.name }
func (f *fakeExecutor) Description() string             { return "fake" }
func (f *fakeExecutor) ParameterSchema() map[string]any  { return nil }
func (f *fakeExecutor) AsToolSpec() chatmsg.ToolSpec     { return chatmsg.ToolSpec{Name: f.name} }
func (f *fakeExecutor) CanHandle(call chatmsg.ToolCall) bool {
	return call.Function.Name == f.name
}
func (f *fakeExecutor) Execute(ctx context.Context, call chatmsg.ToolCall, timeout time.Duration) (string, error) {
	return "result:" + f.name, nil
}

type fakeRegistry struct {
	executors map[string]toolexec.Executor
}

func newFakeRegistry(names ...string) *fakeRegistry {
	r := &fakeRegistry{executors: make(map[string]toolexec.Executor)}
	for _, n := range names {
		r.executors[n] = &fakeExecutor{name: n}
	}
	return r
}

func (r *fakeRegistry) ListTools() []chatmsg.ToolSpec {
	specs := make([]chatmsg.ToolSpec, 0, len(r.executors))
	for _, e := range r.executors {
		specs = append(specs, e.AsToolSpec())
	}
	return specs
}

func (r *fakeRegistry) Find(call chatmsg.ToolCall) (toolexec.Executor, bool) {
	e, ok := r.executors[call.Function.Name]
	return e, ok
}

func (r *fakeRegistry) Execute(ctx context.Context, call chatmsg.ToolCall, timeout time.Duration) (string, error) {
	e, ok := r.Find(call)
	if !ok {
		return "", agonerr.New(agonerr.NoExecutor, "no executor", nil)
	}
	return e.Execute(ctx, call, timeout)
}

func (r *fakeRegistry) Register(e toolexec.Executor) { r.executors[e.Name()] = e }
func (r *fakeRegistry) Clear()                       { r.executors = make(map[string]toolexec.Executor) }

func TestFilteredRegistryNilAllowedDelegates(t *testing.T) {
	src := newFakeRegistry("a", "b")
	f := NewFilteredRegistry(src, nil)

	if len(f.ListTools()) != 2 {
		t.Fatalf("expected unrestricted ListTools to delegate")
	}
	out, err := f.Execute(context.Background(), chatmsg.ToolCall{Function: chatmsg.FunctionCall{Name: "a"}}, time.Second)
	if err != nil || out != "result:a" {
		t.Fatalf("expected delegation to succeed, got %q %v", out, err)
	}
}

func TestFilteredRegistryRestrictsListAndFind(t *testing.T) {
	src := newFakeRegistry("a", "b", "c")
	f := NewFilteredRegistry(src, []string{"a", "b"})

	tools := f.ListTools()
	if len(tools) != 2 {
		t.Fatalf("expected 2 allowed tools, got %+v", tools)
	}
	if _, ok := f.Find(chatmsg.ToolCall{Function: chatmsg.FunctionCall{Name: "c"}}); ok {
		t.Fatalf("expected disallowed tool not found")
	}
	if _, ok := f.Find(chatmsg.ToolCall{Function: chatmsg.FunctionCall{Name: "a"}}); !ok {
		t.Fatalf("expected allowed tool found")
	}
}

func TestFilteredRegistryExecuteDeniesDisallowedTool(t *testing.T) {
	src := newFakeRegistry("a", "b")
	f := NewFilteredRegistry(src, []string{"a"})

	_, err := f.Execute(context.Background(), chatmsg.ToolCall{Function: chatmsg.FunctionCall{Name: "b"}}, time.Second)
	if !agonerr.Is(err, agonerr.AccessDenied) {
		t.Fatalf("expected access-denied, got %v", err)
	}
}

func TestFilteredRegistryEmptyAllowedPermitsNothing(t *testing.T) {
	src := newFakeRegistry("a")
	f := NewFilteredRegistry(src, []string{})

	if len(f.ListTools()) != 0 {
		t.Fatalf("expected empty allow-list to permit nothing")
	}
}

func TestFilteredRegistryRegisterAndClearDelegate(t *testing.T) {
	src := newFakeRegistry()
	f := NewFilteredRegistry(src, nil)

	f.Register(&fakeExecutor{name: "new"})
	if _, ok := src.executors["new"]; !ok {
		t.Fatalf("expected Register to delegate to source")
	}

	f.Clear()
	if len(src.executors) != 0 {
		t.Fatalf("expected Clear to delegate to source")
	}
}
