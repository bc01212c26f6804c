package registry

import (
	"context"
	"time"

	"github.com/mwiater/agon-mcp/internal/agonerr"
	"github.com/mwiater/agon-mcp/internal/chatmsg"
	"github.com/mwiater/agon-mcp/internal/toolexec"
)

// FilteredRegistry is the allow-list view of spec.md §4.6: a composable
// wrapper over a source Registry, not a copy of it. Registration and Clear
// delegate straight through to the source.
type FilteredRegistry struct {
	source  Registry
	allowed map[string]struct{} // nil means unrestricted
}

// NewFilteredRegistry wraps source. allowed == nil means no restriction; an
// empty, non-nil allowed means nothing is permitted.
func NewFilteredRegistry(source Registry, allowed []string) *FilteredRegistry {
	var set map[string]struct{}
	if allowed != nil {
		set = make(map[string]struct{}, len(allowed))
		for _, name := range allowed {
			set[name] = struct{}{}
		}
	}
	return &FilteredRegistry{source: source, allowed: set}
}

func (f *FilteredRegistry) permits(name string) bool {
	if f.allowed == nil {
		return true
	}
	_, ok := f.allowed[name]
	return ok
}

// ListTools delegates to the source when unrestricted, otherwise returns
// only the allow-listed subset.
func (f *FilteredRegistry) ListTools() []chatmsg.ToolSpec {
	specs := f.source.ListTools()
	if f.allowed == nil {
		return specs
	}
	out := make([]chatmsg.ToolSpec, 0, len(specs))
	for _, s := range specs {
		if f.permits(s.Name) {
			out = append(out, s)
		}
	}
	return out
}

// Find delegates when call's tool name is permitted, otherwise reports not
// found rather than leaking the executor's existence.
func (f *FilteredRegistry) Find(call chatmsg.ToolCall) (toolexec.Executor, bool) {
	if !f.permits(call.Function.Name) {
		return nil, false
	}
	return f.source.Find(call)
}

// Execute fails with access-denied for a disallowed tool name, otherwise
// delegates to the source.
func (f *FilteredRegistry) Execute(ctx context.Context, call chatmsg.ToolCall, timeout time.Duration) (string, error) {
	if !f.permits(call.Function.Name) {
		return "", agonerr.Newf(agonerr.AccessDenied, nil, "tool %q is not permitted for this agent", call.Function.Name)
	}
	return f.source.Execute(ctx, call, timeout)
}

// Register delegates to the source; the filter is a view, not a scope.
func (f *FilteredRegistry) Register(exec toolexec.Executor) { f.source.Register(exec) }

// Clear delegates to the source.
func (f *FilteredRegistry) Clear() { f.source.Clear() }
