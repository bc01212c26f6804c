// Package registry implements the Tool Registry (spec.md §4.5) and the
// Filtered Registry (spec.md §4.6): the name→executor map an agent
// consults to discover and dispatch tools, and a composable allow-list view
// over it.
package registry

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mwiater/agon-mcp/internal/agonerr"
	"github.com/mwiater/agon-mcp/internal/chatmsg"
	"github.com/mwiater/agon-mcp/internal/logging"
	"github.com/mwiater/agon-mcp/internal/mcpclient"
	"github.com/mwiater/agon-mcp/internal/mcpconfig"
	"github.com/mwiater/agon-mcp/internal/mcpmanager"
	"github.com/mwiater/agon-mcp/internal/toolexec"
)

// Registry is the minimal surface the agent loop and the chat API client
// need: discover tools, dispatch a call, and manage membership.
type Registry interface {
	ListTools() []chatmsg.ToolSpec
	Find(call chatmsg.ToolCall) (toolexec.Executor, bool)
	Execute(ctx context.Context, call chatmsg.ToolCall, timeout time.Duration) (string, error)
	Register(exec toolexec.Executor)
	Clear()
}

type acquiredServer struct {
	cfg    mcpconfig.ServerConfig
	client *mcpclient.Client
}

// MCPRegistry is the concrete, MCP-backed Registry of spec.md §4.5.
type MCPRegistry struct {
	manager *mcpmanager.Manager

	mu          sync.RWMutex
	executors   map[string]toolexec.Executor
	initialized bool
	acquired    []acquiredServer
}

// NewMCPRegistry constructs an empty registry backed by manager. Call
// Initialize before using it.
func NewMCPRegistry(manager *mcpmanager.Manager) *MCPRegistry {
	return &MCPRegistry{
		manager:   manager,
		executors: make(map[string]toolexec.Executor),
	}
}

// Initialize parses configDoc (an {mcpServers: {...}} document), acquires
// one MCP client per server, and registers every tool each client exposes.
// Initialization is idempotent-guarded: a second call fails outright. A
// server that fails to acquire is logged and skipped rather than aborting
// the whole registry, unless parsing configDoc itself fails.
func (r *MCPRegistry) Initialize(ctx context.Context, configDoc []byte) error {
	r.mu.Lock()
	if r.initialized {
		r.mu.Unlock()
		return agonerr.New(agonerr.InvalidArgument, "registry already initialized", nil)
	}
	r.initialized = true
	r.mu.Unlock()

	configs, err := mcpconfig.Parse(configDoc)
	if err != nil {
		return err
	}

	for _, cfg := range configs {
		client, acquireErr := r.manager.Acquire(ctx, cfg)
		if acquireErr != nil {
			logging.LogEvent("registry: failed to acquire mcp server %q: %v", cfg.Name, acquireErr)
			continue
		}

		r.mu.Lock()
		r.acquired = append(r.acquired, acquiredServer{cfg: cfg, client: client})
		for _, spec := range client.Tools() {
			if _, exists := r.executors[spec.Name]; exists {
				logging.LogEvent("registry: tool %q from server %q overwrites an earlier registration", spec.Name, cfg.Name)
			}
			r.executors[spec.Name] = toolexec.NewMCPExecutor(client, spec)
		}
		r.mu.Unlock()
	}
	return nil
}

// ListTools returns the ToolSpec of every registered executor, sorted by
// name for deterministic output.
func (r *MCPRegistry) ListTools() []chatmsg.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]chatmsg.ToolSpec, 0, len(r.executors))
	for _, exec := range r.executors {
		specs = append(specs, exec.AsToolSpec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Find looks up the executor for call by name, case-insensitively.
func (r *MCPRegistry) Find(call chatmsg.ToolCall) (toolexec.Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[call.Function.Name]
	if ok {
		return exec, true
	}
	for name, e := range r.executors {
		if strings.EqualFold(name, call.Function.Name) {
			return e, true
		}
	}
	return nil, false
}

// Execute looks up and dispatches call, failing with no-executor if no
// registered tool matches.
func (r *MCPRegistry) Execute(ctx context.Context, call chatmsg.ToolCall, timeout time.Duration) (string, error) {
	exec, ok := r.Find(call)
	if !ok {
		return "", agonerr.Newf(agonerr.NoExecutor, nil, "no executor for %q", call.Function.Name)
	}
	return exec.Execute(ctx, call, timeout)
}

// Register adds or replaces a single executor, for in-process tools that
// don't come from an mcpServers document.
func (r *MCPRegistry) Register(exec toolexec.Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[exec.Name()] = exec
}

// Clear removes every executor without releasing acquired MCP clients; use
// Shutdown to do both.
func (r *MCPRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors = make(map[string]toolexec.Executor)
}

// Shutdown clears every executor and releases every MCP client this
// registry acquired (spec.md §4.5 step 5).
func (r *MCPRegistry) Shutdown() {
	r.mu.Lock()
	acquired := r.acquired
	r.acquired = nil
	r.executors = make(map[string]toolexec.Executor)
	r.mu.Unlock()

	for _, a := range acquired {
		r.manager.Release(a.cfg, a.client)
	}
}
