// Package toolexec implements the Tool Executor contract (spec.md §4.4): a
// uniform call surface covering both MCP-backed tools and in-process tools.
package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/mwiater/agon-mcp/internal/agonerr"
	"github.com/mwiater/agon-mcp/internal/chatmsg"
)

// Executor is the uniform surface every tool — MCP-backed or in-process —
// exposes to the registry and the agent loop.
type Executor interface {
	Name() string
	Description() string
	ParameterSchema() map[string]any
	CanHandle(call chatmsg.ToolCall) bool
	Execute(ctx context.Context, call chatmsg.ToolCall, timeout time.Duration) (string, error)
	AsToolSpec() chatmsg.ToolSpec
}

// mcpBackend is the subset of *mcpclient.Client an MCP-backed executor
// needs; declared as an interface here so this package does not import
// mcpclient and tests can supply a fake.
type mcpBackend interface {
	Execute(ctx context.Context, name, argumentsJSON string, timeout time.Duration) (string, error)
}

// mcpExecutor adapts one MCP tool, on one client, to the Executor contract.
type mcpExecutor struct {
	client mcpBackend
	spec   chatmsg.ToolSpec
}

// NewMCPExecutor closes over client and spec, per spec.md §4.5 step 3.
func NewMCPExecutor(client mcpBackend, spec chatmsg.ToolSpec) Executor {
	return &mcpExecutor{client: client, spec: spec}
}

func (e *mcpExecutor) Name() string                     { return e.spec.Name }
func (e *mcpExecutor) Description() string              { return e.spec.Description }
func (e *mcpExecutor) ParameterSchema() map[string]any  { return e.spec.ParameterSchema }
func (e *mcpExecutor) AsToolSpec() chatmsg.ToolSpec      { return e.spec }
func (e *mcpExecutor) CanHandle(call chatmsg.ToolCall) bool {
	return strings.EqualFold(call.Function.Name, e.spec.Name)
}

func (e *mcpExecutor) Execute(ctx context.Context, call chatmsg.ToolCall, timeout time.Duration) (string, error) {
	if err := validateArguments(e.spec.ParameterSchema, call.Function.Arguments); err != nil {
		return "", err
	}
	return e.client.Execute(ctx, e.spec.Name, call.Function.Arguments, timeout)
}

// InProcessFunc is the signature an in-process tool implements.
type InProcessFunc func(ctx context.Context, argumentsJSON string) (string, error)

// inProcessExecutor adapts a Go function to the Executor contract, for
// built-in demonstration tools that don't warrant their own subprocess.
type inProcessExecutor struct {
	spec chatmsg.ToolSpec
	fn   InProcessFunc
}

// NewInProcessExecutor builds an Executor backed directly by fn.
func NewInProcessExecutor(spec chatmsg.ToolSpec, fn InProcessFunc) Executor {
	return &inProcessExecutor{spec: spec, fn: fn}
}

func (e *inProcessExecutor) Name() string                    { return e.spec.Name }
func (e *inProcessExecutor) Description() string             { return e.spec.Description }
func (e *inProcessExecutor) ParameterSchema() map[string]any { return e.spec.ParameterSchema }
func (e *inProcessExecutor) AsToolSpec() chatmsg.ToolSpec     { return e.spec }
func (e *inProcessExecutor) CanHandle(call chatmsg.ToolCall) bool {
	return strings.EqualFold(call.Function.Name, e.spec.Name)
}

func (e *inProcessExecutor) Execute(ctx context.Context, call chatmsg.ToolCall, timeout time.Duration) (string, error) {
	if err := validateArguments(e.spec.ParameterSchema, call.Function.Arguments); err != nil {
		return "", err
	}
	if timeout <= 0 {
		return e.fn(ctx, call.Function.Arguments)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return e.fn(callCtx, call.Function.Arguments)
}

// validateArguments checks argumentsJSON against schema using gojsonschema,
// the way the teacher validates tool-call arguments before dispatch. A nil
// or empty schema is treated as "accepts anything."
func validateArguments(schema map[string]any, argumentsJSON string) error {
	if len(schema) == 0 {
		return nil
	}
	args := argumentsJSON
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	var parsed any
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return agonerr.Newf(agonerr.InvalidArgument, err, "tool arguments are not valid JSON")
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(parsed))
	if err != nil {
		return agonerr.Newf(agonerr.InvalidArgument, err, "schema validation error")
	}
	if result.Valid() {
		return nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		details = append(details, e.String())
	}
	return agonerr.New(agonerr.InvalidArgument, fmt.Sprintf("arguments failed schema validation: %s", strings.Join(details, "; ")), nil)
}
