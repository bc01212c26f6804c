package toolexec

import (
	"context"
	"testing"
	"time"

	"github.com/mwiater/agon-mcp/internal/agonerr"
	"github.com/mwiater/agon-mcp/internal/chatmsg"
)

type fakeMCPBackend struct {
	lastArgs string
	out      string
	err      error
}

func (f *fakeMCPBackend) Execute(ctx context.Context, name, argumentsJSON string, timeout time.Duration) (string, error) {
	f.lastArgs = argumentsJSON
	return f.out, f.err
}

func weatherSpec() chatmsg.ToolSpec {
	return chatmsg.ToolSpec{
		Name:        "get_weather",
		Description: "gets current weather for a location",
		ParameterSchema: map[string]any{
			"type":     "object",
			"required": []any{"location"},
			"properties": map[string]any{
				"location": map[string]any{"type": "string"},
			},
		},
	}
}

func TestMCPExecutorDispatchesToClient(t *testing.T) {
	backend := &fakeMCPBackend{out: "24C sunny"}
	exec := NewMCPExecutor(backend, weatherSpec())

	call := chatmsg.ToolCall{ID: "c1", Type: "function", Function: chatmsg.FunctionCall{Name: "get_weather", Arguments: `{"location":"Hangzhou"}`}}
	if !exec.CanHandle(call) {
		t.Fatalf("expected executor to handle matching tool call")
	}
	out, err := exec.Execute(context.Background(), call, time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "24C sunny" {
		t.Fatalf("unexpected output: %q", out)
	}
	if backend.lastArgs != `{"location":"Hangzhou"}` {
		t.Fatalf("expected arguments forwarded verbatim, got %q", backend.lastArgs)
	}
}

func TestMCPExecutorRejectsArgumentsFailingSchema(t *testing.T) {
	backend := &fakeMCPBackend{out: "unused"}
	exec := NewMCPExecutor(backend, weatherSpec())

	call := chatmsg.ToolCall{Function: chatmsg.FunctionCall{Name: "get_weather", Arguments: `{}`}}
	_, err := exec.Execute(context.Background(), call, time.Second)
	if !agonerr.Is(err, agonerr.InvalidArgument) {
		t.Fatalf("expected invalid-argument for missing required field, got %v", err)
	}
	if backend.lastArgs != "" {
		t.Fatalf("expected backend not to be called when validation fails")
	}
}

func TestMCPExecutorCanHandleIsCaseInsensitive(t *testing.T) {
	exec := NewMCPExecutor(&fakeMCPBackend{}, weatherSpec())
	call := chatmsg.ToolCall{Function: chatmsg.FunctionCall{Name: "GET_WEATHER"}}
	if !exec.CanHandle(call) {
		t.Fatalf("expected case-insensitive match")
	}
}

func TestInProcessExecutorRunsFunction(t *testing.T) {
	spec := chatmsg.ToolSpec{Name: "current_time", Description: "returns the current time"}
	exec := NewInProcessExecutor(spec, func(ctx context.Context, argumentsJSON string) (string, error) {
		return "2026-07-31T00:00:00Z", nil
	})

	call := chatmsg.ToolCall{Function: chatmsg.FunctionCall{Name: "current_time", Arguments: "{}"}}
	out, err := exec.Execute(context.Background(), call, time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "2026-07-31T00:00:00Z" {
		t.Fatalf("unexpected output: %q", out)
	}
	if exec.AsToolSpec().Name != "current_time" {
		t.Fatalf("expected AsToolSpec to round-trip the name")
	}
}

func TestInProcessExecutorHonorsTimeout(t *testing.T) {
	spec := chatmsg.ToolSpec{Name: "slow", Description: "sleeps"}
	exec := NewInProcessExecutor(spec, func(ctx context.Context, argumentsJSON string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	call := chatmsg.ToolCall{Function: chatmsg.FunctionCall{Name: "slow", Arguments: "{}"}}
	_, err := exec.Execute(context.Background(), call, 50*time.Millisecond)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
}
