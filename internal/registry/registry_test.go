package registry

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/mwiater/agon-mcp/internal/agonerr"
	"github.com/mwiater/agon-mcp/internal/chatmsg"
	"github.com/mwiater/agon-mcp/internal/mcpmanager"
)

// TestHelperProcess is spawned as a subprocess and acts as a minimal MCP
// server. Which tool it exposes is controlled by HELPER_TOOL so different
// test servers can expose distinct (or colliding) tool names.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	toolName := os.Getenv("HELPER_TOOL")
	if toolName == "" {
		toolName = "echo"
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			return
		}
		var req struct {
			ID     int64  `json:"id"`
			Method string `json:"method"`
		}
		if jsonErr := json.Unmarshal(line, &req); jsonErr != nil {
			continue
		}
		switch req.Method {
		case "tools/list":
			fmt.Fprintf(os.Stdout, `{"jsonrpc":"2.0","id":%d,"result":{"tools":[{"name":%q,"description":"test tool","inputSchema":{"type":"object"}}]}}`+"\n", req.ID, toolName)
		case "tools/call":
			fmt.Fprintf(os.Stdout, `{"jsonrpc":"2.0","id":%d,"result":{"content":[{"type":"text","text":"ok from %s"}]}}`+"\n", req.ID, toolName)
		default:
			fmt.Fprintf(os.Stdout, `{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"method not found"}}`+"\n", req.ID)
		}
	}
}

func serverDoc(t *testing.T, servers map[string]string) []byte {
	t.Helper()
	type entry struct {
		Command string            `json:"command"`
		Args    []string          `json:"args"`
		Env     map[string]string `json:"env"`
	}
	doc := struct {
		MCPServers map[string]entry `json:"mcpServers"`
	}{MCPServers: make(map[string]entry, len(servers))}
	for name, toolName := range servers {
		doc.MCPServers[name] = entry{
			Command: os.Args[0],
			Args:    []string{"-test.run=TestHelperProcess"},
			Env: map[string]string{
				"GO_WANT_HELPER_PROCESS": "1",
				"HELPER_TOOL":            toolName,
			},
		}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal doc: %v", err)
	}
	return data
}

func TestInitializeRegistersToolsFromEveryServer(t *testing.T) {
	r := NewMCPRegistry(mcpmanager.New())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	doc := serverDoc(t, map[string]string{"alpha": "tool_a", "beta": "tool_b"})
	if err := r.Initialize(ctx, doc); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer r.Shutdown()

	tools := r.ListTools()
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %+v", tools)
	}
}

func TestInitializeTwiceFails(t *testing.T) {
	r := NewMCPRegistry(mcpmanager.New())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	doc := serverDoc(t, map[string]string{"alpha": "tool_a"})
	if err := r.Initialize(ctx, doc); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer r.Shutdown()

	if err := r.Initialize(ctx, doc); !agonerr.Is(err, agonerr.InvalidArgument) {
		t.Fatalf("expected invalid-argument on second Initialize, got %v", err)
	}
}

func TestInitializeRejectsMalformedDocument(t *testing.T) {
	r := NewMCPRegistry(mcpmanager.New())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Initialize(ctx, []byte(`not json`)); !agonerr.Is(err, agonerr.InvalidArgument) {
		t.Fatalf("expected invalid-argument for malformed document, got %v", err)
	}
}

func TestInitializeTogeratesOneServerFailing(t *testing.T) {
	r := NewMCPRegistry(mcpmanager.New())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	doc := serverDoc(t, map[string]string{"good": "tool_a"})
	// Splice in a server whose command does not exist.
	var parsed map[string]any
	_ = json.Unmarshal(doc, &parsed)
	servers := parsed["mcpServers"].(map[string]any)
	servers["broken"] = map[string]any{"command": "/nonexistent/no-such-binary-xyz"}
	patched, _ := json.Marshal(parsed)

	if err := r.Initialize(ctx, patched); err != nil {
		t.Fatalf("Initialize should tolerate a single failing server, got %v", err)
	}
	defer r.Shutdown()

	tools := r.ListTools()
	if len(tools) != 1 {
		t.Fatalf("expected the one healthy server's tool to register, got %+v", tools)
	}
}

func TestExecuteDispatchesByName(t *testing.T) {
	r := NewMCPRegistry(mcpmanager.New())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	doc := serverDoc(t, map[string]string{"alpha": "tool_a"})
	if err := r.Initialize(ctx, doc); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer r.Shutdown()

	out, err := r.Execute(ctx, chatmsg.ToolCall{Function: chatmsg.FunctionCall{Name: "tool_a", Arguments: "{}"}}, time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "ok from tool_a" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestExecuteUnknownToolFailsWithNoExecutor(t *testing.T) {
	r := NewMCPRegistry(mcpmanager.New())
	_, err := r.Execute(context.Background(), chatmsg.ToolCall{Function: chatmsg.FunctionCall{Name: "nope"}}, time.Second)
	if !agonerr.Is(err, agonerr.NoExecutor) {
		t.Fatalf("expected no-executor, got %v", err)
	}
}

func TestShutdownReleasesManagerEntries(t *testing.T) {
	manager := mcpmanager.New()
	r := NewMCPRegistry(manager)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	doc := serverDoc(t, map[string]string{"alpha": "tool_a"})
	if err := r.Initialize(ctx, doc); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	r.Shutdown()

	if len(manager.Status()) != 0 {
		t.Fatalf("expected manager to have no entries after Shutdown")
	}
	if len(r.ListTools()) != 0 {
		t.Fatalf("expected registry to have no tools after Shutdown")
	}
}
