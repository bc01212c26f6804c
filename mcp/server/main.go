// Command mcp-reference-server is a minimal MCP server over stdio,
// framed as line-delimited JSON-RPC 2.0 (spec.md §4.1/§6.2): one request
// or response per '\n'-terminated line, no Content-Length headers. It
// exposes two tools, current_time and get_weather, for exercising the
// rest of the runtime end to end.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mwiater/agon-mcp/mcp/tools"
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func registeredTools() []tools.Tool {
	return []tools.Tool{
		{Definition: tools.CurrentTimeDefinition(), Handler: tools.CurrentTime},
		{Definition: tools.CurrentWeatherDefinition(), Handler: tools.CurrentWeather},
	}
}

func writeLine(w *bufio.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return err
	}
	return w.Flush()
}

func result(id json.RawMessage, v any) response {
	return response{JSONRPC: "2.0", ID: id, Result: v}
}

func errorResult(id json.RawMessage, code int, msg string) response {
	return response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg}}
}

func handle(req request, registry []tools.Tool) response {
	switch req.Method {
	case "tools/list":
		defs := make([]tools.Definition, len(registry))
		for i, t := range registry {
			defs[i] = t.Definition
		}
		return result(req.ID, map[string]any{"tools": defs})

	case "tools/call":
		var p toolsCallParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &p); err != nil {
				return errorResult(req.ID, -32602, "invalid params")
			}
		}
		if p.Arguments == nil {
			p.Arguments = map[string]any{}
		}
		for _, t := range registry {
			if t.Definition.Name != p.Name {
				continue
			}
			content, err := t.Handler(p.Arguments)
			if err != nil {
				return result(req.ID, map[string]any{
					"content": []tools.ContentPart{{Type: "text", Text: err.Error()}},
					"isError": true,
				})
			}
			return result(req.ID, map[string]any{"content": content})
		}
		return errorResult(req.ID, -32601, fmt.Sprintf("unknown tool: %s", p.Name))

	default:
		return errorResult(req.ID, -32601, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func main() {
	registry := registeredTools()
	r := bufio.NewReader(os.Stdin)
	w := bufio.NewWriter(os.Stdout)

	for {
		line, err := r.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			if err == io.EOF {
				return
			}
			return
		}
		var req request
		if jsonErr := json.Unmarshal(line, &req); jsonErr != nil {
			continue
		}
		if writeErr := writeLine(w, handle(req, registry)); writeErr != nil {
			return
		}
		if err == io.EOF {
			return
		}
	}
}
