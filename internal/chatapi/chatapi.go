// Package chatapi implements the Chat API Client (spec.md §4.7): one
// operation, chat(messages, tools, decodingConfig?), against an
// OpenAI-compatible chat-completions HTTP endpoint.
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mwiater/agon-mcp/internal/agonerr"
	"github.com/mwiater/agon-mcp/internal/chatmsg"
	"github.com/mwiater/agon-mcp/internal/decoding"
	"github.com/mwiater/agon-mcp/internal/logging"
)

// excerptLimit bounds how much of a non-200 response body is kept in the
// returned error.
const excerptLimit = 2048

// Client speaks the OpenAI-compatible chat-completions protocol. The model
// name travels with each request's DecodingConfig (spec.md §3), not as a
// client-level setting.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// New constructs a Client.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type wireMessage struct {
	Role       chatmsg.Role        `json:"role"`
	Content    *string             `json:"content"`
	ToolCalls  []chatmsg.ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string              `json:"tool_call_id,omitempty"`
}

type wireToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type wireTool struct {
	Type     string           `json:"type"`
	Function wireToolFunction `json:"function"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Role      string             `json:"role"`
			Content   *string            `json:"content"`
			ToolCalls []chatmsg.ToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat submits one turn: messages plus, if non-empty, the tool catalogue,
// plus the flattened decoding parameters. cfg may be nil, in which case
// decoding.Default() is used.
func (c *Client) Chat(ctx context.Context, messages []chatmsg.ChatMessage, tools []chatmsg.ToolSpec, cfg *decoding.Config) (chatmsg.ChatMessage, error) {
	resolved := decoding.Default()
	if cfg != nil {
		resolved = *cfg
	}
	if err := resolved.Validate(); err != nil {
		return chatmsg.ChatMessage{}, err
	}

	body, err := buildRequestBody(messages, tools, resolved)
	if err != nil {
		return chatmsg.ChatMessage{}, agonerr.Newf(agonerr.InvalidArgument, err, "encode chat request")
	}
	logging.LogJSON("chat request", json.RawMessage(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return chatmsg.ChatMessage{}, agonerr.Newf(agonerr.UpstreamError, err, "build chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return chatmsg.ChatMessage{}, agonerr.Newf(agonerr.UpstreamError, err, "chat request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return chatmsg.ChatMessage{}, agonerr.Newf(agonerr.UpstreamError, err, "read chat response body")
	}
	logging.LogRequest("in", c.baseURL, fmt.Sprintf("status=%d", resp.StatusCode), respBody)

	if resp.StatusCode != http.StatusOK {
		return chatmsg.ChatMessage{}, agonerr.New(agonerr.UpstreamError, fmt.Sprintf("chat completions returned status %d: %s", resp.StatusCode, excerpt(respBody)), nil)
	}

	var parsed completionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return chatmsg.ChatMessage{}, agonerr.Newf(agonerr.UpstreamError, err, "malformed chat response: %s", excerpt(respBody))
	}
	if len(parsed.Choices) == 0 {
		return chatmsg.ChatMessage{}, agonerr.New(agonerr.UpstreamError, fmt.Sprintf("chat response has no choices: %s", excerpt(respBody)), nil)
	}

	choice := parsed.Choices[0].Message
	role := chatmsg.RoleAssistant
	if choice.Role != "" {
		role = chatmsg.Role(choice.Role)
	}
	return chatmsg.ChatMessage{
		Role:      role,
		Content:   choice.Content,
		ToolCalls: choice.ToolCalls,
	}, nil
}

func buildRequestBody(messages []chatmsg.ChatMessage, tools []chatmsg.ToolSpec, cfg decoding.Config) ([]byte, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(cfgJSON, &payload); err != nil {
		return nil, err
	}
	payload["messages"] = toWireMessages(messages)
	if len(tools) > 0 {
		payload["tools"] = toWireTools(tools)
	}
	return json.Marshal(payload)
}

func toWireMessages(messages []chatmsg.ChatMessage) []wireMessage {
	out := make([]wireMessage, len(messages))
	for i, m := range messages {
		out[i] = wireMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCalls:  m.ToolCalls,
			ToolCallID: m.ToolCallID,
		}
	}
	return out
}

func toWireTools(specs []chatmsg.ToolSpec) []wireTool {
	out := make([]wireTool, len(specs))
	for i, s := range specs {
		out[i] = wireTool{
			Type: "function",
			Function: wireToolFunction{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.ParameterSchema,
			},
		}
	}
	return out
}

func excerpt(body []byte) string {
	s := string(body)
	if len(s) > excerptLimit {
		return s[:excerptLimit] + "...(truncated)"
	}
	return s
}
