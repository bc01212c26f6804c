// Package agent implements the Agent Loop (spec.md §4.8): the iterative
// chat/tool driver that owns a transcript, borrows a registry and a chat
// client, and enforces a bounded round depth plus tool-access policy.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mwiater/agon-mcp/internal/agonerr"
	"github.com/mwiater/agon-mcp/internal/chatmsg"
	"github.com/mwiater/agon-mcp/internal/decoding"
	"github.com/mwiater/agon-mcp/internal/logging"
	"github.com/mwiater/agon-mcp/internal/registry"
)

// MaxRounds bounds how many chat/tool cycles one sendMessage call may run
// before it is treated as a runaway loop (spec.md §4.8, P7).
const MaxRounds = 40

// ToolTimeout is the default per-tool-call timeout used when dispatching
// through the registry.
const ToolTimeout = 30 * time.Second

// ChatClient is the surface the agent needs from the Chat API Client
// (spec.md §4.7); declared here so tests can supply a stub without
// depending on chatapi's HTTP implementation.
type ChatClient interface {
	Chat(ctx context.Context, messages []chatmsg.ChatMessage, tools []chatmsg.ToolSpec, cfg *decoding.Config) (chatmsg.ChatMessage, error)
}

// Agent drives one conversation: a transcript, a system prompt, a borrowed
// registry and chat client, a current DecodingConfig, and an optional
// tool-name allow-list enforced independently of whatever filtering the
// registry itself already applies.
type Agent struct {
	mu sync.Mutex

	systemPrompt string
	reg          registry.Registry
	chatClient   ChatClient
	cfg          decoding.Config
	allowed      map[string]struct{} // nil means unrestricted
	transcript   []chatmsg.ChatMessage
}

// New constructs an Agent. If allowed is non-nil, every name in it must
// already be exposed by reg.ListTools(), else construction fails with
// invalid-argument (spec.md §4.8 "construction-time validation").
func New(systemPrompt string, reg registry.Registry, chatClient ChatClient, cfg decoding.Config, allowed []string) (*Agent, error) {
	var allowedSet map[string]struct{}
	if allowed != nil {
		known := make(map[string]struct{})
		for _, spec := range reg.ListTools() {
			known[spec.Name] = struct{}{}
		}
		allowedSet = make(map[string]struct{}, len(allowed))
		for _, name := range allowed {
			if _, ok := known[name]; !ok {
				return nil, agonerr.Newf(agonerr.InvalidArgument, nil, "allowed tool %q is not in the registry", name)
			}
			allowedSet[name] = struct{}{}
		}
	}
	return &Agent{
		systemPrompt: systemPrompt,
		reg:          reg,
		chatClient:   chatClient,
		cfg:          cfg,
		allowed:      allowedSet,
	}, nil
}

// Transcript returns a copy of the current message sequence.
func (a *Agent) Transcript() []chatmsg.ChatMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]chatmsg.ChatMessage, len(a.transcript))
	copy(out, a.transcript)
	return out
}

// ClearConversation removes every non-system message; the system message
// stays and is re-anchored on the next SendMessage call.
func (a *Agent) ClearConversation() {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.transcript[:0:0]
	for _, m := range a.transcript {
		if m.Role == chatmsg.RoleSystem {
			kept = append(kept, m)
		}
	}
	a.transcript = kept
}

func (a *Agent) anchorSystemPrompt() {
	filtered := a.transcript[:0:0]
	for _, m := range a.transcript {
		if m.Role != chatmsg.RoleSystem {
			filtered = append(filtered, m)
		}
	}
	prompt := a.systemPrompt
	a.transcript = append([]chatmsg.ChatMessage{chatmsg.NewText(chatmsg.RoleSystem, prompt)}, filtered...)
}

// SendMessage runs the full chat/tool loop for one user turn (spec.md
// §4.8). configOverride, if non-nil, is used instead of the agent's current
// DecodingConfig for every chat call made during this turn.
func (a *Agent) SendMessage(ctx context.Context, userText string, configOverride *decoding.Config) (chatmsg.ChatMessage, error) {
	a.mu.Lock()
	a.anchorSystemPrompt()
	a.transcript = append(a.transcript, chatmsg.NewText(chatmsg.RoleUser, userText))
	cfg := a.cfg
	if configOverride != nil {
		cfg = *configOverride
	}
	a.mu.Unlock()

	rounds := 0
	for {
		a.mu.Lock()
		transcript := append([]chatmsg.ChatMessage(nil), a.transcript...)
		tools := a.reg.ListTools()
		a.mu.Unlock()

		assistant, err := a.chatClient.Chat(ctx, transcript, tools, &cfg)
		if err != nil {
			return chatmsg.ChatMessage{}, err
		}

		a.mu.Lock()
		a.transcript = append(a.transcript, assistant)
		a.mu.Unlock()

		if len(assistant.ToolCalls) == 0 {
			return assistant, nil
		}

		rounds++
		if rounds > MaxRounds {
			a.abortCleanup(assistant.ToolCalls)
			return chatmsg.ChatMessage{}, agonerr.Newf(agonerr.RunawayLoop, nil, "sendMessage exceeded %d rounds", MaxRounds)
		}

		if err := a.validateToolAccess(assistant.ToolCalls); err != nil {
			return chatmsg.ChatMessage{}, err
		}

		for _, call := range assistant.ToolCalls {
			result, execErr := a.reg.Execute(ctx, call, ToolTimeout)
			var content string
			if execErr != nil {
				content = fmt.Sprintf("Tool execution failed: %s", execErr.Error())
				logging.LogEvent("agent: tool %q failed: %v", call.Function.Name, execErr)
			} else {
				content = result
			}
			a.mu.Lock()
			a.transcript = append(a.transcript, chatmsg.NewToolResult(call.ID, content))
			a.mu.Unlock()
		}
	}
}

// validateToolAccess is the defense-in-depth check of spec.md §4.8 step e:
// even though the model only ever sees the registry's already-filtered
// catalogue, a hallucinated tool name is rejected here too.
func (a *Agent) validateToolAccess(calls []chatmsg.ToolCall) error {
	a.mu.Lock()
	allowed := a.allowed
	a.mu.Unlock()
	if allowed == nil {
		return nil
	}
	for _, call := range calls {
		if _, ok := allowed[call.Function.Name]; !ok {
			return agonerr.Newf(agonerr.AccessDenied, nil, "tool %q is not permitted for this agent", call.Function.Name)
		}
	}
	return nil
}

// abortCleanup implements spec.md §4.8's abort-cleanup protocol: every tool
// call in the offending assistant message still lacking a role=tool reply
// gets one explaining the round bound was hit, followed by an assistant
// message stating the same, so the transcript stays well-formed.
func (a *Agent) abortCleanup(calls []chatmsg.ToolCall) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Only replies after the offending (last) assistant message count: a
	// model may reuse a call id across rounds.
	start := 0
	for i := len(a.transcript) - 1; i >= 0; i-- {
		if a.transcript[i].Role == chatmsg.RoleAssistant {
			start = i + 1
			break
		}
	}
	answered := make(map[string]struct{})
	for _, m := range a.transcript[start:] {
		if m.Role == chatmsg.RoleTool {
			answered[m.ToolCallID] = struct{}{}
		}
	}
	for _, call := range calls {
		if _, ok := answered[call.ID]; ok {
			continue
		}
		a.transcript = append(a.transcript, chatmsg.NewToolResult(call.ID, "Tool execution terminated: exceeded maximum round bound"))
	}
	a.transcript = append(a.transcript, chatmsg.NewText(chatmsg.RoleAssistant, "Conversation terminated: exceeded maximum round bound"))
}

// Temperature returns the agent's current decoding temperature.
func (a *Agent) Temperature() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Temperature
}

// SetTemperature overrides the agent's current decoding temperature.
func (a *Agent) SetTemperature(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.Temperature = v
}

// TopP returns the agent's current decoding top_p.
func (a *Agent) TopP() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.TopP
}

// SetTopP overrides the agent's current decoding top_p.
func (a *Agent) SetTopP(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.TopP = v
}

// MaxTokens returns the agent's current decoding max_tokens.
func (a *Agent) MaxTokens() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.MaxTokens
}

// SetMaxTokens overrides the agent's current decoding max_tokens.
func (a *Agent) SetMaxTokens(v int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.MaxTokens = v
}

// FrequencyPenalty returns the agent's current decoding frequency_penalty.
func (a *Agent) FrequencyPenalty() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.FrequencyPenalty
}

// SetFrequencyPenalty overrides the agent's current decoding
// frequency_penalty.
func (a *Agent) SetFrequencyPenalty(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.FrequencyPenalty = v
}

// PresencePenalty returns the agent's current decoding presence_penalty.
func (a *Agent) PresencePenalty() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.PresencePenalty
}

// SetPresencePenalty overrides the agent's current decoding
// presence_penalty.
func (a *Agent) SetPresencePenalty(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.PresencePenalty = v
}
