// Package mcpclient implements the MCP client (spec.md §4.2): a long-lived
// subprocess wrapper that speaks JSON-RPC 2.0 over line-delimited stdio,
// multiplexes concurrent in-flight requests by correlation id, performs
// tool discovery with fallback method names, and enforces per-request
// timeouts.
package mcpclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mwiater/agon-mcp/internal/agonerr"
	"github.com/mwiater/agon-mcp/internal/chatmsg"
	"github.com/mwiater/agon-mcp/internal/jsonrpc"
	"github.com/mwiater/agon-mcp/internal/logging"
	"github.com/mwiater/agon-mcp/internal/mcpconfig"
)

// State is the client's lifecycle stage (spec.md §3).
type State int

const (
	StateNew State = iota
	StateInitializing
	StateReady
	StateDisposed
)

const (
	// settleDelay is the brief pause after spawning before discovery, giving
	// the subprocess time to finish its own startup.
	settleDelay = 500 * time.Millisecond
	// DefaultCallTimeout is the default per-call execute timeout.
	DefaultCallTimeout = 30 * time.Second
	// discoveryTimeout bounds each tools/list(-like) discovery attempt.
	discoveryTimeout = 3 * time.Second
	// disposeGrace bounds how long Dispose waits for the subprocess to exit
	// after stdin is closed before force-killing it.
	disposeGrace = 2 * time.Second
)

var fallbackDiscoveryMethods = []string{"list_tools", "tools.list", "get_tools", "tools/get"}

type pending struct {
	respCh chan jsonrpc.Response
	errCh  chan error
}

// Client owns one MCP subprocess.
type Client struct {
	cfg mcpconfig.ServerConfig

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	writer *bufio.Writer
	reader *bufio.Reader

	stateMu sync.Mutex
	state   State

	seq int64 // accessed via atomic

	pendingMu sync.Mutex
	pendingM  map[int64]pending

	toolsMu sync.RWMutex
	tools   []chatmsg.ToolSpec

	unhealthy atomic.Bool
	readerWG  sync.WaitGroup
}

// New constructs a Client for the given server config. The subprocess is
// not started until Initialize is called.
func New(cfg mcpconfig.ServerConfig) *Client {
	return &Client{
		cfg:      cfg,
		state:    StateNew,
		pendingM: make(map[int64]pending),
	}
}

// State returns the client's current lifecycle stage.
func (c *Client) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// Initialize spawns the subprocess, starts the reader, performs tool
// discovery, and transitions to StateReady. It fails if called more than
// once, if the process fails to spawn, or if tool discovery fails on every
// method.
func (c *Client) Initialize(ctx context.Context) error {
	c.stateMu.Lock()
	if c.state != StateNew {
		c.stateMu.Unlock()
		return agonerr.New(agonerr.InvalidArgument, "mcp client already initialized", nil)
	}
	c.state = StateInitializing
	c.stateMu.Unlock()

	cmd := exec.CommandContext(ctx, c.cfg.Command, c.cfg.Args...)
	if c.cfg.WorkingDirectory != "" {
		cmd.Dir = c.cfg.WorkingDirectory
	}
	if len(c.cfg.Env) > 0 {
		env := cmd.Environ()
		for k, v := range c.cfg.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return agonerr.Newf(agonerr.MCPSpawnError, err, "mcp server %q stdin pipe", c.cfg.Name)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return agonerr.Newf(agonerr.MCPSpawnError, err, "mcp server %q stdout pipe", c.cfg.Name)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return agonerr.Newf(agonerr.MCPSpawnError, err, "mcp server %q stderr pipe", c.cfg.Name)
	}

	if err := cmd.Start(); err != nil {
		return agonerr.Newf(agonerr.MCPSpawnError, err, "start mcp server %q", c.cfg.Name)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.writer = bufio.NewWriter(stdin)
	c.reader = bufio.NewReader(stdout)

	c.readerWG.Add(1)
	go c.readLoop()
	go c.forwardStderr(stderr)

	logging.LogEvent("mcp server %q started: command=%s pid=%d", c.cfg.Name, c.cfg.Command, cmd.Process.Pid)

	select {
	case <-time.After(settleDelay):
	case <-ctx.Done():
		return agonerr.Newf(agonerr.MCPSpawnError, ctx.Err(), "mcp server %q settle wait", c.cfg.Name)
	}

	if err := c.discoverTools(ctx); err != nil {
		return err
	}

	c.stateMu.Lock()
	c.state = StateReady
	c.stateMu.Unlock()
	return nil
}

func (c *Client) forwardStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		level, msg := logging.ParseStderrLine(scanner.Text())
		logging.LogAtLevel(level, "mcp[%s]: %s", c.cfg.Name, msg)
	}
}

// readLoop demultiplexes inbound response lines by id; it is the single
// reader task required by spec.md §4.2/§9.
func (c *Client) readLoop() {
	defer c.readerWG.Done()
	for {
		resp, _, ok, err := jsonrpc.ReadLine(c.reader)
		if err != nil {
			c.failAllPending(agonerr.New(agonerr.MCPTimeout, "mcp client disposed: reader closed", err))
			c.unhealthy.Store(true)
			return
		}
		if !ok {
			continue // stray non-JSON-RPC line on stdout; discarded per spec.md §4.2
		}
		id, idOK := parseID(resp.ID)
		if !idOK {
			continue // notification or malformed id; not a response to anything we sent
		}
		c.pendingMu.Lock()
		p, found := c.pendingM[id]
		if found {
			delete(c.pendingM, id)
		}
		c.pendingMu.Unlock()
		if !found {
			continue // unmatched id: may be a server-initiated notification
		}
		p.respCh <- resp
	}
}

func parseID(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, false
	}
	return id, true
}

func (c *Client) failAllPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, p := range c.pendingM {
		p.errCh <- err
		delete(c.pendingM, id)
	}
}

func (c *Client) nextID() int64 {
	return atomic.AddInt64(&c.seq, 1)
}

// call sends one JSON-RPC request and waits for its matching response,
// honoring ctx and the given timeout.
func (c *Client) call(ctx context.Context, method string, params any, timeout time.Duration) (jsonrpc.Response, error) {
	id := c.nextID()
	req := jsonrpc.NewRequest(id, method, params)

	p := pending{respCh: make(chan jsonrpc.Response, 1), errCh: make(chan error, 1)}
	c.pendingMu.Lock()
	c.pendingM[id] = p
	c.pendingMu.Unlock()

	data, err := jsonrpc.Encode(req)
	if err != nil {
		c.dropPending(id)
		return jsonrpc.Response{}, err
	}
	logging.LogAtLevel(logging.LevelDebug, "mcp[%s]->: %s", c.cfg.Name, bytes.TrimSpace(data))

	writeErr := func() error {
		if _, err := c.writer.Write(data); err != nil {
			return err
		}
		return c.writer.Flush()
	}()
	if writeErr != nil {
		c.dropPending(id)
		return jsonrpc.Response{}, writeErr
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case resp := <-p.respCh:
		return resp, nil
	case err := <-p.errCh:
		return jsonrpc.Response{}, err
	case <-callCtx.Done():
		c.dropPending(id)
		return jsonrpc.Response{}, agonerr.Newf(agonerr.MCPTimeout, callCtx.Err(), "mcp %q call %s timed out", c.cfg.Name, method)
	}
}

func (c *Client) dropPending(id int64) {
	c.pendingMu.Lock()
	delete(c.pendingM, id)
	c.pendingMu.Unlock()
}

// discoverTools implements the discovery algorithm of spec.md §4.2.
func (c *Client) discoverTools(ctx context.Context) error {
	if tools, err := c.tryDiscover(ctx, "tools/list"); err == nil && tools != nil {
		c.setTools(tools)
		return nil
	}
	for _, method := range fallbackDiscoveryMethods {
		tools, err := c.tryDiscover(ctx, method)
		if err == nil && len(tools) > 0 {
			c.setTools(tools)
			return nil
		}
	}
	return agonerr.Newf(agonerr.MCPDiscoveryError, nil, "mcp server %q: no tools discovered via tools/list or fallbacks", c.cfg.Name)
}

func (c *Client) tryDiscover(ctx context.Context, method string) ([]chatmsg.ToolSpec, error) {
	resp, err := c.call(ctx, method, map[string]any{}, discoveryTimeout)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%s", resp.Error.Message)
	}
	var payload struct {
		Tools *[]struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &payload); err != nil {
		return nil, err
	}
	if payload.Tools == nil {
		return nil, nil // result.tools is null/absent, try the next method
	}
	specs := make([]chatmsg.ToolSpec, 0, len(*payload.Tools))
	for _, t := range *payload.Tools {
		specs = append(specs, chatmsg.ToolSpec{
			Name:            t.Name,
			Description:     t.Description,
			ParameterSchema: t.InputSchema,
		})
	}
	return specs, nil
}

func (c *Client) setTools(tools []chatmsg.ToolSpec) {
	c.toolsMu.Lock()
	c.tools = tools
	c.toolsMu.Unlock()
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	logging.LogEvent("mcp server %q tools: %s", c.cfg.Name, strings.Join(names, ", "))
}

// Tools returns the cached tool catalogue, immutable after Initialize.
func (c *Client) Tools() []chatmsg.ToolSpec {
	c.toolsMu.RLock()
	defer c.toolsMu.RUnlock()
	out := make([]chatmsg.ToolSpec, len(c.tools))
	copy(out, c.tools)
	return out
}

// Healthy reports whether the cached tool list is non-empty and the reader
// hasn't observed a terminal I/O error — the cheap check spec.md §4.3
// prescribes for the Server Manager, not a round-trip to the subprocess.
func (c *Client) Healthy() bool {
	if c.unhealthy.Load() {
		return false
	}
	if c.State() != StateReady {
		return false
	}
	return len(c.Tools()) > 0
}

// Execute calls tools/call and extracts the tool's textual result (spec.md
// §4.2). timeout defaults to DefaultCallTimeout when zero.
func (c *Client) Execute(ctx context.Context, name, argumentsJSON string, timeout time.Duration) (string, error) {
	if c.State() != StateReady {
		return "", agonerr.New(agonerr.InvalidArgument, "mcp client is not ready", nil)
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	var args map[string]any
	if strings.TrimSpace(argumentsJSON) == "" {
		args = map[string]any{}
	} else if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return "", agonerr.Newf(agonerr.InvalidArgument, err, "tool %q arguments are not a JSON object", name)
	}

	resp, err := c.call(ctx, "tools/call", map[string]any{"name": name, "arguments": args}, timeout)
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", agonerr.Newf(agonerr.MCPToolFailure, nil, "tool %q: %s", name, resp.Error.Message)
	}

	var payload struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(resp.Result, &payload); err != nil {
		return string(resp.Result), nil
	}
	if payload.IsError {
		msg := joinText(payload.Content)
		return "", agonerr.Newf(agonerr.MCPToolFailure, nil, "tool %q reported isError: %s", name, msg)
	}
	return joinText(payload.Content), nil
}

func joinText(content []struct {
	Type string `json:"type"`
	Text string `json:"text"`
}) string {
	var parts []string
	for _, c := range content {
		if c.Type == "text" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Dispose completes every still-pending call with a disposed-client error,
// kills the subprocess (after a grace period), and closes the reader.
func (c *Client) Dispose() error {
	c.stateMu.Lock()
	if c.state == StateDisposed {
		c.stateMu.Unlock()
		return nil
	}
	c.state = StateDisposed
	c.stateMu.Unlock()

	c.failAllPending(agonerr.New(agonerr.MCPTimeout, "mcp client disposed", nil))

	if c.stdin != nil {
		_ = c.stdin.Close()
	}

	var firstErr error
	if c.cmd != nil && c.cmd.Process != nil {
		done := make(chan error, 1)
		go func() { done <- c.cmd.Wait() }()
		select {
		case err := <-done:
			if err != nil {
				firstErr = err
			}
		case <-time.After(disposeGrace):
			_ = c.cmd.Process.Kill()
			if err := <-done; err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
