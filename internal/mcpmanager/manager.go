// Package mcpmanager implements the Server Manager (spec.md §4.3): a
// registry that deduplicates MCP subprocesses by canonical config key,
// reference-counts acquire/release, and recreates unhealthy clients on
// demand. The package keeps no global instance: every Manager comes from
// New, and subprocesses are shared only among callers of the same Manager.
package mcpmanager

import (
	"context"
	"sync"

	"github.com/mwiater/agon-mcp/internal/logging"
	"github.com/mwiater/agon-mcp/internal/mcpclient"
	"github.com/mwiater/agon-mcp/internal/mcpconfig"
)

// entry pairs a live client with the number of registries currently holding
// a reference to it.
type entry struct {
	client   *mcpclient.Client
	refCount int
}

// Manager owns every MCP subprocess the runtime spawns. The zero value is
// not usable; construct with New.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New constructs an empty Manager. Most callers share one Manager across
// every Registry built from the same or different config files, which is
// what makes subprocess deduplication effective.
func New() *Manager {
	return &Manager{entries: make(map[string]*entry)}
}

// Acquire returns a ready client for cfg, spawning a new subprocess only if
// no healthy client is already registered under cfg's canonical key.
func (m *Manager) Acquire(ctx context.Context, cfg mcpconfig.ServerConfig) (*mcpclient.Client, error) {
	key := cfg.Key()

	m.mu.Lock()
	if e, ok := m.entries[key]; ok {
		if isHealthy(e.client) {
			e.refCount++
			m.mu.Unlock()
			return e.client, nil
		}
		delete(m.entries, key)
		m.mu.Unlock()
		_ = e.client.Dispose()
		logging.LogEvent("mcp manager: recreating unhealthy client for %q", cfg.Name)
	} else {
		m.mu.Unlock()
	}

	client := mcpclient.New(cfg)
	if err := client.Initialize(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	e, raced := m.entries[key]
	if raced {
		e.refCount++
	} else {
		m.entries[key] = &entry{client: client, refCount: 1}
	}
	m.mu.Unlock()

	if raced {
		// Another acquire won the race while we were spawning; keep theirs
		// and dispose of the duplicate we just started.
		_ = client.Dispose()
		return e.client, nil
	}
	return client, nil
}

// Release decrements the refcount for the client registered under cfg's
// key, disposing and removing it once the count reaches zero. Release is a
// no-op if client is not the currently registered client for that key (it
// was already replaced by a recreate).
func (m *Manager) Release(cfg mcpconfig.ServerConfig, client *mcpclient.Client) {
	key := cfg.Key()

	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok || e.client != client {
		m.mu.Unlock()
		return
	}
	e.refCount--
	if e.refCount > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.entries, key)
	m.mu.Unlock()

	_ = client.Dispose()
	logging.LogEvent("mcp manager: disposed client for %q (refcount reached 0)", cfg.Name)
}

// ShutdownAll disposes and removes every entry, regardless of refcount. It
// is meant for process exit.
func (m *Manager) ShutdownAll() {
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[string]*entry)
	m.mu.Unlock()

	for key, e := range entries {
		_ = e.client.Dispose()
		logging.LogEvent("mcp manager: shut down client %q", key)
	}
}

// Status is one row of a Manager snapshot.
type Status struct {
	RefCount  int
	ToolCount int
}

// Status returns a snapshot of every live entry keyed by canonical config
// key.
func (m *Manager) Status() map[string]Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Status, len(m.entries))
	for key, e := range m.entries {
		out[key] = Status{RefCount: e.refCount, ToolCount: len(e.client.Tools())}
	}
	return out
}

func isHealthy(c *mcpclient.Client) bool {
	return c.Healthy()
}
