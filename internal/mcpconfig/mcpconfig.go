// Package mcpconfig parses the mcpServers configuration document (spec.md
// §6.3) and derives the canonical dedup key for each server (spec.md §3).
package mcpconfig

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mwiater/agon-mcp/internal/agonerr"
)

// ServerConfig is one entry of the mcpServers document.
type ServerConfig struct {
	Name             string
	Command          string
	Args             []string
	Env              map[string]string
	WorkingDirectory string
}

// Key returns the canonical dedup key: the tuple (command, space-joined
// args, pipe-joined sorted "K=V" env, workingDirectory) per spec.md §3.
func (c ServerConfig) Key() string {
	envPairs := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		envPairs = append(envPairs, k+"="+v)
	}
	sort.Strings(envPairs)
	return strings.Join([]string{
		c.Command,
		strings.Join(c.Args, " "),
		strings.Join(envPairs, "|"),
		c.WorkingDirectory,
	}, "\x1f")
}

// document is the raw shape of the mcpServers JSON config file.
type document struct {
	MCPServers map[string]struct {
		Command          string            `json:"command"`
		Args             []string          `json:"args"`
		Env              map[string]string `json:"env"`
		WorkingDirectory string            `json:"workingDirectory"`
	} `json:"mcpServers"`
}

// Parse decodes an mcpServers document, defaulting Env to empty and Args to
// an empty sequence per spec.md §6.3. Unknown fields are ignored because the
// document is decoded into a fixed shape rather than a map[string]any.
func Parse(data []byte) ([]ServerConfig, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, agonerr.Newf(agonerr.InvalidArgument, err, "parse mcpServers document")
	}
	if len(doc.MCPServers) == 0 {
		return nil, agonerr.New(agonerr.InvalidArgument, "mcpServers document has no servers", nil)
	}

	names := make([]string, 0, len(doc.MCPServers))
	for name := range doc.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)

	configs := make([]ServerConfig, 0, len(names))
	for _, name := range names {
		raw := doc.MCPServers[name]
		if strings.TrimSpace(raw.Command) == "" {
			return nil, agonerr.Newf(agonerr.InvalidArgument, nil, "mcp server %q has no command", name)
		}
		args := raw.Args
		if args == nil {
			args = []string{}
		}
		env := raw.Env
		if env == nil {
			env = map[string]string{}
		}
		configs = append(configs, ServerConfig{
			Name:             name,
			Command:          raw.Command,
			Args:             args,
			Env:              env,
			WorkingDirectory: raw.WorkingDirectory,
		})
	}
	return configs, nil
}

// String renders the config for logging.
func (c ServerConfig) String() string {
	return fmt.Sprintf("%s(%s %s)", c.Name, c.Command, strings.Join(c.Args, " "))
}
