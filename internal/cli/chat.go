package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mwiater/agon-mcp/internal/agent"
	"github.com/mwiater/agon-mcp/internal/chatapi"
	"github.com/mwiater/agon-mcp/internal/logging"
	"github.com/mwiater/agon-mcp/internal/mcpmanager"
	"github.com/mwiater/agon-mcp/internal/registry"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session backed by MCP tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		manager := mcpmanager.New()
		defer manager.ShutdownAll()

		reg := registry.NewMCPRegistry(manager)
		if doc, err := os.ReadFile(cfg.MCPServersPath); err == nil {
			if err := reg.Initialize(cmd.Context(), doc); err != nil {
				return fmt.Errorf("initialize tool registry: %w", err)
			}
		} else {
			logging.LogEvent("chat: no mcp servers document at %q (%v); starting with no tools", cfg.MCPServersPath, err)
		}
		defer reg.Shutdown()

		var filtered registry.Registry = registry.NewFilteredRegistry(reg, cfg.AllowedTools)

		client := chatapi.New(cfg.ResolvedBaseURL(), cfg.APIKey, cfg.RequestTimeout())

		a, err := agent.New(cfg.SystemPrompt, filtered, client, cfg.DecodingDefaults(), cfg.AllowedTools)
		if err != nil {
			return fmt.Errorf("construct agent: %w", err)
		}

		return runREPL(context.Background(), a)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
