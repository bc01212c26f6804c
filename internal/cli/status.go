package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mwiater/agon-mcp/internal/mcpconfig"
	"github.com/mwiater/agon-mcp/internal/mcpmanager"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Acquire every configured MCP server and print a Server Manager snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		doc, err := os.ReadFile(cfg.MCPServersPath)
		if err != nil {
			return fmt.Errorf("read %s: %w", cfg.MCPServersPath, err)
		}
		configs, err := mcpconfig.Parse(doc)
		if err != nil {
			return fmt.Errorf("parse %s: %w", cfg.MCPServersPath, err)
		}

		manager := mcpmanager.New()
		defer manager.ShutdownAll()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		for _, sc := range configs {
			if _, err := manager.Acquire(ctx, sc); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %v\n", renderBadge("error", sc.Name), err)
				continue
			}
		}

		status := manager.Status()
		names := make([]string, 0, len(status))
		for name := range status {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			s := status[name]
			fmt.Fprintf(cmd.OutOrStdout(), "%s  tools=%d refs=%d\n", renderBadge("active", name), s.ToolCount, s.RefCount)
		}
		return nil
	},
}

func renderBadge(state, label string) string {
	bg := lipgloss.Color("22")
	if state == "error" {
		bg = lipgloss.Color("124")
	}
	badgeStyle := lipgloss.NewStyle().Background(bg).Foreground(lipgloss.Color("15")).Padding(0, 1)
	return badgeStyle.Render(label)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
