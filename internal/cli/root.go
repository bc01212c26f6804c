// Package cli implements the command-line entry points: the root command,
// `chat` (interactive bubbletea REPL), and `status` (Server Manager
// snapshot). None of this is part of the hard core the runtime specifies;
// it exists only to exercise it end to end.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/agon-mcp/internal/appconfig"
	"github.com/mwiater/agon-mcp/internal/logging"
)

var (
	cfgFile       string
	debugFlag     bool
	currentConfig appconfig.Config

	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "agon-mcp",
	Short: "agon-mcp — an LLM agent that drives tools over the Model Context Protocol",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := appconfig.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cmd.Flags().Changed("debug") {
			cfg.Debug = debugFlag
		}
		currentConfig = cfg

		if cfg.Debug {
			_ = os.Setenv("MCP_LOG_LEVEL", "debug")
		}
		if err := logging.Init(cfg.LogFilePath()); err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		logging.SetLevel(logging.LevelFromEnv())
		return nil
	},
}

// SetVersionInfo records build metadata for the --version flag, set by
// main via ldflags the way the teacher's cmd/agon/main.go does.
func SetVersionInfo(v, c, d string) {
	version, commit, date = v, c, d
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
}

// Execute runs the root command, exiting the process with status 1 on
// error.
func Execute() {
	defer logging.Close()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the configuration materialized by PersistentPreRunE.
func GetConfig() appconfig.Config {
	return currentConfig
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (defaults to config/config.json)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}
