// Package appconfig loads the runtime's configuration: the chat API
// endpoint, the mcpServers document path, the system prompt, and the
// decoding defaults, merged from a config file, environment variables, and
// CLI flags via viper (flags > env > file > defaults).
package appconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mwiater/agon-mcp/internal/decoding"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// defaultRequestTimeout bounds every chat-completions HTTP call.
	defaultRequestTimeout = 60 * time.Second
	// defaultBaseURL is used when the config omits baseUrl.
	defaultBaseURL = "https://api.deepseek.com"
)

// Config is the top-level application configuration.
type Config struct {
	APIKey         string   `mapstructure:"apiKey" json:"apiKey"`
	BaseURL        string   `mapstructure:"baseUrl" json:"baseUrl"`
	Model          string   `mapstructure:"model" json:"model"`
	MCPServersPath string   `mapstructure:"mcpServersPath" json:"mcpServersPath"`
	SystemPrompt   string   `mapstructure:"systemPrompt" json:"systemPrompt"`
	AllowedTools   []string `mapstructure:"allowedTools" json:"allowedTools"`
	TimeoutSeconds int      `mapstructure:"timeout" json:"timeout,omitempty"`
	LogFile        string   `mapstructure:"logFile" json:"logFile,omitempty"`
	Debug          bool     `mapstructure:"debug" json:"debug"`
	ConfigPath     string   `mapstructure:"-" json:"-"`
}

// RequestTimeout returns the HTTP client timeout, falling back to the
// default if unset.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ResolvedBaseURL returns BaseURL with a default applied.
func (c Config) ResolvedBaseURL() string {
	if strings.TrimSpace(c.BaseURL) != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

// LogFilePath returns the path to the application log file, applying a
// default if not set.
func (c Config) LogFilePath() string {
	if path := strings.TrimSpace(c.LogFile); path != "" {
		return path
	}
	return "agon-mcp.log"
}

// DecodingDefaults builds a decoding.Config seeded from this Config's Model
// field, falling back to decoding.Default()'s model when unset.
func (c Config) DecodingDefaults() decoding.Config {
	cfg := decoding.Default()
	if strings.TrimSpace(c.Model) != "" {
		cfg.Model = c.Model
	}
	return cfg
}

// Load reads the application configuration from path (or viper's already-
// configured search path if path is empty), merging CLI flags and
// environment variables bound by the caller on top of it.
func Load(path string) (Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("json")
		viper.AddConfigPath("config")
		viper.AddConfigPath(".")
	}

	viper.SetDefault("baseUrl", defaultBaseURL)
	viper.SetDefault("mcpServersPath", "mcpServers.json")
	viper.SetDefault("systemPrompt", "You are a helpful assistant with access to external tools.")
	viper.SetDefault("timeout", int(defaultRequestTimeout.Seconds()))
	viper.SetDefault("debug", false)

	viper.SetEnvPrefix("AGON")
	viper.AutomaticEnv()
	// spec.md §6.4 names DEEPSEEK_API_KEY, not AGON_APIKEY, as the external
	// auth interface; bind it explicitly alongside the AGON_ prefix.
	if err := viper.BindEnv("apiKey", "DEEPSEEK_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind DEEPSEEK_API_KEY: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("failed to load config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ConfigPath = path
	return cfg, nil
}
