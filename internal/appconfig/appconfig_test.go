package appconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, dir string, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	path := writeConfig(t, dir, `{"apiKey":"sk-123","systemPrompt":"custom prompt","allowedTools":["get_weather"]}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "sk-123" {
		t.Fatalf("expected apiKey from file, got %q", cfg.APIKey)
	}
	if cfg.SystemPrompt != "custom prompt" {
		t.Fatalf("expected systemPrompt override, got %q", cfg.SystemPrompt)
	}
	if len(cfg.AllowedTools) != 1 || cfg.AllowedTools[0] != "get_weather" {
		t.Fatalf("expected allowedTools from file, got %v", cfg.AllowedTools)
	}
	if cfg.ResolvedBaseURL() != defaultBaseURL {
		t.Fatalf("expected default baseUrl, got %q", cfg.ResolvedBaseURL())
	}
}

func TestLoadAppliesDefaultsWhenFileMissing(t *testing.T) {
	viper.Reset()
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("Load should tolerate a missing file, got %v", err)
	}
	if cfg.ResolvedBaseURL() != defaultBaseURL {
		t.Fatalf("expected default baseUrl, got %q", cfg.ResolvedBaseURL())
	}
	if cfg.MCPServersPath != "mcpServers.json" {
		t.Fatalf("expected default mcpServersPath, got %q", cfg.MCPServersPath)
	}
}

func TestLoadReadsAPIKeyFromDeepseekEnvVar(t *testing.T) {
	viper.Reset()
	t.Setenv("DEEPSEEK_API_KEY", "sk-from-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "sk-from-env" {
		t.Fatalf("expected apiKey from DEEPSEEK_API_KEY, got %q", cfg.APIKey)
	}
}

func TestRequestTimeoutFallsBackToDefault(t *testing.T) {
	cfg := Config{}
	if cfg.RequestTimeout() != defaultRequestTimeout {
		t.Fatalf("expected default timeout, got %v", cfg.RequestTimeout())
	}
	cfg.TimeoutSeconds = 5
	if cfg.RequestTimeout().Seconds() != 5 {
		t.Fatalf("expected 5s timeout, got %v", cfg.RequestTimeout())
	}
}

func TestLogFilePathDefault(t *testing.T) {
	cfg := Config{}
	if cfg.LogFilePath() != "agon-mcp.log" {
		t.Fatalf("expected default log file path, got %q", cfg.LogFilePath())
	}
	cfg.LogFile = "custom.log"
	if cfg.LogFilePath() != "custom.log" {
		t.Fatalf("expected custom log file path, got %q", cfg.LogFilePath())
	}
}

func TestDecodingDefaultsUsesConfiguredModel(t *testing.T) {
	cfg := Config{Model: "custom-model"}
	d := cfg.DecodingDefaults()
	if d.Model != "custom-model" {
		t.Fatalf("expected configured model, got %q", d.Model)
	}

	empty := Config{}
	if empty.DecodingDefaults().Model == "" {
		t.Fatalf("expected a non-empty default model")
	}
}
