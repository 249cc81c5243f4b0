package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  extra: true
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadValidatesDefaultProvider(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: openai
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "default_provider") {
		t.Fatalf("expected default_provider error, got %v", err)
	}
}

func TestLoadValidatesWebSearchMode(t *testing.T) {
	path := writeConfig(t, `
stockgateway:
  web_search_mode: nope
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "web_search_mode") {
		t.Fatalf("expected web_search_mode error, got %v", err)
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  http_port: 9090
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	if cfg.StockGateway.MaxToolRounds != 3 {
		t.Fatalf("expected stockgateway defaults applied, got %+v", cfg.StockGateway)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("STOCKGATEWAY_HOST", "127.0.0.1")
	t.Setenv("STOCKGATEWAY_HTTP_PORT", "9191")
	t.Setenv("DATABASE_URL", "postgres://override@localhost:26257/stockgateway?sslmode=disable")

	path := writeConfig(t, `
server:
  host: 0.0.0.0
  http_port: 8080
database:
  url: postgres://default@localhost:26257/stockgateway?sslmode=disable
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("expected host override, got %q", cfg.Server.Host)
	}
	if cfg.Server.HTTPPort != 9191 {
		t.Fatalf("expected http port override, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Database.URL != "postgres://override@localhost:26257/stockgateway?sslmode=disable" {
		t.Fatalf("expected database url override, got %q", cfg.Database.URL)
	}
}

func TestLoadAppliesStockGatewayEnvOverride(t *testing.T) {
	t.Setenv("MAX_TOOL_ROUNDS", "5")

	path := writeConfig(t, `
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StockGateway.MaxToolRounds != 5 {
		t.Fatalf("expected max_tool_rounds override, got %d", cfg.StockGateway.MaxToolRounds)
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "stockgateway.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
