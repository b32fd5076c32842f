package financebot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/financebot/core/config"
	"github.com/m3rciful/financebot/core/provider"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`telegram:
  token: t
  admin_id: 5
database:
  driver: memory
dialogue:
  idle_timeout: 10s
  steps:
    - name: amount
      kind: number
      prompt: How much?
fetch_commands:
  - name: quote
    url: https://example.com/{{.Arg}}
    reply: "{{.Data.price}}"
    min_args: 1
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.AdminID != 5 || cfg.Database.Driver != "memory" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Dialogue.JanitorInterval != 10*time.Second {
		t.Fatalf("janitor interval = %v", cfg.Dialogue.JanitorInterval)
	}
	spec, err := cfg.Spec()
	if err != nil || spec.Len() != 1 {
		t.Fatalf("spec: %v, %v", spec, err)
	}
	if len(cfg.FetchCommands) != 1 || cfg.FetchCommands[0].MinArgs != 1 {
		t.Fatalf("fetch commands = %+v", cfg.FetchCommands)
	}
}

func base() *Config {
	return &Config{Config: coreconfig.Config{Telegram: coreconfig.TelegramConfig{Token: "t"}}}
}

func TestNormalizeRejectsBadSections(t *testing.T) {
	cfg := base()
	cfg.Dialogue.IdleTimeout = -time.Second
	if err := cfg.Normalize(); err == nil {
		t.Fatal("expected error for negative idle timeout")
	}

	cfg = base()
	cfg.FetchCommands = []provider.CommandConfig{
		{Name: "a", URL: "u", Reply: "r"},
		{Name: "a", URL: "u", Reply: "r"},
	}
	if err := cfg.Normalize(); err == nil {
		t.Fatal("expected error for duplicate fetch command")
	}

	cfg = base()
	cfg.TextFallback = "missing"
	if err := cfg.Normalize(); err == nil {
		t.Fatal("expected error for unknown text fallback")
	}
	cfg = base()
	cfg.TextFallback = "rates"
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("default rates command as fallback: %v", err)
	}

	cfg = base()
	cfg.FetchCommands = []provider.CommandConfig{{Name: "a"}}
	if err := cfg.Normalize(); err == nil {
		t.Fatal("expected error for incomplete fetch command")
	}
}

func TestDefaultSpec(t *testing.T) {
	cfg := base()
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	spec, err := cfg.Spec()
	if err != nil {
		t.Fatalf("spec: %v", err)
	}
	if spec.Len() != 6 || spec.Step(5).Name != "expenses3" {
		t.Fatalf("default spec = %+v", spec.Steps())
	}
	if cfg.Dialogue.JanitorInterval != 0 {
		t.Fatal("janitor interval must stay zero without idle timeout")
	}
}
