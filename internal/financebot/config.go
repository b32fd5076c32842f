package financebot

import (
	"fmt"
	"time"

	coreconfig "github.com/m3rciful/financebot/core/config"
	coredatabase "github.com/m3rciful/financebot/core/database"
	"github.com/m3rciful/financebot/core/dialogue"
	"github.com/m3rciful/financebot/core/provider"
)

// DialogueConfig tunes the finances questionnaire.
type DialogueConfig struct {
	// IdleTimeout aborts sessions without input for this long; 0 disables the janitor.
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"DIALOGUE_IDLE_TIMEOUT"`
	JanitorInterval time.Duration `yaml:"janitor_interval" envconfig:"DIALOGUE_JANITOR_INTERVAL"`
	// ShowSummary echoes the saved answers after completion.
	ShowSummary bool `yaml:"show_summary" envconfig:"DIALOGUE_SHOW_SUMMARY"`
	// Steps replaces the default six-step questionnaire.
	Steps []dialogue.StepConfig `yaml:"steps"`
}

// Config is the bot configuration: the shared core sections plus the
// application ones.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database      coredatabase.Config      `yaml:"database"`
	Dialogue      DialogueConfig           `yaml:"dialogue"`
	FetchCommands []provider.CommandConfig `yaml:"fetch_commands"`
	// TextFallback names a fetch command that receives plain text matching
	// no command; empty keeps the unknown-input reply.
	TextFallback string `yaml:"text_fallback" envconfig:"TEXT_FALLBACK"`
}

// CoreConfig exposes the embedded core configuration to the runner.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// LoadConfig reads path, overlays the environment and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and applies defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}
	if c.Dialogue.IdleTimeout < 0 {
		return fmt.Errorf("dialogue.idle_timeout must be >= 0")
	}
	if c.Dialogue.IdleTimeout > 0 && c.Dialogue.JanitorInterval <= 0 {
		c.Dialogue.JanitorInterval = min(c.Dialogue.IdleTimeout, time.Minute)
	}
	if len(c.Dialogue.Steps) > 0 {
		if _, err := dialogue.SpecFromConfig(c.Dialogue.Steps); err != nil {
			return fmt.Errorf("dialogue.steps: %w", err)
		}
	}
	seen := make(map[string]struct{}, len(c.FetchCommands))
	for i, fc := range c.FetchCommands {
		if fc.Name == "" || fc.URL == "" || fc.Reply == "" {
			return fmt.Errorf("fetch_commands[%d]: name, url and reply are required", i)
		}
		if _, dup := seen[fc.Name]; dup {
			return fmt.Errorf("fetch_commands[%d]: duplicate name %q", i, fc.Name)
		}
		seen[fc.Name] = struct{}{}
	}
	if len(c.FetchCommands) == 0 {
		for _, fc := range DefaultFetchCommands() {
			seen[fc.Name] = struct{}{}
		}
	}
	if c.TextFallback != "" {
		if _, ok := seen[c.TextFallback]; !ok {
			return fmt.Errorf("text_fallback: no fetch command named %q", c.TextFallback)
		}
	}
	return nil
}

// Spec returns the configured questionnaire or the default one.
func (c *Config) Spec() (*dialogue.Spec, error) {
	if len(c.Dialogue.Steps) == 0 {
		return DefaultSpec(), nil
	}
	return dialogue.SpecFromConfig(c.Dialogue.Steps)
}
