// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/alienxp03/council/internal/core"
	"github.com/alienxp03/council/internal/provider"
)

// Config represents the application configuration.
type Config struct {
	Council   CouncilConfig             `toml:"council"`
	Moderator ModeratorConfig           `toml:"moderator"`
	History   HistoryConfig             `toml:"history"`
	Storage   StorageConfig             `toml:"storage"`
	Request   RequestConfig             `toml:"request"`
	Server    ServerConfig              `toml:"server"`
	Providers map[string]ProviderConfig `toml:"providers"`
}

// CouncilConfig selects which configured providers sit on the council.
// Order here is the presentation order of every session record.
type CouncilConfig struct {
	Members []string `toml:"members"`
}

// ModeratorConfig selects the model that synthesizes the final answer.
type ModeratorConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
}

// HistoryConfig holds history log settings.
type HistoryConfig struct {
	Path string `toml:"path"`
}

// StorageConfig holds session store settings.
type StorageConfig struct {
	Path string `toml:"path"`
}

// ServerConfig holds web server settings.
type ServerConfig struct {
	Port int `toml:"port"`
}

// RequestConfig holds settings applied to every provider call.
type RequestConfig struct {
	TimeoutSeconds  int      `toml:"timeout_s"`
	Temperature     *float64 `toml:"temperature"`
	MaxOutputTokens int      `toml:"max_output_tokens"`
}

// Timeout returns the per-call timeout.
func (r RequestConfig) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// ProviderConfig holds provider-specific settings. Thinking and
// Reasoning are opaque extended-reasoning tables forwarded to the
// vendor verbatim.
type ProviderConfig struct {
	Kind      string         `toml:"kind,omitempty"`
	APIKey    string         `toml:"api_key,omitempty"`
	APIKeyEnv string         `toml:"api_key_env,omitempty"`
	Model     string         `toml:"model,omitempty"`
	BaseURL   string         `toml:"base_url,omitempty"`
	Version   string         `toml:"version,omitempty"`
	Thinking  map[string]any `toml:"thinking,omitempty"`
	Reasoning map[string]any `toml:"reasoning,omitempty"`
}

// ResolveAPIKey returns the configured key, preferring an inline
// api_key over the api_key_env environment lookup.
func (p ProviderConfig) ResolveAPIKey() string {
	if p.APIKey != "" {
		return strings.TrimSpace(p.APIKey)
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

// kindOrName returns the adapter kind, defaulting to the entry name so
// that `[providers.openai]` needs no explicit kind.
func (p ProviderConfig) kindOrName(name string) string {
	if p.Kind != "" {
		return p.Kind
	}
	return name
}

// Default returns the default configuration.
func Default() *Config {
	temperature := 0.2
	return &Config{
		Council: CouncilConfig{
			Members: []string{"gemini", "anthropic", "openai"},
		},
		Moderator: ModeratorConfig{
			Provider: "openai",
		},
		History: HistoryConfig{
			Path: "~/.council/history.jsonl",
		},
		Storage: StorageConfig{
			Path: "~/.council/council.db",
		},
		Request: RequestConfig{
			TimeoutSeconds:  60,
			Temperature:     &temperature,
			MaxOutputTokens: 1024,
		},
		Server: ServerConfig{
			Port: 8184,
		},
		Providers: map[string]ProviderConfig{
			"gemini": {
				APIKeyEnv: "GEMINI_API_KEY",
				BaseURL:   "https://generativelanguage.googleapis.com/v1beta",
			},
			"anthropic": {
				APIKeyEnv: "ANTHROPIC_API_KEY",
				BaseURL:   "https://api.anthropic.com/v1",
				Version:   "2023-06-01",
			},
			"openai": {
				APIKeyEnv: "OPENAI_API_KEY",
				BaseURL:   "https://api.openai.com/v1",
			},
			"mock": {
				Model: "mock-v1",
			},
		},
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom loads configuration from a specific path, falling back to
// defaults when the file does not exist.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file, proceed with defaults
	} else {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Merge with defaults for any missing providers
	defaultCfg := Default()
	for name, defaultProvider := range defaultCfg.Providers {
		if _, exists := cfg.Providers[name]; !exists {
			cfg.Providers[name] = defaultProvider
		}
	}

	return cfg, nil
}

// SaveTo writes the configuration to a specific path.
func (c *Config) SaveTo(path string) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Members resolves the configured council into member descriptors, in
// configured order.
func (c *Config) Members() ([]core.CouncilMember, error) {
	if len(c.Council.Members) == 0 {
		return nil, fmt.Errorf("no council members configured")
	}

	members := make([]core.CouncilMember, 0, len(c.Council.Members))
	for _, name := range c.Council.Members {
		provCfg, ok := c.Providers[name]
		if !ok {
			return nil, fmt.Errorf("council member %q has no provider config", name)
		}
		members = append(members, core.CouncilMember{
			Name:     name,
			Provider: provCfg.kindOrName(name),
			Model:    provCfg.Model,
			Options:  c.memberOptions(provCfg),
		})
	}
	return members, nil
}

// ModeratorMember resolves the moderator descriptor.
func (c *Config) ModeratorMember() (core.CouncilMember, error) {
	name := c.Moderator.Provider
	if name == "" {
		return core.CouncilMember{}, fmt.Errorf("no moderator provider configured")
	}
	provCfg, ok := c.Providers[name]
	if !ok {
		return core.CouncilMember{}, fmt.Errorf("moderator provider %q has no provider config", name)
	}

	model := c.Moderator.Model
	if model == "" {
		model = provCfg.Model
	}
	return core.CouncilMember{
		Name:     "moderator",
		Provider: provCfg.kindOrName(name),
		Model:    model,
		Options:  c.memberOptions(provCfg),
	}, nil
}

func (c *Config) memberOptions(provCfg ProviderConfig) core.GenerationOptions {
	return core.GenerationOptions{
		Temperature:     c.Request.Temperature,
		MaxOutputTokens: c.Request.MaxOutputTokens,
		Thinking:        provCfg.Thinking,
		Reasoning:       provCfg.Reasoning,
	}
}

// CreateRegistry builds a provider registry from the configuration.
// Providers with missing API keys are still registered; calls through
// them fail with an auth error, which surfaces as a per-member
// failure rather than a configuration error.
func (c *Config) CreateRegistry() (*provider.Registry, error) {
	registry := provider.NewRegistry()

	for name, provCfg := range c.Providers {
		pcfg := provider.Config{
			APIKey:  provCfg.ResolveAPIKey(),
			BaseURL: provCfg.BaseURL,
			Version: provCfg.Version,
		}

		switch provCfg.kindOrName(name) {
		case "openai":
			registry.Register(provider.NewOpenAI(pcfg))
		case "anthropic":
			registry.Register(provider.NewAnthropic(pcfg))
		case "gemini":
			registry.Register(provider.NewGemini(pcfg))
		case "mock":
			registry.Register(provider.NewMock())
		default:
			return nil, fmt.Errorf("unknown provider kind for %q: %s", name, provCfg.kindOrName(name))
		}
	}

	return registry, nil
}

// DefaultConfigPath returns the configuration file path, honoring the
// COUNCIL_CONFIG environment variable.
func DefaultConfigPath() string {
	if path := os.Getenv("COUNCIL_CONFIG"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "council.toml"
	}
	return filepath.Join(home, ".council", "config.toml")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}

// Template is the starter configuration written by init-config.
const Template = `[council]
members = ["gemini", "anthropic", "openai"]

[moderator]
provider = "openai"
model = "gpt-4.1-mini"

[history]
path = "~/.council/history.jsonl"

[storage]
path = "~/.council/council.db"

[server]
port = 8184

[request]
timeout_s = 60
temperature = 0.2
max_output_tokens = 1024

[providers.gemini]
api_key_env = "GEMINI_API_KEY"
model = "gemini-2.5-pro"
base_url = "https://generativelanguage.googleapis.com/v1beta"

[providers.anthropic]
api_key_env = "ANTHROPIC_API_KEY"
model = "claude-sonnet-4-5"
base_url = "https://api.anthropic.com/v1"
version = "2023-06-01"
thinking = { type = "enabled", budget_tokens = 1024 }

[providers.openai]
api_key_env = "OPENAI_API_KEY"
model = "gpt-4.1-mini"
base_url = "https://api.openai.com/v1"
reasoning = { effort = "medium" }
`
