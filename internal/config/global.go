package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/hujson"

	"github.com/agusx1211/usagebar/internal/usage"
)

const (
	// EnvConfigPath overrides the config file location.
	EnvConfigPath = "USAGEBAR_CONFIG"
	// EnvDeadline overrides the pass deadline with a Go duration ("3s").
	EnvDeadline = "USAGEBAR_DEADLINE"

	fileName = "usage-config.jsonc"

	defaultProxyTimeout = 10 * time.Second
	defaultZaiEndpoint  = "https://api.z.ai"
)

// Config holds user preferences stored in ~/.config/usagebar/usage-config.jsonc.
type Config struct {
	Endpoint       string           `json:"endpoint,omitempty"`       // proxy endpoint, e.g. http://localhost:8000
	APIKey         string           `json:"apiKey,omitempty"`         // proxy bearer token
	Timeout        int              `json:"timeout,omitempty"`        // proxy request timeout in ms
	Providers      map[string]bool  `json:"providers,omitempty"`      // visibility toggles
	OpenRouterKeys []usage.NamedKey `json:"openrouterKeys,omitempty"` // named OpenRouter credentials
	ZaiEndpoint    string           `json:"zaiEndpoint,omitempty"`
	Deadline       int              `json:"deadline,omitempty"` // whole-pass deadline in ms

	// deadlineOverride is set from the environment and wins over Deadline.
	deadlineOverride time.Duration
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Timeout: int(defaultProxyTimeout / time.Millisecond),
		Providers: map[string]bool{
			"openai":     true,
			"proxy":      true,
			"copilot":    true,
			"zai":        true,
			"anthropic":  true,
			"openrouter": true,
		},
	}
}

// Dir returns the usagebar config directory without creating it.
func Dir() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "usagebar")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".config", "usagebar")
}

// Path returns the config file path, honouring USAGEBAR_CONFIG.
func Path() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return filepath.Join(Dir(), fileName)
}

// Load reads the config file at Path and applies environment overrides.
// A missing file yields Default.
func Load() (*Config, error) {
	cfg, err := LoadFile(Path())
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile parses a JSONC config file. Comments and trailing commas are allowed.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes JSONC config bytes on top of an empty config. Toggles left
// out of the file stay absent and therefore enabled.
func Parse(data []byte) (*Config, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(std, &cfg); err != nil {
		return nil, err
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]bool)
	}
	return &cfg, nil
}

// ApplyEnv layers environment overrides onto the config.
func (c *Config) ApplyEnv() error {
	raw := strings.TrimSpace(os.Getenv(EnvDeadline))
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", EnvDeadline, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", EnvDeadline, raw)
	}
	c.deadlineOverride = d
	return nil
}

// Toggles returns the provider visibility flags for one pass.
func (c *Config) Toggles() usage.Toggles {
	t := make(usage.Toggles, len(c.Providers))
	for k, v := range c.Providers {
		t[k] = v
	}
	return t
}

// NamedKeys returns the per-provider named credential lists.
func (c *Config) NamedKeys() map[usage.ProviderID][]usage.NamedKey {
	if len(c.OpenRouterKeys) == 0 {
		return nil
	}
	keys := make([]usage.NamedKey, len(c.OpenRouterKeys))
	copy(keys, c.OpenRouterKeys)
	return map[usage.ProviderID][]usage.NamedKey{usage.ProviderOpenRouter: keys}
}

// PassDeadline returns the whole-pass deadline, or 0 for the engine default.
func (c *Config) PassDeadline() time.Duration {
	if c.deadlineOverride > 0 {
		return c.deadlineOverride
	}
	if c.Deadline > 0 {
		return time.Duration(c.Deadline) * time.Millisecond
	}
	return 0
}

// ProxyTimeout returns the proxy request timeout.
func (c *Config) ProxyTimeout() time.Duration {
	if c.Timeout > 0 {
		return time.Duration(c.Timeout) * time.Millisecond
	}
	return defaultProxyTimeout
}

// ZaiBaseURL returns the Z.ai API base without a trailing slash.
func (c *Config) ZaiBaseURL() string {
	if u := strings.TrimRight(strings.TrimSpace(c.ZaiEndpoint), "/"); u != "" {
		return u
	}
	return defaultZaiEndpoint
}

// ProxyConfigured reports whether a proxy endpoint is set.
func (c *Config) ProxyConfigured() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}
