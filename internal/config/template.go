package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const template = `/**
 * usagebar configuration
 */
{
  // Mirrowel proxy endpoint (e.g. http://localhost:8000). Empty disables it.
  "endpoint": "",

  // Bearer token for the proxy
  "apiKey": "",

  // Proxy request timeout in milliseconds
  "timeout": 10000,

  // Whole-pass deadline in milliseconds (0 = 5000)
  "deadline": 0,

  // Z.ai API base URL
  "zaiEndpoint": "https://api.z.ai",

  // Provider visibility. Missing entries are treated as enabled.
  "providers": {
    "openai": true,
    "proxy": true,
    "copilot": true,
    "zai": true,
    "anthropic": true,
    "openrouter": true,
  },

  // Named OpenRouter keys, each tracked separately.
  // "openrouterKeys": [
  //   { "name": "work", "key": "sk-or-...", "enabled": true },
  // ],
}
`

// ErrExists is returned by WriteTemplate when the file exists and force is off.
var ErrExists = errors.New("config file already exists")

// Template returns the commented default configuration.
func Template() []byte {
	return []byte(template)
}

// WriteTemplate writes the commented default configuration to path.
func WriteTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	return os.WriteFile(path, Template(), 0o600)
}
