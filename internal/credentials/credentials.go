// Package credentials locates and reads the credential files that usage
// providers authenticate with. Nothing here is fatal: unreadable or malformed
// files become an empty result plus a diagnostic line.
package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/agusx1211/usagebar/internal/debug"
	"github.com/agusx1211/usagebar/internal/usage"
)

// Diagnostics are human-readable notes about credential discovery.
type Diagnostics []string

func (d *Diagnostics) add(format string, args ...any) {
	*d = append(*d, fmt.Sprintf(format, args...))
}

// Locator resolves platform-specific credential paths. The zero value uses
// the running process's environment.
type Locator struct {
	Home   string
	GOOS   string
	Getenv func(string) string
}

func (l Locator) home() string {
	if l.Home != "" {
		return l.Home
	}
	h, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return h
}

func (l Locator) goos() string {
	if l.GOOS != "" {
		return l.GOOS
	}
	return runtime.GOOS
}

func (l Locator) getenv(key string) string {
	if l.Getenv != nil {
		return l.Getenv(key)
	}
	return os.Getenv(key)
}

// AuthPaths returns candidate shared auth.json locations in priority order.
func (l Locator) AuthPaths() []string {
	home := l.home()
	switch l.goos() {
	case "darwin":
		return []string{
			filepath.Join(home, ".local", "share", "opencode", "auth.json"),
			filepath.Join(home, "Library", "Application Support", "opencode", "auth.json"),
		}
	case "windows":
		appData := l.getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return []string{filepath.Join(appData, "opencode", "auth.json")}
	default:
		var paths []string
		if xdg := l.getenv("XDG_DATA_HOME"); xdg != "" {
			paths = append(paths, filepath.Join(xdg, "opencode", "auth.json"))
		}
		return append(paths, filepath.Join(home, ".local", "share", "opencode", "auth.json"))
	}
}

// CodexAuthPath is the Codex CLI's own credential file.
func (l Locator) CodexAuthPath() string {
	return filepath.Join(l.home(), ".codex", "auth.json")
}

// ClaudeCredentialsPath is the Claude CLI's OAuth credential file.
func (l Locator) ClaudeCredentialsPath() string {
	return filepath.Join(l.home(), ".claude", ".credentials.json")
}

func (l Locator) localDataDir() string {
	if l.goos() == "windows" {
		if local := l.getenv("LOCALAPPDATA"); local != "" {
			return local
		}
		return filepath.Join(l.home(), "AppData", "Local")
	}
	return filepath.Join(l.home(), ".local", "share")
}

// CopilotUsageTokenPath holds a standalone GitHub token for usage queries.
func (l Locator) CopilotUsageTokenPath() string {
	return filepath.Join(l.localDataDir(), "opencode", "copilot-usage-token.json")
}

// CopilotQuotaConfigPaths lists billing-API config locations, usagebar's own first.
func (l Locator) CopilotQuotaConfigPaths() []string {
	cfgHome := l.getenv("XDG_CONFIG_HOME")
	if cfgHome == "" {
		cfgHome = filepath.Join(l.home(), ".config")
	}
	return []string{
		filepath.Join(cfgHome, "usagebar", "copilot-quota-token.json"),
		filepath.Join(cfgHome, "opencode", "copilot-quota-token.json"),
	}
}

// Load reads the first existing shared auth file and merges the Codex CLI
// credential when the shared file has no codex entry.
func (l Locator) Load() (usage.CredentialRecord, Diagnostics) {
	var diags Diagnostics
	record := make(usage.CredentialRecord)

	path, found := firstExisting(l.AuthPaths())
	if !found {
		diags.add("no auth.json found (checked %s)", strings.Join(l.AuthPaths(), ", "))
	} else if err := readJSON(path, &record); err != nil {
		diags.add("failed to read %s: %v", path, err)
		record = make(usage.CredentialRecord)
	} else {
		debug.LogKV("credentials", "auth file loaded", "path", path, "entries", len(record))
	}

	if record["codex"] == nil && record["openai"] == nil {
		cred, err := l.readCodexAuth()
		switch {
		case err != nil:
			diags.add("codex: %v", err)
		case cred != nil:
			record["codex"] = cred
		}
	}

	for k, v := range record {
		if v == nil {
			delete(record, k)
		}
	}
	return record, diags
}

// Load uses the default locator.
func Load() (usage.CredentialRecord, Diagnostics) {
	return Locator{}.Load()
}

type codexAuthFile struct {
	AuthMode     string `json:"auth_mode"`
	OpenAIAPIKey string `json:"OPENAI_API_KEY"`
	Tokens       *struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		AccountID    string `json:"account_id"`
	} `json:"tokens"`
}

func (l Locator) readCodexAuth() (*usage.CredentialEntry, error) {
	path := l.CodexAuthPath()
	var f codexAuthFile
	if err := readJSON(path, &f); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s not found", path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if f.Tokens == nil || f.Tokens.AccessToken == "" {
		return nil, fmt.Errorf("%s has no ChatGPT tokens (auth_mode=%q)", path, f.AuthMode)
	}
	return &usage.CredentialEntry{
		Type:      "oauth",
		Access:    f.Tokens.AccessToken,
		Refresh:   f.Tokens.RefreshToken,
		AccountID: f.Tokens.AccountID,
	}, nil
}

// ClaudeAccessToken reads the Claude CLI's OAuth access token.
func (l Locator) ClaudeAccessToken() (string, error) {
	path := l.ClaudeCredentialsPath()
	var creds struct {
		ClaudeAiOauth struct {
			AccessToken string `json:"accessToken"`
		} `json:"claudeAiOauth"`
	}
	if err := readJSON(path, &creds); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if creds.ClaudeAiOauth.AccessToken == "" {
		return "", fmt.Errorf("no claudeAiOauth.accessToken in %s", path)
	}
	return creds.ClaudeAiOauth.AccessToken, nil
}

// CopilotUsageToken reads the standalone Copilot usage token, if any.
func (l Locator) CopilotUsageToken() (string, error) {
	path := l.CopilotUsageTokenPath()
	var f struct {
		Token string `json:"token"`
	}
	if err := readJSON(path, &f); err != nil {
		return "", err
	}
	if strings.TrimSpace(f.Token) == "" {
		return "", fmt.Errorf("no token in %s", path)
	}
	return strings.TrimSpace(f.Token), nil
}

// CopilotQuotaConfig configures the public billing API strategy.
type CopilotQuotaConfig struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Tier     string `json:"tier"`
}

// CopilotQuota reads the first complete billing config.
func (l Locator) CopilotQuota() (*CopilotQuotaConfig, error) {
	for _, path := range l.CopilotQuotaConfigPaths() {
		var cfg CopilotQuotaConfig
		if err := readJSON(path, &cfg); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if cfg.Token == "" || cfg.Username == "" || cfg.Tier == "" {
			return nil, fmt.Errorf("%s needs token, username and tier", path)
		}
		return &cfg, nil
	}
	return nil, nil
}

// MaskKey hides all but the edges of a secret for display.
func MaskKey(key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func firstExisting(paths []string) (string, bool) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
