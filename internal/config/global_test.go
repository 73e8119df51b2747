package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agusx1211/usagebar/internal/usage"
)

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.jsonc"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	enabled := cfg.Toggles().Enabled()
	for _, id := range usage.CanonicalProviders {
		if !enabled(id) {
			t.Errorf("provider %s disabled in defaults", id)
		}
	}
	if cfg.ProxyConfigured() {
		t.Error("ProxyConfigured() = true for defaults")
	}
	if got := cfg.PassDeadline(); got != 0 {
		t.Errorf("PassDeadline() = %v, want 0", got)
	}
}

func TestParseJSONC(t *testing.T) {
	src := `/* header */
{
  // proxy
  "endpoint": "http://localhost:8000",
  "timeout": 2500,
  "deadline": 1500,
  "zaiEndpoint": "https://open.bigmodel.cn/",
  "providers": { "openai": false, "copilot": true, },
  "openrouterKeys": [
    { "name": "work", "key": "sk-or-1" },
    { "key": "sk-or-2", "enabled": false },
  ],
}`

	cfg, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.ProxyConfigured() {
		t.Error("ProxyConfigured() = false")
	}
	if got := cfg.ProxyTimeout(); got != 2500*time.Millisecond {
		t.Errorf("ProxyTimeout() = %v", got)
	}
	if got := cfg.PassDeadline(); got != 1500*time.Millisecond {
		t.Errorf("PassDeadline() = %v", got)
	}
	if got := cfg.ZaiBaseURL(); got != "https://open.bigmodel.cn" {
		t.Errorf("ZaiBaseURL() = %q", got)
	}

	enabled := cfg.Toggles().Enabled()
	if enabled(usage.ProviderCodex) {
		t.Error("codex should be disabled via openai toggle")
	}
	if !enabled(usage.ProviderZai) {
		t.Error("absent zai toggle should mean enabled")
	}

	keys := cfg.NamedKeys()[usage.ProviderOpenRouter]
	if len(keys) != 2 || keys[0].Name != "work" || keys[1].Enabled == nil || *keys[1].Enabled {
		t.Fatalf("NamedKeys() = %+v", keys)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte(`{"endpoint": `)); err == nil {
		t.Fatal("Parse() expected error")
	}
}

func TestApplyEnvDeadline(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Duration
		wantErr bool
	}{
		{name: "unset", value: "", want: 1500 * time.Millisecond},
		{name: "override", value: "3s", want: 3 * time.Second},
		{name: "invalid", value: "soon", wantErr: true},
		{name: "negative", value: "-1s", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDeadline, tt.value)
			cfg := &Config{Deadline: 1500}
			err := cfg.ApplyEnv()
			if tt.wantErr {
				if err == nil {
					t.Fatal("ApplyEnv() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnv: %v", err)
			}
			if got := cfg.PassDeadline(); got != tt.want {
				t.Fatalf("PassDeadline() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPathHonoursEnv(t *testing.T) {
	custom := filepath.Join(t.TempDir(), "custom.jsonc")
	t.Setenv(EnvConfigPath, custom)
	if got := Path(); got != custom {
		t.Fatalf("Path() = %q, want %q", got, custom)
	}

	t.Setenv(EnvConfigPath, "")
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	if got, want := Path(), filepath.Join(xdg, "usagebar", fileName); got != want {
		t.Fatalf("Path() = %q, want %q", got, want)
	}
}

func TestWriteTemplateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", fileName)
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("WriteTemplate: %v", err)
	}
	if err := WriteTemplate(path, false); !errors.Is(err, ErrExists) {
		t.Fatalf("second WriteTemplate() = %v, want ErrExists", err)
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("forced WriteTemplate: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile(template): %v", err)
	}
	if cfg.ProxyConfigured() {
		t.Error("template should leave proxy unconfigured")
	}
	if len(cfg.NamedKeys()) != 0 {
		t.Errorf("template NamedKeys() = %v, want none", cfg.NamedKeys())
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("template mode = %v, want 0600", info.Mode().Perm())
	}
}
