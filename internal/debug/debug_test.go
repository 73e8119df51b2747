package debug

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestShouldEnableFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		enabled string
		path    string
		want    bool
	}{
		{name: "disabled by default", enabled: "", path: "", want: false},
		{name: "enabled explicit", enabled: "1", path: "", want: true},
		{name: "enabled via path", enabled: "", path: "/tmp/usagebar.log", want: true},
		{name: "explicit off wins", enabled: "0", path: "/tmp/usagebar.log", want: false},
		{name: "unknown toggle without path", enabled: "maybe", path: "", want: false},
		{name: "unknown toggle with path", enabled: "maybe", path: "/tmp/usagebar.log", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvEnabled, tt.enabled)
			t.Setenv(EnvLogPath, tt.path)
			if got := ShouldEnableFromEnv(); got != tt.want {
				t.Fatalf("ShouldEnableFromEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInitAppendsToForcedPath(t *testing.T) {
	defer Close()

	logPath := filepath.Join(t.TempDir(), "nested", "pass.log")
	t.Setenv(EnvLogPath, logPath)

	gotPath, err := Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if gotPath != logPath {
		t.Fatalf("Init() path = %q, want %q", gotPath, logPath)
	}
	if !Enabled() || Path() != logPath {
		t.Fatalf("Enabled()=%v Path()=%q, want true %q", Enabled(), Path(), logPath)
	}

	again, err := Init()
	if err != nil || again != logPath {
		t.Fatalf("second Init() = %q, %v", again, err)
	}

	LogKV("usage", "fetch failed", "entry", "openrouter:work", "error", "boom")
	Logf("cli", "pass %d", 3)
	Close()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	s := string(data)
	for _, want := range []string{
		"=== USAGEBAR DEBUG LOG ===",
		"Log ID: ",
		"[usage",
		"fetch failed entry=openrouter:work error=boom",
		"pass 3",
		"=== DEBUG LOG CLOSED ===",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("log missing %q:\n%s", want, s)
		}
	}
}

func TestLogIsNoOpWhenDisabled(t *testing.T) {
	Close()
	if Enabled() {
		t.Fatal("Enabled() = true after Close")
	}
	if Path() != "" {
		t.Fatalf("Path() = %q, want empty", Path())
	}
	Log("usage", "ignored")
	LogKV("usage", "ignored", "k", "v")
}
