// Package debug is a structured file logger for diagnosing aggregation passes.
//
// When enabled via --debug (or USAGEBAR_DEBUG_ENABLED), every fetch, drop,
// failure and deadline event is appended to one .log file under
// ~/.usagebar/debug/. Lines carry a nanosecond timestamp, the goroutine ID and
// the caller so concurrent fetches can be told apart afterwards.
//
// When disabled (the default), all logging functions return immediately.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	logger   *Logger
	loggerMu sync.RWMutex
)

const (
	// EnvEnabled turns the logger on without the --debug flag.
	EnvEnabled = "USAGEBAR_DEBUG_ENABLED"
	// EnvLogPath forces logs into a specific file.
	EnvLogPath = "USAGEBAR_DEBUG_LOG_PATH"
)

// Logger writes structured debug lines to a file.
type Logger struct {
	mu        sync.Mutex
	out       io.WriteCloser
	path      string
	id        string
	startedAt time.Time
	pid       int
}

// Init opens the global debug log and returns its path. Repeated calls
// return the already open log.
func Init() (string, error) {
	loggerMu.RLock()
	if logger != nil {
		p := logger.path
		loggerMu.RUnlock()
		return p, nil
	}
	loggerMu.RUnlock()

	id := uuid.NewString()
	path, err := resolveLogPath(id)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("debug: open log %s: %w", path, err)
	}

	l := newLogger(f, path, id, time.Now())

	loggerMu.Lock()
	if logger != nil {
		p := logger.path
		loggerMu.Unlock()
		_ = f.Close()
		return p, nil
	}
	logger = l
	loggerMu.Unlock()
	return path, nil
}

func newLogger(out io.WriteCloser, path, id string, now time.Time) *Logger {
	l := &Logger{out: out, path: path, id: id, startedAt: now, pid: os.Getpid()}
	fmt.Fprintf(out, "=== USAGEBAR DEBUG LOG ===\nStarted: %s\nPID: %d\nArgs: %s\nLog ID: %s\n===\n\n",
		now.Format(time.RFC3339Nano),
		l.pid,
		strings.Join(os.Args, " "),
		id,
	)
	return l
}

// Close writes a trailer and closes the log. Safe to call when not initialized.
func Close() {
	loggerMu.Lock()
	l := logger
	logger = nil
	loggerMu.Unlock()

	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "\n=== DEBUG LOG CLOSED === (pid=%d duration=%s)\n", l.pid, time.Since(l.startedAt))
	_ = l.out.Close()
}

// Enabled reports whether the debug logger is active.
func Enabled() bool {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger != nil
}

// Path returns the log file path, or "" if not enabled.
func Path() string {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if logger == nil {
		return ""
	}
	return logger.path
}

// ShouldEnableFromEnv reports whether the environment asks for debug logging.
func ShouldEnableFromEnv() bool {
	path := strings.TrimSpace(os.Getenv(EnvLogPath))
	switch strings.TrimSpace(strings.ToLower(os.Getenv(EnvEnabled))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return path != ""
	}
}

func current() *Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Log writes a debug line. No-op when debug is disabled.
func Log(component, msg string) {
	if l := current(); l != nil {
		l.write(component, msg, 2)
	}
}

// Logf writes a formatted debug line. No-op when debug is disabled.
func Logf(component, format string, args ...any) {
	if l := current(); l != nil {
		l.write(component, fmt.Sprintf(format, args...), 2)
	}
}

// LogKV writes a debug line with key-value context pairs:
//
//	debug.LogKV("usage", "fetch failed", "entry", "openrouter:work", "error", err)
func LogKV(component, msg string, kvs ...any) {
	l := current()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(kvs); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kvs[i], kvs[i+1])
	}
	l.write(component, b.String(), 2)
}

func (l *Logger) write(component, msg string, callerSkip int) {
	now := time.Now()

	caller := "??:0"
	if _, file, line, ok := runtime.Caller(callerSkip); ok {
		if idx := strings.LastIndex(file, "/internal/"); idx >= 0 {
			file = file[idx+1:]
		} else if idx := strings.LastIndex(file, "/cmd/"); idx >= 0 {
			file = file[idx+1:]
		}
		caller = fmt.Sprintf("%s:%d", file, line)
	}

	// TIMESTAMP +ELAPSED [GID] [COMPONENT] CALLER | MESSAGE
	entry := fmt.Sprintf("%s +%12s [G%-6d] [%-10s] %-32s | %s\n",
		now.Format("15:04:05.000000000"),
		now.Sub(l.startedAt).Truncate(time.Microsecond),
		goroutineID(),
		component,
		caller,
		msg,
	)

	l.mu.Lock()
	_, _ = io.WriteString(l.out, entry)
	l.mu.Unlock()
}

func resolveLogPath(id string) (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvLogPath)); p != "" {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return "", fmt.Errorf("debug: create dir for %s: %w", p, err)
		}
		return p, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("debug: user home dir: %w", err)
	}
	dir := filepath.Join(home, ".usagebar", "debug")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("debug: create dir %s: %w", dir, err)
	}
	name := fmt.Sprintf("%s_%s.log", time.Now().Format("20060102T150405"), id[:8])
	return filepath.Join(dir, name), nil
}

// goroutineID parses the "goroutine N [" prefix of runtime.Stack.
func goroutineID() int64 {
	var buf [64]byte
	s := string(buf[:runtime.Stack(buf[:], false)])
	s, ok := strings.CutPrefix(s, "goroutine ")
	if !ok {
		return 0
	}
	var id int64
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
