package watchtui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/agusx1211/usagebar/internal/usage"
)

func sampleReport() usage.Report {
	return usage.Report{
		ID:        "pass-1",
		StartedAt: time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
		Duration:  1200 * time.Millisecond,
		Snapshots: []usage.Snapshot{
			{
				Provider: usage.ProviderCodex,
				EntryID:  "codex",
				Label:    "codex",
				Primary:  &usage.RateLimitWindow{UsedPercent: 40},
			},
			usage.NewMissing(usage.ProviderZai, "zai", "zai", "Missing API key", nil, time.Now()),
		},
	}
}

func newTestModel(calls *int) Model {
	fetch := func(context.Context) usage.Report {
		*calls++
		return sampleReport()
	}
	m := NewModel(context.Background(), fetch, time.Minute, false)
	m.now = func() time.Time { return time.Date(2026, 3, 14, 15, 10, 0, 0, time.UTC) }
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return nm, cmd
}

func TestInitialViewIsLoading(t *testing.T) {
	var calls int
	m := newTestModel(&calls)
	if cmd := m.Init(); cmd == nil {
		t.Fatal("Init should start the first pass")
	}
	view := m.View()
	if !strings.Contains(view, "fetching usage") {
		t.Fatalf("view = %q, want loading text", view)
	}
}

func TestReportMessageRendersReport(t *testing.T) {
	var calls int
	m := newTestModel(&calls)

	m, cmd := update(t, m, reportMsg{gen: 0, report: sampleReport()})
	if cmd == nil {
		t.Fatal("expected next tick to be scheduled")
	}
	if m.fetching {
		t.Fatal("fetching should be cleared after a report")
	}
	if m.passes != 1 {
		t.Fatalf("passes = %d, want 1", m.passes)
	}

	view := m.View()
	for _, want := range []string{"→ [CODEX]", "Unavailable: Missing API key", "1 unavailable", "every 1m", "r refresh · q quit"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestStaleReportIgnored(t *testing.T) {
	var calls int
	m := newTestModel(&calls)
	m.gen = 2

	m, cmd := update(t, m, reportMsg{gen: 1, report: sampleReport()})
	if cmd != nil || m.report != nil {
		t.Fatal("stale report should be dropped")
	}
}

func TestTickStartsFetch(t *testing.T) {
	var calls int
	m := newTestModel(&calls)
	m, _ = update(t, m, reportMsg{gen: 0, report: sampleReport()})

	m, cmd := update(t, m, tickMsg{gen: 0})
	if !m.fetching || cmd == nil {
		t.Fatal("tick should start a new pass")
	}

	// A second tick while fetching is a no-op.
	if _, cmd := update(t, m, tickMsg{gen: 0}); cmd != nil {
		t.Fatal("tick during a pass should be ignored")
	}
}

func TestRefreshKeyBumpsGeneration(t *testing.T) {
	var calls int
	m := newTestModel(&calls)

	// Ignored while the initial pass is running.
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd != nil || m.gen != 0 {
		t.Fatal("refresh during a pass should be ignored")
	}

	m, _ = update(t, m, reportMsg{gen: 0, report: sampleReport()})
	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd == nil || !m.fetching || m.gen != 1 {
		t.Fatalf("refresh: fetching=%v gen=%d", m.fetching, m.gen)
	}

	// The timer from the earlier generation no longer fires a pass.
	m.fetching = false
	if _, cmd := update(t, m, tickMsg{gen: 0}); cmd != nil {
		t.Fatal("old-generation tick should be ignored")
	}
}

func TestFetchCmdRunsPass(t *testing.T) {
	var calls int
	m := newTestModel(&calls)
	msg := m.fetchCmd()()
	rm, ok := msg.(reportMsg)
	if !ok {
		t.Fatalf("fetchCmd produced %T", msg)
	}
	if calls != 1 || rm.report.ID != "pass-1" {
		t.Fatalf("calls=%d report=%+v", calls, rm.report)
	}
}

func TestQuitKeys(t *testing.T) {
	var calls int
	m := newTestModel(&calls)
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyCtrlC},
	} {
		_, cmd := update(t, m, key)
		if cmd == nil {
			t.Fatalf("%s: expected quit command", key)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("%s: expected tea.QuitMsg", key)
		}
	}
}

func TestWindowSizeSetsWidth(t *testing.T) {
	var calls int
	m := newTestModel(&calls)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 42, Height: 10})
	if m.width != 42 {
		t.Fatalf("width = %d, want 42", m.width)
	}
}
