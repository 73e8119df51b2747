// Package watchtui is the full-screen `usagebar watch` view: it reruns the
// aggregation pass on an interval and redraws the report.
package watchtui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agusx1211/usagebar/internal/render"
	"github.com/agusx1211/usagebar/internal/theme"
	"github.com/agusx1211/usagebar/internal/usage"
)

// FetchFunc runs one fresh aggregation pass.
type FetchFunc func(ctx context.Context) usage.Report

type reportMsg struct {
	gen    int
	report usage.Report
}

type tickMsg struct {
	gen int
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBase).
			Background(theme.ColorBlue).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(theme.ColorSubtext0)

	helpStyle = lipgloss.NewStyle().
			Foreground(theme.ColorOverlay0)
)

// Model is the bubbletea model for the watch view.
type Model struct {
	ctx      context.Context
	fetch    FetchFunc
	interval time.Duration
	color    bool
	now      func() time.Time

	keys     keyMap
	spinner  spinner.Model
	report   *usage.Report
	fetching bool
	gen      int
	passes   int
	width    int
}

// NewModel builds a watch model. interval must be positive.
func NewModel(ctx context.Context, fetch FetchFunc, interval time.Duration, color bool) Model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorMauve)
	return Model{
		ctx:      ctx,
		fetch:    fetch,
		interval: interval,
		color:    color,
		now:      time.Now,
		keys:     newKeyMap(),
		spinner:  s,
		fetching: true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchCmd())
}

func (m Model) fetchCmd() tea.Cmd {
	ctx, fetch, gen := m.ctx, m.fetch, m.gen
	return func() tea.Msg {
		return reportMsg{gen: gen, report: fetch(ctx)}
	}
}

func (m Model) scheduleNext() tea.Cmd {
	gen := m.gen
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{gen: gen} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			if m.fetching {
				return m, nil
			}
			m.gen++
			m.fetching = true
			return m, tea.Batch(m.spinner.Tick, m.fetchCmd())
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case reportMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		r := msg.report
		m.report = &r
		m.fetching = false
		m.passes++
		return m, m.scheduleNext()

	case tickMsg:
		if msg.gen != m.gen || m.fetching {
			return m, nil
		}
		m.fetching = true
		return m, tea.Batch(m.spinner.Tick, m.fetchCmd())

	case spinner.TickMsg:
		if !m.fetching {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("usagebar"))
	b.WriteString(" ")
	b.WriteString(statusStyle.Render(m.status()))
	b.WriteString("\n\n")

	if m.report == nil {
		b.WriteString(m.spinner.View() + " fetching usage…\n")
	} else {
		b.WriteString(render.Text(*m.report, render.Options{Color: m.color, Width: m.width, Now: m.now}))
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.keys.help()))
	return b.String()
}

func (m Model) status() string {
	parts := []string{"every " + render.FormatDuration(m.interval)}
	if m.report != nil {
		parts = append(parts, fmt.Sprintf("updated %s in %s",
			m.report.StartedAt.Local().Format("15:04:05"),
			m.report.Duration.Round(10*time.Millisecond)))
		if missing := len(m.report.Missing()); missing > 0 {
			parts = append(parts, fmt.Sprintf("%d unavailable", missing))
		}
	}
	if m.fetching {
		parts = append(parts, m.spinner.View()+" refreshing")
	}
	return strings.Join(parts, " · ")
}
