// Package render turns a finished usage report into terminal text or a JSON
// view model. It is the only place that looks at missing-snapshot details.
package render

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/agusx1211/usagebar/internal/theme"
	"github.com/agusx1211/usagebar/internal/usage"
)

const (
	barWidth   = 20
	labelWidth = 12
)

// Options controls text output.
type Options struct {
	Color bool
	Width int // 0 disables truncation
	Now   func() time.Time
}

type painter struct {
	r  *lipgloss.Renderer
	on bool
}

func newPainter(color bool) painter {
	r := lipgloss.NewRenderer(io.Discard)
	if color {
		r.SetColorProfile(termenv.TrueColor)
		r.SetHasDarkBackground(true)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return painter{r: r, on: color}
}

func (p painter) paint(style lipgloss.Style, s string) string {
	if !p.on || s == "" {
		return s
	}
	return p.r.NewStyle().Inherit(style).Render(s)
}

// Text renders every snapshot of the report as a block of lines.
func Text(report usage.Report, opts Options) string {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	p := newPainter(opts.Color)
	t := now()

	if len(report.Snapshots) == 0 {
		return p.paint(theme.Dim, "No usage data available.") + "\n"
	}

	var blocks []string
	for _, snap := range report.Snapshots {
		var lines []string
		if snap.IsMissing {
			lines = missingBlock(p, snap)
		} else {
			lines = dataBlock(p, snap, t)
		}
		if opts.Width > 0 {
			for i, line := range lines {
				lines[i] = ansi.Truncate(line, opts.Width, "…")
			}
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

// Tag is the short upper-case family name used in block headers.
func Tag(id usage.ProviderID) string {
	switch id {
	case usage.ProviderZai:
		return "ZAI"
	default:
		return strings.ToUpper(string(id))
	}
}

func header(p painter, snap usage.Snapshot) string {
	h := p.paint(theme.Header, "→ ["+Tag(snap.Provider)+"]")
	if snap.Label != "" && snap.Label != string(snap.Provider) {
		h += " " + p.paint(theme.Label, snap.Label)
	}
	if snap.PlanType != "" {
		h += " " + p.paint(theme.Plan, "("+strings.ToUpper(snap.PlanType)+")")
	}
	return h
}

func missingBlock(p painter, snap usage.Snapshot) []string {
	reason := snap.MissingReason
	if reason == "" {
		reason = "no data"
	}
	lines := []string{
		header(p, snap),
		"  " + p.paint(theme.Warning, "Unavailable: ") + reason,
	}
	for _, d := range snap.MissingDetails {
		lines = append(lines, "    "+p.paint(theme.Dim, "· "+d))
	}
	return lines
}

func dataBlock(p painter, snap usage.Snapshot, now time.Time) []string {
	lines := []string{header(p, snap)}

	if snap.Provider == usage.ProviderOpenRouter {
		lines = append(lines, openRouterLines(p, snap, now)...)
	} else {
		for _, w := range Windows(snap) {
			lines = append(lines, windowLine(p, w, now))
		}
	}

	switch {
	case snap.Proxy != nil:
		lines = append(lines, proxyLines(p, snap.Proxy)...)
	case snap.Copilot != nil:
		lines = append(lines, copilotLines(snap.Copilot)...)
	case snap.Zai != nil:
		lines = append(lines, zaiLines(snap.Zai)...)
	}

	if c := snap.Credits; c != nil && c.HasCredits && snap.Provider != usage.ProviderOpenRouter {
		label := "Credits"
		if snap.Provider == usage.ProviderAnthropic {
			label = "Extra usage"
		}
		balance := c.Balance
		if c.Unlimited {
			balance = "Unlimited"
		}
		lines = append(lines, field(label, balance))
	}
	if snap.Note != "" {
		lines = append(lines, "  "+p.paint(theme.Warning, "Note: ")+snap.Note)
	}
	return lines
}

func field(label, value string) string {
	return fmt.Sprintf("  %-*s %s", labelWidth, label+":", value)
}

func windowLine(p painter, w Window, now time.Time) string {
	remaining := 100 - w.UsedPct
	style := theme.LevelStyle(w.Level)
	value := fmt.Sprintf("%s %s", bar(p, remaining, style), p.paint(style, fmt.Sprintf("%.0f%% left", remaining)))
	return field(w.Label, value) + p.paint(theme.Dim, resetSuffix(w.ResetsAt, now))
}

// bar draws remaining quota as a filled/empty gauge.
func bar(p painter, remainingPct float64, style lipgloss.Style) string {
	remainingPct = math.Max(0, math.Min(100, remainingPct))
	filled := int(math.Round(remainingPct / 100 * barWidth))
	return p.paint(style, strings.Repeat("█", filled)) + p.paint(theme.Dim, strings.Repeat("░", barWidth-filled))
}

func resetSuffix(at *time.Time, now time.Time) string {
	if at == nil {
		return ""
	}
	d := at.Sub(now)
	if d <= 0 {
		return " (resets soon)"
	}
	return " (resets in " + FormatDuration(d) + ")"
}

// FormatDuration renders a countdown with at most two units.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		h := int(d.Hours())
		if m := int(d.Minutes()) % 60; m > 0 {
			return fmt.Sprintf("%dh %dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	default:
		days := int(d.Hours() / 24)
		if h := int(d.Hours()) % 24; h > 0 {
			return fmt.Sprintf("%dd %dh", days, h)
		}
		return fmt.Sprintf("%dd", days)
	}
}

func openRouterLines(p painter, snap usage.Snapshot, now time.Time) []string {
	or := snap.OpenRouter
	if or == nil {
		return nil
	}
	if or.Limit < 0 {
		return []string{
			field("Credit", "Unlimited"),
			field("Used", fmt.Sprintf("$%.2f", or.Usage)),
		}
	}
	var credit string
	var reset *time.Time
	if w := snap.Primary; w != nil {
		style := theme.LevelStyle(theme.LevelForUsed(w.UsedPercent))
		credit = fmt.Sprintf("%s %s", bar(p, w.RemainingPct(), style), p.paint(style, fmt.Sprintf("%.0f%% left", w.RemainingPct())))
		reset = w.ResetsAt
	}
	return []string{
		field("Credit", credit),
		field("Used", fmt.Sprintf("$%.2f / $%.2f", or.Usage, or.Limit)),
		field("Remaining", fmt.Sprintf("$%.2f", or.LimitRemaining)) + p.paint(theme.Dim, resetSuffix(reset, now)),
	}
}

func copilotLines(q *usage.CopilotQuota) []string {
	if q.Total < 0 {
		return []string{field("Premium", "Unlimited")}
	}
	return []string{field("Used", fmt.Sprintf("%d / %d requests", q.Used, q.Total))}
}

func zaiLines(q *usage.ZaiQuota) []string {
	var lines []string
	if q.HasModelSummary {
		lines = append(lines, field("Model calls", fmt.Sprintf("%d (%d tokens)", q.ModelCalls, q.TokensUsed)))
	}
	if q.HasToolSummary {
		lines = append(lines, field("Tools", fmt.Sprintf("%d search, %d web read", q.SearchCalls, q.WebReadCalls)))
	}
	return lines
}

func proxyLines(p painter, q *usage.ProxyQuota) []string {
	lines := []string{field("Credentials", fmt.Sprintf("%d active / %d total", q.ActiveCredentials, q.TotalCredentials))}
	if len(q.Providers) == 0 {
		return append(lines, "  "+p.paint(theme.Dim, "No provider data available"))
	}
	for _, prov := range q.Providers {
		lines = append(lines, "  "+prov.Name+":")
		for _, tier := range prov.Tiers {
			lines = append(lines, "    "+strings.ToUpper(tier.Tier[:1])+tier.Tier[1:]+":")
			for _, g := range tier.Groups {
				remaining := float64(g.RemainingPct)
				style := theme.LevelStyle(theme.LevelForUsed(100 - remaining))
				lines = append(lines, fmt.Sprintf("      %-7s %s %d/%d", g.Name+":", bar(p, remaining, style), g.Remaining, g.Max))
			}
		}
	}
	return lines
}
