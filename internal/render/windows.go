package render

import (
	"time"

	"github.com/agusx1211/usagebar/internal/theme"
	"github.com/agusx1211/usagebar/internal/usage"
)

// Window is one quota gauge extracted from a snapshot, whatever family it
// came from.
type Window struct {
	Name          string
	Label         string
	UsedPct       float64
	WindowMinutes int
	ResetsAt      *time.Time
	Level         usage.UsageLevel
}

func newWindow(name, label string, used float64, minutes int, resets *time.Time) Window {
	return Window{
		Name:          name,
		Label:         label,
		UsedPct:       used,
		WindowMinutes: minutes,
		ResetsAt:      resets,
		Level:         theme.LevelForUsed(used),
	}
}

// Windows lists the gauges of a data snapshot in display order.
func Windows(s usage.Snapshot) []Window {
	if s.IsMissing {
		return nil
	}
	var out []Window
	add := func(name, fallback string, w *usage.RateLimitWindow) {
		if w == nil {
			return
		}
		label := fallback
		if w.WindowMinutes > 0 {
			label = windowLabel(w.WindowMinutes)
		}
		out = append(out, newWindow(name, label, w.UsedPercent, w.WindowMinutes, w.ResetsAt))
	}

	switch {
	case s.Anthropic != nil:
		if w := s.Anthropic.FiveHour; w != nil {
			out = append(out, newWindow("five_hour", "5-Hour", w.Utilization, 300, w.ResetsAt))
		}
		if w := s.Anthropic.SevenDay; w != nil {
			out = append(out, newWindow("seven_day", "7-Day", w.Utilization, 7*24*60, w.ResetsAt))
		}
	case s.Copilot != nil:
		if q := s.Copilot; q.Total >= 0 {
			out = append(out, newWindow("premium", "Premium", float64(100-q.PercentRemaining), 0, q.ResetTime))
		}
	case s.Zai != nil:
		add("tokens", "Tokens", s.Primary)
		add("time", "Time", s.Secondary)
	case s.OpenRouter != nil:
		add("credit", "Credit", s.Primary)
	default:
		add("primary", "Primary", s.Primary)
		add("secondary", "Secondary", s.Secondary)
		if s.CodeReview != nil {
			w := *s.CodeReview
			out = append(out, newWindow("code_review", "Code review", w.UsedPercent, w.WindowMinutes, w.ResetsAt))
		}
	}
	return out
}

// windowLabel names a window by its length.
func windowLabel(minutes int) string {
	switch {
	case minutes == 7*24*60:
		return "Weekly"
	case minutes == 24*60:
		return "Daily"
	default:
		return FormatDuration(time.Duration(minutes)*time.Minute) + " limit"
	}
}

// WorstLevel is the most severe level across the snapshot's gauges.
func WorstLevel(s usage.Snapshot) usage.UsageLevel {
	worst := usage.LevelNormal
	for _, w := range Windows(s) {
		if w.Level > worst {
			worst = w.Level
		}
	}
	return worst
}
