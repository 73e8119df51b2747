package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/agusx1211/usagebar/internal/usage"
)

// Color palette - dark theme inspired by Catppuccin Mocha
var (
	ColorBase     = lipgloss.Color("#1e1e2e")
	ColorSurface1 = lipgloss.Color("#45475a")
	ColorOverlay0 = lipgloss.Color("#6c7086")
	ColorText     = lipgloss.Color("#cdd6f4")
	ColorSubtext0 = lipgloss.Color("#a6adc8")

	ColorRed      = lipgloss.Color("#f38ba8")
	ColorGreen    = lipgloss.Color("#a6e3a1")
	ColorYellow   = lipgloss.Color("#f9e2af")
	ColorBlue     = lipgloss.Color("#89b4fa")
	ColorMauve    = lipgloss.Color("#cba6f7")
	ColorTeal     = lipgloss.Color("#94e2d5")
	ColorPeach    = lipgloss.Color("#fab387")
	ColorLavender = lipgloss.Color("#b4befe")
)

// Thresholds for colouring used-percentages.
const (
	WarnThreshold     = 70.0
	CriticalThreshold = 90.0
)

// Shared text styles.
var (
	Header  = lipgloss.NewStyle().Foreground(ColorMauve).Bold(true)
	Plan    = lipgloss.NewStyle().Foreground(ColorTeal)
	Label   = lipgloss.NewStyle().Foreground(ColorText)
	Dim     = lipgloss.NewStyle().Foreground(ColorOverlay0)
	Warning = lipgloss.NewStyle().Foreground(ColorPeach)
	Error   = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
)

// LevelColor returns the palette colour for a usage level.
func LevelColor(level usage.UsageLevel) lipgloss.Color {
	switch level {
	case usage.LevelNormal:
		return ColorGreen
	case usage.LevelWarning:
		return ColorYellow
	case usage.LevelCritical, usage.LevelExhausted:
		return ColorRed
	default:
		return ColorSubtext0
	}
}

// LevelStyle is the foreground style for a usage level.
func LevelStyle(level usage.UsageLevel) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(LevelColor(level))
}

// LevelForUsed classifies a used-percentage with the default thresholds.
func LevelForUsed(usedPct float64) usage.UsageLevel {
	return usage.LevelFor(usedPct, WarnThreshold, CriticalThreshold)
}
