package usage

import (
	"fmt"
	"testing"
	"time"
)

func TestProviderIDDisplayName(t *testing.T) {
	tests := []struct {
		provider ProviderID
		want     string
	}{
		{ProviderCodex, "Codex"},
		{ProviderCopilot, "GitHub Copilot"},
		{ProviderZai, "Z.ai Coding Plan"},
		{ProviderOpenRouter, "OpenRouter"},
		{ProviderID("unknown"), "unknown"},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			if got := tt.provider.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUsageLevelString(t *testing.T) {
	tests := []struct {
		level UsageLevel
		want  string
	}{
		{LevelNormal, "normal"},
		{LevelWarning, "warning"},
		{LevelCritical, "critical"},
		{LevelExhausted, "exhausted"},
		{UsageLevel(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimitWindowRemainingPct(t *testing.T) {
	tests := []struct {
		name     string
		window   RateLimitWindow
		expected float64
	}{
		{"empty", RateLimitWindow{UsedPercent: 0}, 100},
		{"quarter", RateLimitWindow{UsedPercent: 25}, 75},
		{"full", RateLimitWindow{UsedPercent: 100}, 0},
		{"over", RateLimitWindow{UsedPercent: 150}, 0},
		{"negative", RateLimitWindow{UsedPercent: -10}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.window.RemainingPct(); got != tt.expected {
				t.Errorf("RemainingPct() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRateLimitWindowLevel(t *testing.T) {
	tests := []struct {
		used float64
		want UsageLevel
	}{
		{0, LevelNormal},
		{69.9, LevelNormal},
		{70, LevelWarning},
		{90, LevelCritical},
		{99.9, LevelCritical},
		{100, LevelExhausted},
		{120, LevelExhausted},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.1f", tt.used), func(t *testing.T) {
			w := RateLimitWindow{UsedPercent: tt.used}
			if got := w.Level(70, 90); got != tt.want {
				t.Errorf("Level() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeUntilResetNil(t *testing.T) {
	if got := (RateLimitWindow{}).TimeUntilReset(); got != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0", got)
	}
	future := time.Now().Add(time.Hour)
	if got := (RateLimitWindow{ResetsAt: &future}).TimeUntilReset(); got <= 0 {
		t.Errorf("TimeUntilReset() = %v, want positive", got)
	}
}

func TestSnapshotValid(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tests := []struct {
		name string
		snap Snapshot
		want bool
	}{
		{"empty", Snapshot{}, false},
		{"plan only", Snapshot{PlanType: "plus"}, true},
		{"window", Snapshot{Primary: &RateLimitWindow{UsedPercent: 10}}, true},
		{"missing", NewMissing(ProviderCodex, "codex", "", "x", nil, now), true},
		{"missing with data", Snapshot{IsMissing: true, PlanType: "plus"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewMissingCopiesDetails(t *testing.T) {
	details := []string{"a"}
	s := NewMissing(ProviderCodex, "codex", "", "reason", details, time.Unix(0, 0))
	details[0] = "mutated"
	if s.MissingDetails[0] != "a" {
		t.Fatalf("MissingDetails aliased caller slice: %v", s.MissingDetails)
	}
	if s.HasData() || !s.IsMissing {
		t.Fatalf("NewMissing() produced non-missing shape: %+v", s)
	}
}

func TestProviderErrorWraps(t *testing.T) {
	inner := fmt.Errorf("HTTP 401")
	err := &ProviderError{Provider: ProviderOpenRouter, Err: inner}
	if err.Error() != "OpenRouter: HTTP 401" {
		t.Errorf("Error() = %q", err.Error())
	}
	if err.Unwrap() != inner {
		t.Errorf("Unwrap() did not return inner error")
	}
	if got := (&ProviderError{Provider: ProviderZai}).Error(); got != "Z.ai Coding Plan: unknown error" {
		t.Errorf("Error() without cause = %q", got)
	}
}
