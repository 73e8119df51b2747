package render

import (
	"encoding/json"
	"time"

	"github.com/agusx1211/usagebar/internal/usage"
)

// ReportView is the wire shape of a report for --json and the web surface.
type ReportView struct {
	ID          string         `json:"id"`
	Target      string         `json:"target,omitempty"`
	Key         string         `json:"key,omitempty"`
	GeneratedAt string         `json:"generated_at"`
	DurationMS  int64          `json:"duration_ms"`
	Snapshots   []SnapshotView `json:"snapshots"`
	Missing     int            `json:"missing"`
}

type SnapshotView struct {
	Provider    string          `json:"provider"`
	DisplayName string          `json:"display_name"`
	EntryID     string          `json:"entry_id"`
	Label       string          `json:"label,omitempty"`
	Plan        string          `json:"plan,omitempty"`
	Level       string          `json:"level,omitempty"`
	Windows     []WindowView    `json:"windows,omitempty"`
	Credits     *CreditsView    `json:"credits,omitempty"`
	Copilot     *CopilotView    `json:"copilot,omitempty"`
	Zai         *ZaiView        `json:"zai,omitempty"`
	OpenRouter  *OpenRouterView `json:"openrouter,omitempty"`
	Proxy       *ProxyView      `json:"proxy,omitempty"`
	Note        string          `json:"note,omitempty"`
	UpdatedAt   string          `json:"updated_at"`

	Missing bool     `json:"missing"`
	Reason  string   `json:"reason,omitempty"`
	Details []string `json:"details,omitempty"`
}

type WindowView struct {
	Name          string  `json:"name"`
	Label         string  `json:"label"`
	UsedPct       float64 `json:"used_pct"`
	RemainingPct  float64 `json:"remaining_pct"`
	WindowMinutes int     `json:"window_minutes,omitempty"`
	ResetsAt      string  `json:"resets_at,omitempty"`
	Level         string  `json:"level"`
}

type CreditsView struct {
	HasCredits bool   `json:"has_credits"`
	Unlimited  bool   `json:"unlimited"`
	Balance    string `json:"balance,omitempty"`
}

type CopilotView struct {
	Used             int  `json:"used"`
	Total            int  `json:"total"`
	PercentRemaining int  `json:"percent_remaining"`
	Unlimited        bool `json:"unlimited"`
}

type ZaiView struct {
	ModelCalls   *int64 `json:"model_calls,omitempty"`
	TokensUsed   *int64 `json:"tokens_used,omitempty"`
	SearchCalls  *int64 `json:"search_calls,omitempty"`
	WebReadCalls *int64 `json:"web_read_calls,omitempty"`
}

type OpenRouterView struct {
	Limit          float64 `json:"limit"`
	Usage          float64 `json:"usage"`
	LimitRemaining float64 `json:"limit_remaining"`
	UsageDaily     float64 `json:"usage_daily"`
	UsageWeekly    float64 `json:"usage_weekly"`
	UsageMonthly   float64 `json:"usage_monthly"`
	IsFreeTier     bool    `json:"is_free_tier"`
}

type ProxyView struct {
	TotalCredentials  int                   `json:"total_credentials"`
	ActiveCredentials int                   `json:"active_credentials"`
	DataSource        string                `json:"data_source,omitempty"`
	Providers         []usage.ProxyProvider `json:"providers"`
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// View converts a report into its wire shape.
func View(report usage.Report) ReportView {
	v := ReportView{
		ID:          report.ID,
		Target:      string(report.Target),
		Key:         report.KeyName,
		GeneratedAt: formatTime(&report.StartedAt),
		DurationMS:  report.Duration.Milliseconds(),
		Snapshots:   make([]SnapshotView, 0, len(report.Snapshots)),
	}
	for _, s := range report.Snapshots {
		if s.IsMissing {
			v.Missing++
		}
		v.Snapshots = append(v.Snapshots, snapshotView(s))
	}
	return v
}

func snapshotView(s usage.Snapshot) SnapshotView {
	out := SnapshotView{
		Provider:    string(s.Provider),
		DisplayName: s.Provider.DisplayName(),
		EntryID:     s.EntryID,
		Label:       s.Label,
		Plan:        s.PlanType,
		Note:        s.Note,
		UpdatedAt:   formatTime(&s.UpdatedAt),
		Missing:     s.IsMissing,
		Reason:      s.MissingReason,
		Details:     s.MissingDetails,
	}
	if s.IsMissing {
		return out
	}

	out.Level = WorstLevel(s).String()
	for _, w := range Windows(s) {
		out.Windows = append(out.Windows, WindowView{
			Name:          w.Name,
			Label:         w.Label,
			UsedPct:       w.UsedPct,
			RemainingPct:  usage.RateLimitWindow{UsedPercent: w.UsedPct}.RemainingPct(),
			WindowMinutes: w.WindowMinutes,
			ResetsAt:      formatTime(w.ResetsAt),
			Level:         w.Level.String(),
		})
	}
	if c := s.Credits; c != nil {
		out.Credits = &CreditsView{HasCredits: c.HasCredits, Unlimited: c.Unlimited, Balance: c.Balance}
	}
	if q := s.Copilot; q != nil {
		out.Copilot = &CopilotView{Used: q.Used, Total: q.Total, PercentRemaining: q.PercentRemaining, Unlimited: q.Total < 0}
	}
	if q := s.Zai; q != nil {
		z := &ZaiView{}
		if q.HasModelSummary {
			z.ModelCalls, z.TokensUsed = &q.ModelCalls, &q.TokensUsed
		}
		if q.HasToolSummary {
			z.SearchCalls, z.WebReadCalls = &q.SearchCalls, &q.WebReadCalls
		}
		out.Zai = z
	}
	if q := s.OpenRouter; q != nil {
		out.OpenRouter = &OpenRouterView{
			Limit:          q.Limit,
			Usage:          q.Usage,
			LimitRemaining: q.LimitRemaining,
			UsageDaily:     q.UsageDaily,
			UsageWeekly:    q.UsageWeekly,
			UsageMonthly:   q.UsageMonthly,
			IsFreeTier:     q.IsFreeTier,
		}
	}
	if q := s.Proxy; q != nil {
		out.Proxy = &ProxyView{
			TotalCredentials:  q.TotalCredentials,
			ActiveCredentials: q.ActiveCredentials,
			DataSource:        q.DataSource,
			Providers:         q.Providers,
		}
	}
	return out
}

// JSON marshals the report view with indentation.
func JSON(report usage.Report) ([]byte, error) {
	return json.MarshalIndent(View(report), "", "  ")
}
