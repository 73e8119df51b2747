package usage

import (
	"time"
)

type ProviderID string

const (
	ProviderCodex      ProviderID = "codex"
	ProviderProxy      ProviderID = "proxy"
	ProviderCopilot    ProviderID = "copilot"
	ProviderZai        ProviderID = "zai-coding-plan"
	ProviderAnthropic  ProviderID = "anthropic"
	ProviderOpenRouter ProviderID = "openrouter"
)

// CanonicalProviders is the fixed order used for missing-state synthesis.
var CanonicalProviders = []ProviderID{
	ProviderCodex,
	ProviderProxy,
	ProviderCopilot,
	ProviderZai,
	ProviderAnthropic,
	ProviderOpenRouter,
}

func (p ProviderID) String() string {
	return string(p)
}

func (p ProviderID) DisplayName() string {
	switch p {
	case ProviderCodex:
		return "Codex"
	case ProviderProxy:
		return "Mirrowel Proxy"
	case ProviderCopilot:
		return "GitHub Copilot"
	case ProviderZai:
		return "Z.ai Coding Plan"
	case ProviderAnthropic:
		return "Anthropic"
	case ProviderOpenRouter:
		return "OpenRouter"
	default:
		return string(p)
	}
}

type UsageLevel int

const (
	LevelNormal UsageLevel = iota
	LevelWarning
	LevelCritical
	LevelExhausted
)

func (l UsageLevel) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	case LevelExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// LevelFor classifies a utilization percentage against the given thresholds.
func LevelFor(usedPct, warnThreshold, criticalThreshold float64) UsageLevel {
	if usedPct >= 100 {
		return LevelExhausted
	}
	if usedPct >= criticalThreshold {
		return LevelCritical
	}
	if usedPct >= warnThreshold {
		return LevelWarning
	}
	return LevelNormal
}

// RateLimitWindow is one rolling or fixed quota window reported by a provider.
type RateLimitWindow struct {
	UsedPercent   float64
	WindowMinutes int // 0 when the provider does not report a window length
	ResetsAt      *time.Time
}

func (w RateLimitWindow) RemainingPct() float64 {
	remaining := 100.0 - w.UsedPercent
	if remaining < 0 {
		return 0
	}
	if remaining > 100 {
		return 100
	}
	return remaining
}

func (w RateLimitWindow) Level(warnThreshold, criticalThreshold float64) UsageLevel {
	return LevelFor(w.UsedPercent, warnThreshold, criticalThreshold)
}

func (w RateLimitWindow) TimeUntilReset() time.Duration {
	if w.ResetsAt == nil {
		return 0
	}
	return time.Until(*w.ResetsAt)
}

type Credits struct {
	HasCredits bool
	Unlimited  bool
	Balance    string
}

type CopilotQuota struct {
	Used             int
	Total            int // -1 when unlimited
	PercentRemaining int
	ResetTime        *time.Time
}

type ZaiLimit struct {
	Type          string // TOKENS_LIMIT, TIME_LIMIT
	UsedPercent   float64
	Current       int64
	Total         int64
	Remaining     int64
	NextResetTime *time.Time
}

type ZaiQuota struct {
	Limits          []ZaiLimit
	ModelCalls      int64
	TokensUsed      int64
	SearchCalls     int64
	WebReadCalls    int64
	HasModelSummary bool
	HasToolSummary  bool
}

type AnthropicWindow struct {
	Utilization float64
	ResetsAt    *time.Time
}

type AnthropicQuota struct {
	SubscriptionType string
	FiveHour         *AnthropicWindow
	SevenDay         *AnthropicWindow
}

type OpenRouterQuota struct {
	Limit          float64 // -1 when unlimited
	Usage          float64
	LimitRemaining float64
	UsageDaily     float64
	UsageWeekly    float64
	UsageMonthly   float64
	IsFreeTier     bool
}

type ProxyQuotaGroup struct {
	Name         string `json:"name"`
	Remaining    int    `json:"remaining"`
	Max          int    `json:"max"`
	RemainingPct int    `json:"remaining_pct"`
}

type ProxyTier struct {
	Tier   string            `json:"tier"` // paid, free
	Groups []ProxyQuotaGroup `json:"groups"`
}

type ProxyProvider struct {
	Name  string      `json:"name"`
	Tiers []ProxyTier `json:"tiers"`
}

type ProxyQuota struct {
	Providers         []ProxyProvider
	TotalCredentials  int
	ActiveCredentials int
	DataSource        string
}

// Snapshot is the normalized result of one fetch attempt for one entry.
// It is either a data snapshot or a missing placeholder, never both.
type Snapshot struct {
	Timestamp time.Time
	Provider  ProviderID
	EntryID   string
	Label     string // credential display name for multi-key providers

	PlanType   string
	Primary    *RateLimitWindow
	Secondary  *RateLimitWindow
	CodeReview *RateLimitWindow
	Credits    *Credits
	UpdatedAt  time.Time

	// At most one family payload is set.
	Copilot    *CopilotQuota
	Zai        *ZaiQuota
	Anthropic  *AnthropicQuota
	OpenRouter *OpenRouterQuota
	Proxy      *ProxyQuota

	Note string

	IsMissing      bool
	MissingReason  string
	MissingDetails []string
}

// HasData reports whether any plan or quota field is populated.
func (s Snapshot) HasData() bool {
	return s.PlanType != "" ||
		s.Primary != nil ||
		s.Secondary != nil ||
		s.CodeReview != nil ||
		s.Credits != nil ||
		s.Copilot != nil ||
		s.Zai != nil ||
		s.Anthropic != nil ||
		s.OpenRouter != nil ||
		s.Proxy != nil
}

// Valid reports whether the snapshot is exactly one of the two kinds.
func (s Snapshot) Valid() bool {
	if s.IsMissing {
		return !s.HasData()
	}
	return s.HasData()
}

// NewMissing builds a placeholder snapshot for an entry that produced no data.
func NewMissing(provider ProviderID, entryID, label, reason string, details []string, now time.Time) Snapshot {
	var d []string
	if len(details) > 0 {
		d = append(d, details...)
	}
	return Snapshot{
		Timestamp:      now,
		Provider:       provider,
		EntryID:        entryID,
		Label:          label,
		UpdatedAt:      now,
		IsMissing:      true,
		MissingReason:  reason,
		MissingDetails: d,
	}
}

type ProviderError struct {
	Provider ProviderID
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider.DisplayName() + ": " + e.Err.Error()
	}
	return e.Provider.DisplayName() + ": unknown error"
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
