package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/agusx1211/usagebar/internal/usage"
)

const openRouterBaseURL = "https://openrouter.ai"

// OpenRouterNoQuotaNote is attached when a key has a zero credit limit.
const OpenRouterNoQuotaNote = "No quota assigned or credit limit reached"

var errOpenRouterShape = errors.New("invalid OpenRouter response structure")

// OpenRouterProvider reads credit usage for one OpenRouter API key.
type OpenRouterProvider struct {
	base
}

func NewOpenRouterProvider(opts ...Option) *OpenRouterProvider {
	return &OpenRouterProvider{base: newBase(usage.ProviderOpenRouter, openRouterBaseURL, opts)}
}

type openRouterKeyResponse struct {
	Data *struct {
		Label          string   `json:"label"`
		Limit          *float64 `json:"limit"` // null or negative: no credit limit on the key
		LimitRemaining *float64 `json:"limit_remaining"`
		LimitReset     *string  `json:"limit_reset"`
		Usage          *float64 `json:"usage"`
		UsageDaily     float64  `json:"usage_daily"`
		UsageWeekly    float64  `json:"usage_weekly"`
		UsageMonthly   float64  `json:"usage_monthly"`
		IsFreeTier     bool     `json:"is_free_tier"`
	} `json:"data"`
}

func (p *OpenRouterProvider) FetchUsage(ctx context.Context, auth *usage.Auth) (*usage.Snapshot, error) {
	if auth == nil || strings.TrimSpace(auth.Key) == "" {
		return nil, p.failf("no API key")
	}

	header := bearer(strings.TrimSpace(auth.Key))
	header.Set("Content-Type", "application/json")

	var resp openRouterKeyResponse
	if err := p.getJSON(ctx, p.baseURL+"/api/v1/auth/key", header, &resp); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
			return nil, p.failf("key rejected (HTTP 401)")
		}
		return nil, p.fail(err)
	}
	d := resp.Data
	if d == nil || d.Usage == nil {
		return nil, p.fail(errOpenRouterShape)
	}

	usageUSD := decimal.NewFromFloat(*d.Usage)
	limit := decimal.NewFromInt(-1)
	if d.Limit != nil && *d.Limit >= 0 {
		limit = decimal.NewFromFloat(*d.Limit)
	}
	unlimited := limit.IsNegative()

	remaining := decimal.Zero
	switch {
	case d.LimitRemaining != nil:
		remaining = decimal.NewFromFloat(*d.LimitRemaining)
	case !unlimited:
		remaining = decimal.Max(decimal.Zero, limit.Sub(usageUSD))
	}

	now := p.now()
	snap := &usage.Snapshot{
		Timestamp: now,
		Provider:  usage.ProviderOpenRouter,
		PlanType:  "plus",
		Credits: &usage.Credits{
			HasCredits: true,
			Unlimited:  unlimited,
			Balance:    openRouterBalance(unlimited, remaining),
		},
		OpenRouter: &usage.OpenRouterQuota{
			Limit:          limit.InexactFloat64(),
			Usage:          usageUSD.InexactFloat64(),
			LimitRemaining: remaining.InexactFloat64(),
			UsageDaily:     d.UsageDaily,
			UsageWeekly:    d.UsageWeekly,
			UsageMonthly:   d.UsageMonthly,
			IsFreeTier:     d.IsFreeTier,
		},
		UpdatedAt: now,
	}
	if d.IsFreeTier {
		snap.PlanType = "free"
	}
	if !unlimited {
		snap.Primary = &usage.RateLimitWindow{UsedPercent: openRouterUsedPercent(usageUSD, limit)}
		if d.LimitReset != nil {
			snap.Primary.ResetsAt = parseTimePtr(*d.LimitReset)
		}
		if limit.IsZero() {
			snap.Note = OpenRouterNoQuotaNote
		}
	}
	return snap, nil
}

// openRouterUsedPercent is usage/limit as a percentage capped at 100; a zero
// limit counts as fully used.
func openRouterUsedPercent(used, limit decimal.Decimal) float64 {
	if limit.IsZero() {
		return 100
	}
	pct := used.Div(limit).Mul(decimal.NewFromInt(100))
	return decimal.Min(pct, decimal.NewFromInt(100)).InexactFloat64()
}

func openRouterBalance(unlimited bool, remaining decimal.Decimal) string {
	if unlimited {
		return "Unlimited"
	}
	return "$" + remaining.StringFixed(2)
}
