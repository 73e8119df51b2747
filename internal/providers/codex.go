package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/agusx1211/usagebar/internal/usage"
)

const codexBaseURL = "https://chatgpt.com"

// CodexProvider reads ChatGPT-plan rate limits from the Codex backend.
type CodexProvider struct {
	base
}

func NewCodexProvider(opts ...Option) *CodexProvider {
	return &CodexProvider{base: newBase(usage.ProviderCodex, codexBaseURL, opts)}
}

type codexUsageResponse struct {
	PlanType            string          `json:"plan_type"`
	RateLimit           *codexRateLimit `json:"rate_limit"`
	CodeReviewRateLimit *codexRateLimit `json:"code_review_rate_limit"`
	Credits             *codexCredits   `json:"credits"`
}

type codexRateLimit struct {
	Allowed         bool         `json:"allowed"`
	LimitReached    bool         `json:"limit_reached"`
	PrimaryWindow   *codexWindow `json:"primary_window"`
	SecondaryWindow *codexWindow `json:"secondary_window"`
}

type codexWindow struct {
	UsedPercent        float64 `json:"used_percent"`
	LimitWindowSeconds int64   `json:"limit_window_seconds"`
	ResetAfterSeconds  int64   `json:"reset_after_seconds"`
	ResetAt            int64   `json:"reset_at"`
}

type codexCredits struct {
	HasCredits bool    `json:"has_credits"`
	Unlimited  bool    `json:"unlimited"`
	Balance    *string `json:"balance"`
}

func (p *CodexProvider) FetchUsage(ctx context.Context, auth *usage.Auth) (*usage.Snapshot, error) {
	if auth == nil || strings.TrimSpace(auth.Access) == "" {
		return nil, p.failf("no ChatGPT access token")
	}

	header := bearer(auth.Access)
	header.Set("User-Agent", "codex-cli")
	if auth.AccountID != "" {
		header.Set("ChatGPT-Account-Id", auth.AccountID)
	}

	var resp codexUsageResponse
	if err := p.getJSON(ctx, p.baseURL+"/backend-api/wham/usage", header, &resp); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
			return nil, p.failf("access token is invalid or expired")
		}
		return nil, p.fail(err)
	}

	now := p.now()
	snap := &usage.Snapshot{
		Timestamp: now,
		Provider:  usage.ProviderCodex,
		PlanType:  resp.PlanType,
		UpdatedAt: now,
	}
	if rl := resp.RateLimit; rl != nil {
		snap.Primary = codexWindowToRateLimit(rl.PrimaryWindow)
		snap.Secondary = codexWindowToRateLimit(rl.SecondaryWindow)
	}
	if rl := resp.CodeReviewRateLimit; rl != nil {
		snap.CodeReview = codexWindowToRateLimit(rl.PrimaryWindow)
	}
	if c := resp.Credits; c != nil {
		balance := ""
		if c.Balance != nil {
			balance = *c.Balance
		}
		snap.Credits = &usage.Credits{HasCredits: c.HasCredits, Unlimited: c.Unlimited, Balance: balance}
	}

	if !snap.HasData() {
		return nil, p.failf("response carried no usage data")
	}
	return snap, nil
}

func codexWindowToRateLimit(w *codexWindow) *usage.RateLimitWindow {
	if w == nil {
		return nil
	}
	return &usage.RateLimitWindow{
		UsedPercent:   w.UsedPercent,
		WindowMinutes: int(w.LimitWindowSeconds / 60),
		ResetsAt:      unixPtr(w.ResetAt),
	}
}
