package providers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/errgroup"

	"github.com/agusx1211/usagebar/internal/usage"
)

const (
	anthropicBaseURL   = "https://api.anthropic.com"
	anthropicOAuthBeta = "oauth-2025-04-20"
	anthropicUserAgent = "claude-code/2.0.32"
)

// AnthropicProvider reads Claude subscription utilization through the OAuth
// usage endpoints.
type AnthropicProvider struct {
	base
}

func NewAnthropicProvider(opts ...Option) *AnthropicProvider {
	return &AnthropicProvider{base: newBase(usage.ProviderAnthropic, anthropicBaseURL, opts)}
}

type anthropicProfile struct {
	Account struct {
		HasClaudeMax bool `json:"has_claude_max"`
		HasClaudePro bool `json:"has_claude_pro"`
	} `json:"account"`
	Organization struct {
		OrganizationType string `json:"organization_type"`
	} `json:"organization"`
}

type anthropicUsageWindow struct {
	Utilization float64 `json:"utilization"`
	ResetsAt    *string `json:"resets_at"`
}

type anthropicUsage struct {
	FiveHour   *anthropicUsageWindow `json:"five_hour"`
	SevenDay   *anthropicUsageWindow `json:"seven_day"`
	ExtraUsage *struct {
		IsEnabled    bool     `json:"is_enabled"`
		UsedCredits  *float64 `json:"used_credits"`
		MonthlyLimit *float64 `json:"monthly_limit"`
	} `json:"extra_usage"`
}

func (p *AnthropicProvider) token(auth *usage.Auth) (string, error) {
	if auth != nil && strings.TrimSpace(auth.Access) != "" {
		return strings.TrimSpace(auth.Access), nil
	}
	return p.locator.ClaudeAccessToken()
}

func (p *AnthropicProvider) client(token string) anthropic.Client {
	return anthropic.NewClient(
		option.WithBaseURL(p.baseURL+"/"),
		option.WithHTTPClient(p.httpClient),
		option.WithHeaderDel("x-api-key"),
		option.WithAuthToken(token),
		option.WithHeader("anthropic-beta", anthropicOAuthBeta),
		option.WithHeader("User-Agent", anthropicUserAgent),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(p.timeout),
	)
}

func (p *AnthropicProvider) FetchUsage(ctx context.Context, auth *usage.Auth) (*usage.Snapshot, error) {
	token, err := p.token(auth)
	if err != nil {
		return nil, p.fail(err)
	}
	client := p.client(token)

	var profile anthropicProfile
	var resp anthropicUsage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := client.Get(gctx, "api/oauth/profile", nil, &profile); err != nil {
			return fmt.Errorf("profile: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := client.Get(gctx, "api/oauth/usage", nil, &resp); err != nil {
			return fmt.Errorf("usage: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, p.fail(err)
	}

	plan := anthropicPlan(profile)
	quota := &usage.AnthropicQuota{
		SubscriptionType: plan,
		FiveHour:         anthropicWindow(resp.FiveHour),
		SevenDay:         anthropicWindow(resp.SevenDay),
	}

	now := p.now()
	snap := &usage.Snapshot{
		Timestamp: now,
		Provider:  usage.ProviderAnthropic,
		PlanType:  plan,
		Anthropic: quota,
		UpdatedAt: now,
	}
	if x := resp.ExtraUsage; x != nil && x.IsEnabled {
		c := &usage.Credits{HasCredits: true}
		if x.UsedCredits != nil {
			c.Balance = strconv.FormatFloat(*x.UsedCredits, 'f', -1, 64)
		}
		snap.Credits = c
	}
	return snap, nil
}

func anthropicPlan(p anthropicProfile) string {
	switch {
	case p.Account.HasClaudeMax || p.Organization.OrganizationType == "claude_max":
		return "max"
	case p.Account.HasClaudePro || p.Organization.OrganizationType == "claude_pro":
		return "pro"
	default:
		return "free"
	}
}

func anthropicWindow(w *anthropicUsageWindow) *usage.AnthropicWindow {
	if w == nil {
		return nil
	}
	out := &usage.AnthropicWindow{Utilization: w.Utilization}
	if w.ResetsAt != nil {
		out.ResetsAt = parseTimePtr(*w.ResetsAt)
	}
	return out
}
