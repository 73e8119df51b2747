package providers

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/tidwall/gjson"

	"github.com/agusx1211/usagebar/internal/debug"
	"github.com/agusx1211/usagebar/internal/usage"
)

const (
	githubAPIBaseURL = "https://api.github.com"

	copilotVersion = "0.35.0"
)

// copilotPlanLimits is the monthly premium-request allowance per tier.
var copilotPlanLimits = map[string]int{
	"free":       50,
	"pro":        300,
	"pro+":       1500,
	"business":   300,
	"enterprise": 1000,
}

// copilotFreeLimit applies to the limited-user response shape.
const copilotFreeLimit = 50

// CopilotProvider reads GitHub Copilot premium-request quotas. It tries the
// public billing API when a quota config exists, then the internal user API.
type CopilotProvider struct {
	base
}

func NewCopilotProvider(opts ...Option) *CopilotProvider {
	return &CopilotProvider{base: newBase(usage.ProviderCopilot, githubAPIBaseURL, opts)}
}

func (p *CopilotProvider) FetchUsage(ctx context.Context, auth *usage.Auth) (*usage.Snapshot, error) {
	var errs []string

	cfg, err := p.locator.CopilotQuota()
	if err != nil {
		errs = append(errs, err.Error())
	}
	if cfg != nil {
		quota, err := p.fetchBilling(ctx, cfg.Token, cfg.Username, cfg.Tier)
		if err == nil {
			return p.snapshot(quota, cfg.Tier), nil
		}
		debug.LogKV("copilot", "billing strategy failed", "error", err)
		errs = append(errs, "billing: "+err.Error())
	}

	token, apiBase := p.oauthToken(auth)
	if token == "" {
		if len(errs) == 0 {
			errs = append(errs, "no GitHub token found")
		}
		return nil, p.failf("%s", strings.Join(errs, "; "))
	}

	quota, err := p.fetchInternal(ctx, token, apiBase)
	if err != nil {
		errs = append(errs, "internal: "+err.Error())
		return nil, p.failf("%s", strings.Join(errs, "; "))
	}
	return p.snapshot(quota, ""), nil
}

func (p *CopilotProvider) snapshot(q *usage.CopilotQuota, plan string) *usage.Snapshot {
	now := p.now()
	return &usage.Snapshot{
		Timestamp: now,
		Provider:  usage.ProviderCopilot,
		PlanType:  plan,
		Copilot:   q,
		UpdatedAt: now,
	}
}

// oauthToken picks the GitHub OAuth token: the standalone usage token first,
// then the resolved credential (refresh holds the GitHub token, access the
// short-lived Copilot token).
func (p *CopilotProvider) oauthToken(auth *usage.Auth) (token, apiBase string) {
	apiBase = p.baseURL
	if tok, err := p.locator.CopilotUsageToken(); err == nil {
		return tok, apiBase
	}
	if auth == nil {
		return "", apiBase
	}
	if auth.EnterpriseURL != "" && apiBase == githubAPIBaseURL {
		host := strings.TrimPrefix(strings.TrimPrefix(auth.EnterpriseURL, "https://"), "http://")
		apiBase = "https://api." + strings.TrimRight(host, "/")
	}
	return firstNonBlank(auth.Refresh, auth.Access), apiBase
}

// githubClient builds a go-github client on top of the rate-limit aware
// transport. token may be empty when the caller sets Authorization itself.
func (p *CopilotProvider) githubClient(apiBase, token string) (*gh.Client, error) {
	c := gh.NewClient(github_ratelimit.NewClient(p.transport()))
	if token != "" {
		c = c.WithAuthToken(token)
	}
	u, err := url.Parse(strings.TrimRight(apiBase, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parsing GitHub API URL: %w", err)
	}
	c.BaseURL = u
	return c, nil
}

type billingUsageResponse struct {
	UsageItems []struct {
		SKU           string  `json:"sku"`
		GrossQuantity float64 `json:"grossQuantity"`
	} `json:"usageItems"`
}

func (p *CopilotProvider) fetchBilling(ctx context.Context, token, username, tier string) (*usage.CopilotQuota, error) {
	limit, ok := copilotPlanLimits[strings.ToLower(tier)]
	if !ok {
		return nil, fmt.Errorf("unknown Copilot tier %q", tier)
	}

	client, err := p.githubClient(p.baseURL, token)
	if err != nil {
		return nil, err
	}
	ctx, cancel := p.requestContext(ctx)
	defer cancel()

	req, err := client.NewRequest(http.MethodGet, fmt.Sprintf("users/%s/settings/billing/premium_request/usage", url.PathEscape(username)), nil)
	if err != nil {
		return nil, err
	}
	var data billingUsageResponse
	if _, err := client.Do(ctx, req, &data); err != nil {
		return nil, err
	}

	var used float64
	for _, item := range data.UsageItems {
		if item.SKU == "Copilot Premium Request" || strings.Contains(item.SKU, "Premium") {
			used += item.GrossQuantity
		}
	}
	usedInt := int(math.Round(used))
	remaining := max(0, limit-usedInt)

	now := p.now().UTC()
	reset := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return &usage.CopilotQuota{
		Used:             usedInt,
		Total:            limit,
		PercentRemaining: int(math.Round(float64(remaining) / float64(limit) * 100)),
		ResetTime:        &reset,
	}, nil
}

func (p *CopilotProvider) copilotRequest(ctx context.Context, client *gh.Client, path, authorization string) ([]byte, error) {
	ctx, cancel := p.requestContext(ctx)
	defer cancel()

	req, err := client.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", authorization)
	req.Header.Set("User-Agent", "GitHubCopilotChat/"+copilotVersion)
	req.Header.Set("Editor-Version", "vscode/1.107.0")
	req.Header.Set("Editor-Plugin-Version", "copilot-chat/"+copilotVersion)
	req.Header.Set("Copilot-Integration-Id", "vscode-chat")

	var buf bytes.Buffer
	if _, err := client.Do(ctx, req, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *CopilotProvider) fetchInternal(ctx context.Context, oauthToken, apiBase string) (*usage.CopilotQuota, error) {
	client, err := p.githubClient(apiBase, "")
	if err != nil {
		return nil, err
	}

	body, err := p.copilotRequest(ctx, client, "copilot_internal/user", "token "+oauthToken)
	if err != nil {
		debug.LogKV("copilot", "legacy token rejected, exchanging", "error", err)
		exchanged, xerr := p.copilotRequest(ctx, client, "copilot_internal/v2/token", "Bearer "+oauthToken)
		if xerr != nil {
			return nil, fmt.Errorf("token exchange: %w", xerr)
		}
		copilotToken := gjson.GetBytes(exchanged, "token").String()
		if copilotToken == "" {
			return nil, fmt.Errorf("token exchange returned no token")
		}
		body, err = p.copilotRequest(ctx, client, "copilot_internal/user", "Bearer "+copilotToken)
		if err != nil {
			return nil, err
		}
	}

	q := parseCopilotInternal(body)
	if q == nil {
		return nil, fmt.Errorf("unrecognized copilot_internal/user response")
	}
	return q, nil
}

// parseCopilotInternal understands the limited-user and premium-interactions
// response shapes.
func parseCopilotInternal(body []byte) *usage.CopilotQuota {
	doc := gjson.ParseBytes(body)

	if limited := doc.Get("limited_user_quotas"); limited.Exists() {
		remaining := int(limited.Get("chat").Int())
		reset := doc.Get("limited_user_reset_date").String()
		if reset == "" {
			reset = doc.Get("quota_reset_date").String()
		}
		return &usage.CopilotQuota{
			Used:             max(0, copilotFreeLimit-remaining),
			Total:            copilotFreeLimit,
			PercentRemaining: int(math.Round(float64(remaining) / copilotFreeLimit * 100)),
			ResetTime:        parseTimePtr(reset),
		}
	}

	premium := doc.Get("quota_snapshots.premium_interactions")
	if !premium.Exists() {
		return nil
	}
	q := &usage.CopilotQuota{
		PercentRemaining: int(math.Round(premium.Get("percent_remaining").Float())),
		ResetTime:        parseTimePtr(doc.Get("quota_reset_date").String()),
	}
	if premium.Get("unlimited").Bool() {
		q.Total = -1
	} else {
		entitlement := int(premium.Get("entitlement").Int())
		q.Total = entitlement
		q.Used = entitlement - int(premium.Get("remaining").Int())
	}
	return q
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
