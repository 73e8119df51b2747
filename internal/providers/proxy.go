package providers

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/agusx1211/usagebar/internal/usage"
)

// proxyGroups maps upstream model-group names to display names. Groups not
// listed here are ignored.
var proxyGroups = map[string]string{
	"claude":   "claude",
	"g3-pro":   "g3-pro",
	"g3-flash": "g3-fla",
	"pro":      "g3-pro",
	"3-flash":  "g3-fla",
}

var proxyGroupOrder = []string{"claude", "g3-pro", "g3-fla"}

// ProxyProvider reads credential quotas from a Mirrowel proxy. It is
// configured from the usagebar config file, not the credential store.
type ProxyProvider struct {
	base
	apiKey string
}

func NewProxyProvider(endpoint, apiKey string, opts ...Option) *ProxyProvider {
	return &ProxyProvider{
		base:   newBase(usage.ProviderProxy, endpoint, opts),
		apiKey: strings.TrimSpace(apiKey),
	}
}

type proxyResponse struct {
	Providers     map[string]proxyUpstream `json:"providers"`
	Summary       *proxySummary            `json:"summary"`
	GlobalSummary *proxySummary            `json:"global_summary"`
	DataSource    string                   `json:"data_source"`
	Timestamp     float64                  `json:"timestamp"`
}

type proxyUpstream struct {
	Credentials []proxyCredential `json:"credentials"`
}

type proxyCredential struct {
	Tier        string                     `json:"tier"`
	ModelGroups map[string]proxyModelGroup `json:"model_groups"`
}

type proxyModelGroup struct {
	RequestsRemaining int `json:"requests_remaining"`
	RequestsMax       int `json:"requests_max"`
}

type proxySummary struct {
	TotalCredentials  int `json:"total_credentials"`
	ActiveCredentials int `json:"active_credentials"`
}

func (p *ProxyProvider) FetchUsage(ctx context.Context, auth *usage.Auth) (*usage.Snapshot, error) {
	if p.baseURL == "" {
		return nil, p.failf("no proxy endpoint configured")
	}
	apiKey := p.apiKey
	if auth != nil && auth.Key != "" {
		apiKey = auth.Key
	}

	url := p.baseURL
	if !strings.HasSuffix(url, "/v1") {
		url += "/v1"
	}
	url += "/quota-stats"

	header := bearer(apiKey)
	if apiKey == "" {
		header.Del("Authorization")
	}

	var resp proxyResponse
	if err := p.getJSON(ctx, url, header, &resp); err != nil {
		return nil, p.fail(err)
	}

	ts := p.now()
	if resp.Timestamp > 0 {
		sec, frac := math.Modf(resp.Timestamp)
		ts = time.Unix(int64(sec), int64(frac*1e9))
	}
	return &usage.Snapshot{
		Timestamp: ts,
		Provider:  usage.ProviderProxy,
		Proxy:     parseProxyQuota(resp),
		UpdatedAt: p.now(),
	}, nil
}

func parseProxyQuota(resp proxyResponse) *usage.ProxyQuota {
	q := &usage.ProxyQuota{DataSource: resp.DataSource}
	summary := resp.GlobalSummary
	if summary == nil {
		summary = resp.Summary
	}
	if summary != nil {
		q.TotalCredentials = summary.TotalCredentials
		q.ActiveCredentials = summary.ActiveCredentials
	}

	names := make([]string, 0, len(resp.Providers))
	for name := range resp.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		q.Providers = append(q.Providers, usage.ProxyProvider{
			Name:  name,
			Tiers: aggregateProxyTiers(resp.Providers[name].Credentials),
		})
	}
	return q
}

func normalizeProxyTier(tier string) string {
	if tier == "" || strings.Contains(tier, "free") {
		return "free"
	}
	return "paid"
}

func aggregateProxyTiers(creds []proxyCredential) []usage.ProxyTier {
	totals := map[string]map[string]*usage.ProxyQuotaGroup{
		"paid": {},
		"free": {},
	}
	for _, cred := range creds {
		tier := totals[normalizeProxyTier(cred.Tier)]
		for name, group := range cred.ModelGroups {
			mapped, ok := proxyGroups[name]
			if !ok {
				continue
			}
			g := tier[mapped]
			if g == nil {
				g = &usage.ProxyQuotaGroup{Name: mapped}
				tier[mapped] = g
			}
			g.Remaining += group.RequestsRemaining
			g.Max += group.RequestsMax
		}
	}

	var out []usage.ProxyTier
	for _, name := range []string{"paid", "free"} {
		groups := totals[name]
		if len(groups) == 0 {
			continue
		}
		t := usage.ProxyTier{Tier: name}
		for _, g := range proxyGroupOrder {
			if qg, ok := groups[g]; ok {
				if qg.Max > 0 {
					qg.RemainingPct = int(math.Round(float64(qg.Remaining) / float64(qg.Max) * 100))
				}
				t.Groups = append(t.Groups, *qg)
			}
		}
		out = append(out, t)
	}
	return out
}
