package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/agusx1211/usagebar/internal/debug"
	"github.com/agusx1211/usagebar/internal/usage"
)

const zaiBaseURL = "https://api.z.ai"

const zaiTimeLayout = "2006-01-02 15:04:05"

// ZaiProvider reads the Z.ai coding-plan quota and, when available, the last
// day's model and tool usage totals.
type ZaiProvider struct {
	base
}

func NewZaiProvider(opts ...Option) *ZaiProvider {
	return &ZaiProvider{base: newBase(usage.ProviderZai, zaiBaseURL, opts)}
}

func (p *ZaiProvider) FetchUsage(ctx context.Context, auth *usage.Auth) (*usage.Snapshot, error) {
	if auth == nil || strings.TrimSpace(auth.Key) == "" {
		return nil, p.failf("no API key")
	}

	header := http.Header{}
	header.Set("Authorization", auth.Key)
	header.Set("Accept-Language", "en-US,en")
	header.Set("Content-Type", "application/json")

	monitor := p.baseURL + "/api/monitor/usage"
	query := p.window()

	var quotaBody, modelBody, toolBody []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := p.getRaw(gctx, monitor+"/quota/limit", header)
		if err != nil {
			return fmt.Errorf("quota query failed: %w", err)
		}
		quotaBody = body
		return nil
	})
	// The usage summaries are optional; their failures never fail the fetch.
	g.Go(func() error {
		body, err := p.getRaw(gctx, monitor+"/model-usage?"+query, header)
		if err != nil {
			debug.LogKV("zai", "model usage unavailable", "error", err)
			return nil
		}
		modelBody = body
		return nil
	})
	g.Go(func() error {
		body, err := p.getRaw(gctx, monitor+"/tool-usage?"+query, header)
		if err != nil {
			debug.LogKV("zai", "tool usage unavailable", "error", err)
			return nil
		}
		toolBody = body
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, p.fail(err)
	}

	quota, err := parseZaiQuota(quotaBody)
	if err != nil {
		return nil, p.fail(err)
	}
	applyZaiModelUsage(quota, modelBody)
	applyZaiToolUsage(quota, toolBody)

	now := p.now()
	snap := &usage.Snapshot{
		Timestamp: now,
		Provider:  usage.ProviderZai,
		Zai:       quota,
		UpdatedAt: now,
	}
	for _, l := range quota.Limits {
		w := &usage.RateLimitWindow{UsedPercent: l.UsedPercent, ResetsAt: l.NextResetTime}
		switch l.Type {
		case "TOKENS_LIMIT":
			snap.Primary = w
		case "TIME_LIMIT":
			snap.Secondary = w
		}
	}
	return snap, nil
}

// window returns the query for the last full day, aligned to the hour in
// local time.
func (p *ZaiProvider) window() string {
	now := p.now().Local()
	start := time.Date(now.Year(), now.Month(), now.Day()-1, now.Hour(), 0, 0, 0, now.Location())
	end := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 59, 59, 999_000_000, now.Location())
	v := url.Values{}
	v.Set("startTime", start.Format(zaiTimeLayout))
	v.Set("endTime", end.Format(zaiTimeLayout))
	return v.Encode()
}

func parseZaiQuota(body []byte) (*usage.ZaiQuota, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("quota response is not JSON")
	}
	doc := gjson.ParseBytes(body)
	if code := doc.Get("code"); code.Exists() && code.Int() != 200 && code.Int() != 0 {
		return nil, fmt.Errorf("quota query failed: code %d: %s", code.Int(), doc.Get("msg").String())
	}
	limits := doc.Get("data.limits")
	if !limits.IsArray() {
		return nil, fmt.Errorf("quota response has no limits")
	}

	q := &usage.ZaiQuota{}
	limits.ForEach(func(_, l gjson.Result) bool {
		q.Limits = append(q.Limits, usage.ZaiLimit{
			Type:          l.Get("type").String(),
			UsedPercent:   l.Get("percentage").Float(),
			Current:       l.Get("currentValue").Int(),
			Total:         l.Get("usage").Int(),
			Remaining:     l.Get("remaining").Int(),
			NextResetTime: unixMilliPtr(l.Get("nextResetTime").Int()),
		})
		return true
	})
	return q, nil
}

func applyZaiModelUsage(q *usage.ZaiQuota, body []byte) {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return
	}
	total := gjson.GetBytes(body, "data.totalUsage")
	if !total.Exists() {
		return
	}
	q.HasModelSummary = true
	q.ModelCalls = total.Get("totalModelCallCount").Int()
	q.TokensUsed = total.Get("totalTokensUsage").Int()
}

func applyZaiToolUsage(q *usage.ZaiQuota, body []byte) {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return
	}
	total := gjson.GetBytes(body, "data.totalUsage")
	if !total.Exists() {
		return
	}
	q.HasToolSummary = true
	q.SearchCalls = total.Get("totalNetworkSearchCount").Int()
	q.WebReadCalls = total.Get("totalWebReadMcpCount").Int()
}
