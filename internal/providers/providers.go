// Package providers implements the per-vendor usage handlers and the default
// provider table wired into the aggregation engine.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agusx1211/usagebar/internal/config"
	"github.com/agusx1211/usagebar/internal/credentials"
	"github.com/agusx1211/usagebar/internal/debug"
	"github.com/agusx1211/usagebar/internal/usage"
)

// DefaultRequestTimeout bounds a single upstream HTTP call.
const DefaultRequestTimeout = 3 * time.Second

const maxErrorBody = 512

// base carries what every handler needs to talk HTTP.
type base struct {
	id         usage.ProviderID
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	now        func() time.Time
	locator    credentials.Locator
}

func newBase(id usage.ProviderID, baseURL string, opts []Option) base {
	b := base{
		id:         id,
		httpClient: http.DefaultClient,
		baseURL:    baseURL,
		timeout:    DefaultRequestTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.baseURL = strings.TrimRight(b.baseURL, "/")
	return b
}

// Option configures a provider handler.
type Option func(*base)

// WithHTTPClient replaces the HTTP client used for upstream calls.
func WithHTTPClient(c *http.Client) Option {
	return func(b *base) {
		if c != nil {
			b.httpClient = c
		}
	}
}

// WithBaseURL points the handler at a different API root.
func WithBaseURL(u string) Option {
	return func(b *base) {
		if u != "" {
			b.baseURL = u
		}
	}
}

// WithRequestTimeout sets the per-request timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(b *base) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLocator overrides where ambient credential files are read from.
func WithLocator(l credentials.Locator) Option {
	return func(b *base) { b.locator = l }
}

func (b *base) fail(err error) error {
	return &usage.ProviderError{Provider: b.id, Err: err}
}

func (b *base) failf(format string, args ...any) error {
	return b.fail(fmt.Errorf(format, args...))
}

func (b *base) transport() http.RoundTripper {
	if b.httpClient != nil && b.httpClient.Transport != nil {
		return b.httpClient.Transport
	}
	return http.DefaultTransport
}

func (b *base) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// getRaw issues a GET under the per-request timeout and returns the body of a
// 2xx response.
func (b *base) getRaw(ctx context.Context, url string, header http.Header) ([]byte, error) {
	ctx, cancel := b.requestContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	start := b.now()
	resp, err := b.httpClient.Do(req)
	if err != nil {
		debug.LogKV("providers", "request failed", "provider", b.id, "url", url, "error", err)
		return nil, err
	}
	defer resp.Body.Close()
	debug.LogKV("providers", "response", "provider", b.id, "url", url, "status", resp.StatusCode, "elapsed", b.now().Sub(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: msg}
	}
	return body, nil
}

func (b *base) getJSON(ctx context.Context, url string, header http.Header, out any) error {
	body, err := b.getRaw(ctx, url, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0)
	return &t
}

func unixMilliPtr(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms)
	return &t
}

func parseTimePtr(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// Default builds the production provider table from the user config.
func Default(cfg *config.Config, opts ...Option) *usage.Registry {
	if cfg == nil {
		cfg = config.Default()
	}
	return usage.NewRegistry(
		usage.Descriptor{
			ID:            usage.ProviderCodex,
			AuthKeys:      []string{"codex", "openai"},
			RequiresOAuth: true,
			Handler:       NewCodexProvider(opts...),
		},
		usage.Descriptor{
			ID:      usage.ProviderProxy,
			Ambient: true,
			Handler: NewProxyProvider(cfg.Endpoint, cfg.APIKey, join(opts, WithRequestTimeout(cfg.ProxyTimeout()))...),
		},
		usage.Descriptor{
			ID:            usage.ProviderCopilot,
			AuthKeys:      []string{"copilot", "github-copilot"},
			RequiresOAuth: true,
			Ambient:       true,
			Handler:       NewCopilotProvider(opts...),
		},
		usage.Descriptor{
			ID:       usage.ProviderZai,
			AuthKeys: []string{"zai-coding-plan", "zai", "glm"},
			Handler:  NewZaiProvider(join([]Option{WithBaseURL(cfg.ZaiBaseURL())}, opts...)...),
		},
		usage.Descriptor{
			ID:            usage.ProviderAnthropic,
			AuthKeys:      []string{"anthropic", "claude"},
			RequiresOAuth: true,
			Ambient:       true,
			Handler:       NewAnthropicProvider(opts...),
		},
		usage.Descriptor{
			ID:       usage.ProviderOpenRouter,
			AuthKeys: []string{"openrouter", "or"},
			MultiKey: true,
			Handler:  NewOpenRouterProvider(opts...),
		},
	)
}

// join concatenates option lists; later options win.
func join(first []Option, rest ...Option) []Option {
	out := make([]Option, 0, len(first)+len(rest))
	out = append(out, first...)
	return append(out, rest...)
}
