package webserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/agusx1211/usagebar/internal/render"
	"github.com/agusx1211/usagebar/internal/usage"
)

type fakeSource struct {
	mu      sync.Mutex
	filters []usage.Filter
}

func (f *fakeSource) fetch(ctx context.Context, filter usage.Filter) usage.Report {
	f.mu.Lock()
	f.filters = append(f.filters, filter)
	n := len(f.filters)
	f.mu.Unlock()

	return usage.Report{
		ID:     "pass-" + string(rune('0'+n)),
		Target: filter.Target,
		Snapshots: []usage.Snapshot{
			{
				Provider:   usage.ProviderOpenRouter,
				EntryID:    "openrouter:default",
				Label:      "default",
				Primary:    &usage.RateLimitWindow{UsedPercent: 25},
				OpenRouter: &usage.OpenRouterQuota{Limit: 100, Usage: 25, LimitRemaining: 75},
			},
			usage.NewMissing(usage.ProviderCodex, "codex", "codex", usage.CodexAuthFailedReason, nil, time.Now()),
		},
	}
}

func (f *fakeSource) seen() []usage.Filter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]usage.Filter(nil), f.filters...)
}

func newTestServer(t *testing.T, opts Options) (*Server, *fakeSource) {
	t.Helper()
	src := &fakeSource{}
	return New(src.fetch, opts), src
}

func performRequest(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestUsageEndpoint(t *testing.T) {
	srv, src := newTestServer(t, Options{})

	rec := performRequest(t, srv, http.MethodGet, "/api/usage?provider=OR&key=Work")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if contentType := rec.Header().Get("Content-Type"); !strings.HasPrefix(contentType, "application/json") {
		t.Fatalf("content-type = %q, want application/json", contentType)
	}

	got := decodeResponse[render.ReportView](t, rec)
	if got.Target != "openrouter" || len(got.Snapshots) != 2 || got.Missing != 1 {
		t.Fatalf("report = %+v", got)
	}
	if w := got.Snapshots[0].Windows; len(w) != 1 || w[0].RemainingPct != 75 {
		t.Fatalf("windows = %+v", w)
	}
	if reason := got.Snapshots[1].Reason; reason != usage.CodexAuthFailedReason {
		t.Fatalf("missing reason = %q", reason)
	}

	filters := src.seen()
	if len(filters) != 1 {
		t.Fatalf("fetch calls = %d, want 1", len(filters))
	}
	if filters[0] != (usage.Filter{Target: usage.ProviderOpenRouter, KeyName: "work"}) {
		t.Fatalf("filter = %+v", filters[0])
	}
}

func TestUsageEndpointUnknownProviderMeansNoFilter(t *testing.T) {
	srv, src := newTestServer(t, Options{})

	rec := performRequest(t, srv, http.MethodGet, "/api/usage?provider=nope")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if f := src.seen()[0]; f.Target != "" {
		t.Fatalf("target = %q, want empty", f.Target)
	}
}

func TestUsageTextEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := performRequest(t, srv, http.MethodGet, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	for _, want := range []string{"→ [OPENROUTER] default", "Unavailable: Auth resolution failed"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "\x1b[") {
		t.Fatal("text endpoint must not emit ANSI sequences")
	}
}

func TestUsageEndpointRequiresToken(t *testing.T) {
	srv, src := newTestServer(t, Options{AuthToken: "s3cret"})

	if rec := performRequest(t, srv, http.MethodGet, "/api/usage"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if n := len(src.seen()); n != 0 {
		t.Fatalf("fetch calls = %d, want 0", n)
	}
	if rec := performRequest(t, srv, http.MethodGet, "/api/health"); rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestNilSourceIsUnavailable(t *testing.T) {
	srv := New(nil, Options{})
	if rec := performRequest(t, srv, http.MethodGet, "/api/usage"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestVersionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rec := performRequest(t, srv, http.MethodGet, "/api/version")
	got := decodeResponse[map[string]string](t, rec)
	if got["version"] == "" {
		t.Fatalf("version missing: %v", got)
	}
}

func TestUsageWebSocketPushesReports(t *testing.T) {
	srv, src := newTestServer(t, Options{PushInterval: 10 * time.Millisecond})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/usage?provider=glm"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	for i := 0; i < 2; i++ {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		var env struct {
			Type string            `json:"type"`
			Data render.ReportView `json:"data"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if env.Type != "report" || env.Data.Target != string(usage.ProviderZai) {
			t.Fatalf("envelope %d = %+v", i, env)
		}
	}
	conn.Close(websocket.StatusNormalClosure, "done")

	if n := len(src.seen()); n < 2 {
		t.Fatalf("fetch calls = %d, want >= 2", n)
	}
}

func TestPushIntervalFor(t *testing.T) {
	srv, _ := newTestServer(t, Options{PushInterval: 30 * time.Second})
	tests := []struct {
		query string
		want  time.Duration
	}{
		{"", 30 * time.Second},
		{"?interval=garbage", 30 * time.Second},
		{"?interval=1s", MinPushInterval},
		{"?interval=2m", 2 * time.Minute},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws/usage"+tt.query, nil)
		if got := srv.pushIntervalFor(req); got != tt.want {
			t.Errorf("pushIntervalFor(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestStartAndShutdown(t *testing.T) {
	srv, _ := newTestServer(t, Options{Host: "127.0.0.1", Port: 1})
	srv.port = 0
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if srv.port == 0 {
		t.Fatal("expected bound port to be recorded")
	}
	resp, err := http.Get("http://" + srv.Addr() + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
