package providers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agusx1211/usagebar/internal/usage"
)

const proxyStats = `{
	"providers": {
		"antigravity": {
			"credentials": [
				{"tier": "paid-tier", "model_groups": {
					"claude": {"requests_remaining": 30, "requests_max": 40},
					"g3-pro": {"requests_remaining": 5, "requests_max": 10},
					"mystery": {"requests_remaining": 1, "requests_max": 1}
				}},
				{"tier": "standard", "model_groups": {
					"claude": {"requests_remaining": 10, "requests_max": 40},
					"3-flash": {"requests_remaining": 2, "requests_max": 3}
				}},
				{"tier": "free-tier", "model_groups": {
					"g3-flash": {"requests_remaining": 0, "requests_max": 20}
				}}
			]
		}
	},
	"summary": {"total_credentials": 9, "active_credentials": 9},
	"global_summary": {"total_credentials": 3, "active_credentials": 2},
	"data_source": "cache",
	"timestamp": 1773500000.5
}`

func TestProxyFetchUsage(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/quota-stats", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(proxyStats))
	})

	p := NewProxyProvider(srv.URL, "secret", WithHTTPClient(srv.Client()))
	snap, err := p.FetchUsage(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, snap.Proxy)

	q := snap.Proxy
	assert.Equal(t, 3, q.TotalCredentials)
	assert.Equal(t, 2, q.ActiveCredentials)
	assert.Equal(t, "cache", q.DataSource)
	assert.Equal(t, int64(1773500000), snap.Timestamp.Unix())

	require.Len(t, q.Providers, 1)
	tiers := q.Providers[0].Tiers
	require.Len(t, tiers, 2)

	assert.Equal(t, "paid", tiers[0].Tier)
	assert.Equal(t, []usage.ProxyQuotaGroup{
		{Name: "claude", Remaining: 40, Max: 80, RemainingPct: 50},
		{Name: "g3-pro", Remaining: 5, Max: 10, RemainingPct: 50},
		{Name: "g3-fla", Remaining: 2, Max: 3, RemainingPct: 67},
	}, tiers[0].Groups)

	assert.Equal(t, "free", tiers[1].Tier)
	assert.Equal(t, []usage.ProxyQuotaGroup{
		{Name: "g3-fla", Remaining: 0, Max: 20, RemainingPct: 0},
	}, tiers[1].Groups)
}

func TestProxyEndpointWithVersionAndNoKey(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/quota-stats", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"providers": {}}`))
	})

	snap, err := NewProxyProvider(srv.URL+"/v1/", "", WithHTTPClient(srv.Client())).FetchUsage(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, snap.HasData())
	assert.Empty(t, snap.Proxy.Providers)
}

func TestProxyWithoutEndpoint(t *testing.T) {
	_, err := NewProxyProvider("", "").FetchUsage(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no proxy endpoint configured")
}
