package datasources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

func TestLokiQueryRange(t *testing.T) {
	var gotPath, gotQuery, gotStart, gotTenant, gotLimit string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("query")
		gotStart = r.URL.Query().Get("start")
		gotLimit = r.URL.Query().Get("limit")
		gotTenant = r.Header.Get("X-Scope-OrgID")
		w.Write([]byte(`{"status":"success","data":{"result":[{"stream":{"service_name":"api"},"values":[["1700000000000000000","error: boom"]]}]}}`))
	}))
	defer server.Close()

	c := NewLokiConnector(server.URL, "t1", 5*time.Second, logger.NewNop())
	resp, err := c.QueryRange(context.Background(), `{service_name=~".+"}`, 1700000000000000000, 1700000600000000000, 5000)
	require.NoError(t, err)

	assert.Equal(t, "/loki/api/v1/query_range", gotPath)
	assert.Equal(t, `{service_name=~".+"}`, gotQuery)
	assert.Equal(t, "1700000000000000000", gotStart)
	assert.Equal(t, "5000", gotLimit)
	assert.Equal(t, "t1", gotTenant)
	require.Len(t, resp.Data.Result, 1)
	assert.Equal(t, "error: boom", resp.Data.Result[0].Values[0][1])
}

func TestMimirQueryRangeAndScrape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/prometheus/api/v1/query_range":
			assert.Equal(t, "15s", r.URL.Query().Get("step"))
			w.Write([]byte(`{"status":"success","data":{"result":[{"metric":{"__name__":"up"},"values":[[1700000000,"1"]]}]}}`))
		case "/metrics":
			w.Write([]byte("up 1\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := NewMimirConnector(server.URL, "t1", 5*time.Second, logger.NewNop())
	resp, err := c.QueryRange(context.Background(), "up", 1700000000, 1700000600, "15s")
	require.NoError(t, err)
	require.Len(t, resp.Data.Result, 1)
	v, err := resp.Data.Result[0].Values[0].Float()
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	text, err := c.Scrape(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "up 1")
}

func TestVictoriaMetricsQueryRange(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"status":"success","data":{"result":[]}}`))
	}))
	defer server.Close()

	c := NewVictoriaMetricsConnector(server.URL, "t1", 5*time.Second, logger.NewNop())
	_, err := c.QueryRange(context.Background(), "up", 1700000000, 1700000600, "15s")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/query_range", gotPath)
}

func TestTempoQueryRangeFilters(t *testing.T) {
	var gotService, gotLimit string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/search", r.URL.Path)
		gotService = r.URL.Query().Get("service.name")
		gotLimit = r.URL.Query().Get("limit")
		w.Write([]byte(`{"traces":[{"rootServiceName":"api","durationMs":120}]}`))
	}))
	defer server.Close()

	c := NewTempoConnector(server.URL, "t1", 5*time.Second, logger.NewNop())
	resp, err := c.QueryRange(context.Background(), map[string]string{"service.name": "api"}, 1700000000, 1700000600, 100)
	require.NoError(t, err)

	assert.Equal(t, "api", gotService)
	assert.Equal(t, "100", gotLimit)
	require.Len(t, resp.Traces, 1)
	assert.Equal(t, "api", resp.Traces[0].RootServiceName)
}

func TestClientRetriesTransportErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			panic(http.ErrAbortHandler)
		}
		w.Write([]byte(`{"status":"success","data":{"result":[]}}`))
	}))
	defer server.Close()

	c := NewVictoriaMetricsConnector(server.URL, "t1", 5*time.Second, logger.NewNop())
	_, err := c.QueryRange(context.Background(), "up", 0, 600, "15s")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientDoesNotRetryHTTPErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "parse error", http.StatusBadRequest)
	}))
	defer server.Close()

	c := NewVictoriaMetricsConnector(server.URL, "t1", 5*time.Second, logger.NewNop())
	_, err := c.QueryRange(context.Background(), "up{", 0, 600, "15s")
	require.ErrorIs(t, err, ErrInvalidQuery)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFactorySelectsBackends(t *testing.T) {
	cfg := config.DatasourcesConfig{
		LogsBackend:      "loki",
		LokiURL:          "http://loki:3100",
		MetricsBackend:   "mimir",
		MimirURL:         "http://mimir:9009",
		TracesBackend:    "tempo",
		TempoURL:         "http://tempo:3200",
		ConnectorTimeout: 30,
	}

	p, err := NewProvider(cfg, "t1", logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "t1", p.TenantID())
	assert.True(t, p.CanScrape(), "mimir supports exposition scraping")

	cfg.MetricsBackend = "victoriametrics"
	cfg.VictoriaURL = "http://vm:8428"
	p, err = NewProvider(cfg, "t1", logger.NewNop())
	require.NoError(t, err)
	assert.False(t, p.CanScrape())

	cfg.LogsBackend = "elasticsearch"
	_, err = NewProvider(cfg, "t1", logger.NewNop())
	require.Error(t, err)
}
