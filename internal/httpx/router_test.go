package httpx

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/adpulse/internal/config"
	"github.com/AngelCh415/adpulse/internal/ingest"
	"github.com/AngelCh415/adpulse/internal/metrics"
	"github.com/AngelCh415/adpulse/internal/store"
	"github.com/AngelCh415/adpulse/internal/telemetry"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	tel := telemetry.New(reg)
	cfg := config.Default()
	st := store.NewMemoryStore()
	etl := ingest.NewETL(ingest.NewHTTPClient(time.Second), st, log, cfg, tel)
	mSvc := metrics.NewService(st, cfg.Thresholds, cfg.CampaignFilter(), log, tel)

	srv := httptest.NewServer(NewRouter(log, etl, mSvc, st, tel, reg))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

const rowsBody = `[
	{"DATE": "2024-03-01", "CAMPAIGN ORDER NAME": "Spring Sale", "IMPRESSIONS": "1,000", "CLICKS": 10, "REVENUE": 40, "SPEND": 8},
	{"DATE": "2024-03-02", "CAMPAIGN ORDER NAME": "Spring Sale", "IMPRESSIONS": 3000, "CLICKS": 20},
	{"DATE": "Totals", "IMPRESSIONS": 4000}
]`

func TestHealth(t *testing.T) {
	srv := newServer(t)
	resp, body := do(t, http.MethodGet, srv.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, _ = do(t, http.MethodGet, srv.URL+"/readyz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPushRowsThenQuery(t *testing.T) {
	srv := newServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/rows", rowsBody)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var rep ingest.Report
	require.NoError(t, json.Unmarshal([]byte(body), &rep))
	assert.Equal(t, 2, rep.Accepted)
	assert.Len(t, rep.Skipped, 1)

	resp, body = do(t, http.MethodGet, srv.URL+"/metrics/summary", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sum metrics.SummaryResult
	require.NoError(t, json.Unmarshal([]byte(body), &sum))
	assert.Equal(t, int64(4000), sum.Total.Sums.Impressions)
	assert.Equal(t, 5.0, sum.Total.ROAS)

	resp, body = do(t, http.MethodGet, srv.URL+"/metrics/daily?fill_gaps=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var daily []map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &daily))
	assert.Len(t, daily, 2)

	resp, body = do(t, http.MethodGet, srv.URL+"/metrics/weekday", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var weekday []map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &weekday))
	assert.Len(t, weekday, 7)

	resp, body = do(t, http.MethodGet, srv.URL+"/metrics/periods", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, body)

	resp, body = do(t, http.MethodGet, srv.URL+"/metrics/anomalies?mode=weekly", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, body)

	resp, body = do(t, http.MethodGet, srv.URL+"/metrics/pacing", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pacing []map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &pacing))
	require.Len(t, pacing, 1)
	assert.Equal(t, true, pacing[0]["synthesized"])
}

func TestQueryErrors(t *testing.T) {
	srv := newServer(t)
	cases := []struct {
		path string
		code int
	}{
		{"/metrics/windows?period=5", http.StatusBadRequest},
		{"/metrics/compare", http.StatusBadRequest},
		{"/metrics/anomalies?mode=hourly", http.StatusBadRequest},
		{"/metrics/daily?from=2024-03-10&to=2024-03-01", http.StatusBadRequest},
		{"/metrics/summary?from=2024-13-45", http.StatusBadRequest},
		{"/metrics/pacing?campaign=nobody", http.StatusNotFound},
		{"/metrics/windows?period=7", http.StatusOK},
	}
	for _, c := range cases {
		resp, body := do(t, http.MethodGet, srv.URL+c.path, "")
		assert.Equal(t, c.code, resp.StatusCode, "%s: %s", c.path, body)
	}
}

func TestPushRowsRejectsBadBodies(t *testing.T) {
	srv := newServer(t)
	resp, _ := do(t, http.MethodPost, srv.URL+"/rows", `[]`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, srv.URL+"/rows", `{"not": "an array"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpsertContract(t *testing.T) {
	srv := newServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/contracts",
		`{"campaign_name": "Spring Sale", "start_date": "3/1/2024", "end_date": "2024-03-31", "impressions_goal": 31000}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Contains(t, body, `"start_date":"2024-03-01T00:00:00Z"`)

	resp, body = do(t, http.MethodGet, srv.URL+"/metrics/pacing?campaign=Spring%20Sale", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, `"impression_goal":31000`)

	bad := []string{
		`{"campaign_name": "X", "start_date": "2024-03-10", "end_date": "2024-03-01"}`,
		`{"start_date": "2024-03-01", "end_date": "2024-03-31"}`,
		`{"campaign_name": "X", "start_date": "2024-13-45", "end_date": "2024-03-31"}`,
		`{"campaign_name": "X", "start_date": "2024-03-01", "end_date": "2024-03-31", "budget": -1}`,
		`not json`,
	}
	for _, b := range bad {
		resp, _ := do(t, http.MethodPost, srv.URL+"/contracts", b)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, b)
	}
}

func TestExportWithoutSink(t *testing.T) {
	srv := newServer(t)
	resp, _ := do(t, http.MethodPost, srv.URL+"/export/run", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, srv.URL+"/export/run?date=2024-03-01", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestIngestRunWithoutSource(t *testing.T) {
	srv := newServer(t)
	resp, _ := do(t, http.MethodPost, srv.URL+"/ingest/run?since=2024-13-45", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, srv.URL+"/ingest/run", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestPrometheusEndpoint(t *testing.T) {
	srv := newServer(t)
	do(t, http.MethodPost, srv.URL+"/rows", rowsBody)

	resp, body := do(t, http.MethodGet, srv.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "adpulse_rows_ingested_total 2")
	assert.Contains(t, body, `adpulse_rows_skipped_total{reason="totals_row"} 1`)
	assert.Contains(t, body, `route="/rows"`)
}
