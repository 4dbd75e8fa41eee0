package main

import (
	"NDT7Spectra/internal/metrics"
	"NDT7Spectra/internal/query"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = "../../test/data/ndt7/session_ok.json"

// fakeQuerier serves canned answers for the dataset endpoints.
type fakeQuerier struct {
	stats map[string]*query.DatasetStats
}

func (f *fakeQuerier) ListDatasets(ctx context.Context) ([]query.DatasetStats, error) {
	var out []query.DatasetStats
	for _, s := range f.stats {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeQuerier) DatasetStats(ctx context.Context, dataset string) (*query.DatasetStats, error) {
	s, ok := f.stats[dataset]
	if !ok {
		return nil, fmt.Errorf("%w: dataset '%s'", query.ErrNotFound, dataset)
	}
	return s, nil
}

func (f *fakeQuerier) ListRuns(ctx context.Context, dataset string) ([]query.RunSummary, error) {
	return []query.RunSummary{{RunID: "r1", Rows: 2}}, nil
}

func (f *fakeQuerier) TraceSession(ctx context.Context, dataset, uuid string) ([]query.SessionRow, error) {
	return nil, fmt.Errorf("%w: session '%s'", query.ErrNotFound, uuid)
}

func newTestServer(t *testing.T, q query.Querier) *httptest.Server {
	t.Helper()
	h := &APIHandler{querier: q, metrics: metrics.New(), defaultThreshold: 2}
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv
}

func readFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(fixture)
	require.NoError(t, err)
	return data
}

func TestExtractHandler(t *testing.T) {
	srv := newTestServer(t, nil)

	// 1. Engineered mode with the default threshold of 2 seconds.
	resp, err := http.Post(srv.URL+"/api/v1/features/engineered", "application/json", bytes.NewReader(readFixture(t)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Dataset string                   `json:"dataset"`
		UUID    string                   `json:"uuid"`
		Columns []string                 `json:"columns"`
		Rows    []map[string]interface{} `json:"rows"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "combined_sec2_data", body.Dataset)
	assert.Equal(t, "ndt-7x2kd_1735689000_000000000001A2B3", body.UUID)
	require.Len(t, body.Rows, 2)
	assert.Nil(t, body.Rows[0]["RateOfChangePacingRate"])
	assert.Equal(t, 500000.0, body.Rows[1]["RateOfChangePacingRate"])
	assert.Equal(t, 600000.0, body.Rows[0]["AverageBandwidth"])
}

func TestExtractHandler_Gzip(t *testing.T) {
	srv := newTestServer(t, nil)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(readFixture(t))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	req, err := http.NewRequest("POST", srv.URL+"/api/v1/features/summary", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Encoding", "gzip")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExtractHandler_Errors(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"unknown mode", "/api/v1/features/nope", `{}`, http.StatusNotFound},
		{"bad threshold", "/api/v1/features/engineered?threshold=-1", `{}`, http.StatusBadRequest},
		{"malformed json", "/api/v1/features/summary", `{"Download":`, http.StatusBadRequest},
		{"missing download", "/api/v1/features/summary", `{"Upload":{}}`, http.StatusBadRequest},
		{"empty session", "/api/v1/features/engineered?threshold=0.5", `{"Download":{"ServerMeasurements":[{"TCPInfo":{"ElapsedTime":900000}}]}}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+tt.path, "application/json", bytes.NewBufferString(tt.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestDatasetHandlers(t *testing.T) {
	q := &fakeQuerier{stats: map[string]*query.DatasetStats{
		"ndt7_features": {Dataset: "ndt7_features", Mode: "summary", Runs: 1, Rows: 10, Sessions: 10},
	}}
	srv := newTestServer(t, q)

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/datasets", http.StatusOK},
		{"/api/v1/datasets/ndt7_features", http.StatusOK},
		{"/api/v1/datasets/unknown", http.StatusNotFound},
		{"/api/v1/datasets/ndt7_features/runs", http.StatusOK},
		{"/api/v1/datasets/ndt7_features/sessions/abc", http.StatusNotFound},
		{"/health", http.StatusOK},
		{"/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + tt.path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tt.want, resp.StatusCode, tt.path)
	}
}

func TestDatasetHandlers_NoQuerier(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/v1/datasets/ndt7_features")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
