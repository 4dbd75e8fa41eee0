package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveFile(t *testing.T) {
	m := New()

	m.ObserveFile("engineered", StatusOK, 3, 10*time.Millisecond)
	m.ObserveFile("engineered", StatusOK, 2, time.Millisecond)
	m.ObserveFile("engineered", StatusParse, 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesTotal.WithLabelValues("engineered", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesTotal.WithLabelValues("engineered", StatusParse)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.RowsTotal.WithLabelValues("engineered")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveFile("summary", StatusEmpty, 0, time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `ndt7spectra_files_total{mode="summary",status="empty"} 1`)
}
