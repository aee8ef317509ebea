package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDownload(t *testing.T) {
	before := testutil.ToFloat64(downloadsTotal.WithLabelValues("downloaded"))
	beforeBytes := testutil.ToFloat64(downloadBytesTotal)

	RecordDownload("downloaded", 128)
	RecordDownload("skipped", 0)

	assert.Equal(t, before+1, testutil.ToFloat64(downloadsTotal.WithLabelValues("downloaded")))
	assert.Equal(t, beforeBytes+128, testutil.ToFloat64(downloadBytesTotal))
}

func TestRouter(t *testing.T) {
	RecordSearch(OutcomeOK)
	srv := httptest.NewServer(NewRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "dscraper_search_requests_total")
}
