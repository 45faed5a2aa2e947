package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiatedCountsByResult(t *testing.T) {
	m := New()
	m.Initiated(false)
	m.Initiated(true)
	m.Initiated(true)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.initiated.WithLabelValues(ResultCreated)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.initiated.WithLabelValues(ResultReplay)))
}

func TestSettledRecordsStatusAndLatency(t *testing.T) {
	m := New()
	m.Settled("SUCCESS", 1500*time.Millisecond)
	m.Settled("FAILED", time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.settled.WithLabelValues("SUCCESS")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.settled.WithLabelValues("FAILED")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.settlementLatency))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Initiated(true)
		m.Settled("SUCCESS", time.Second)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Initiated(false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `payflow_payments_initiated_total{result="created"} 1`)
}
