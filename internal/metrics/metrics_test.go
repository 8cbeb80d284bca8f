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

func TestRecordTrial(t *testing.T) {
	m := NewSearchMetrics()
	m.RecordTrial("completed", 2*time.Second, 5, 0.4, 0.4)
	m.RecordTrial("completed", time.Second, 3, 0.6, 0.4)
	m.RecordTrial("failed", time.Second, 0, 0, 0.4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.trialsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.trialsTotal.WithLabelValues("failed")))
	assert.Equal(t, 0.4, testutil.ToFloat64(m.bestObjective))
	assert.Equal(t, 0.6, testutil.ToFloat64(m.lastObjective))
}

func TestFailureGaugeAndAbort(t *testing.T) {
	m := NewSearchMetrics()
	m.SetConsecutiveFailures(3)
	m.RecordAbort()
	m.RecordProposal("random")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.consecutiveFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searchAborted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.proposalsTotal.WithLabelValues("random")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *SearchMetrics
	assert.NotPanics(t, func() {
		m.RecordProposal("bayesian")
		m.RecordTrial("completed", time.Second, 1, 1, 1)
		m.SetConsecutiveFailures(1)
		m.RecordAbort()
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewSearchMetrics()
	m.RecordTrial("completed", time.Second, 4, 0.3, 0.3)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "phenotune_trials_total")
	assert.Contains(t, string(body), "phenotune_best_objective 0.3")
}
