package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := NewSearchMetrics(prometheus.NewRegistry())

	m.Observe(ModeFull, OutcomeOK, 3, 5*time.Millisecond)
	m.Observe(ModeFull, OutcomeInvalidRole, 0, time.Millisecond)
	m.Observe(ModeNameOnly, OutcomeOK, 0, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues(ModeFull, OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues(ModeFull, OutcomeInvalidRole)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues(ModeNameOnly, OutcomeOK)))

	var pb dto.Metric
	require.NoError(t, m.Results.Write(&pb))
	assert.Equal(t, uint64(2), pb.GetHistogram().GetSampleCount(), "only successful searches record results")
	assert.Equal(t, 3.0, pb.GetHistogram().GetSampleSum())
}

func TestObserve_NilIsNoop(t *testing.T) {
	var m *SearchMetrics
	assert.NotPanics(t, func() { m.Observe(ModeFull, OutcomeOK, 1, time.Millisecond) })
}
