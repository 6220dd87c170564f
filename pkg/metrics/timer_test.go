package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	require.NotNil(t, timer)

	time.Sleep(20 * time.Millisecond)
	first := timer.Duration()
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	second := timer.Duration()
	assert.Greater(t, second, first, "Duration reads the same start point every call")
}

func TestTimerObserve(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_operation_duration_seconds",
		Help:    "test histogram",
		Buckets: prometheus.DefBuckets,
	})
	histogramVec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "test_operation_duration_by_op_seconds",
		Help:    "test histogram vec",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDuration(histogram)
	timer.ObserveDurationVec(histogramVec, "createStore")

	assert.Greater(t, timer.Duration(), time.Duration(0))
}

func TestIndependentTimers(t *testing.T) {
	older := NewTimer()
	time.Sleep(20 * time.Millisecond)
	newer := NewTimer()
	time.Sleep(5 * time.Millisecond)

	assert.Greater(t, older.Duration(), newer.Duration())
}
