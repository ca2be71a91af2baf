package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.MemoLookup(true)
		m.Task("done")
		m.Batch(time.Millisecond, true)
		m.Remote("shared")
		m.InFlight(2)
		m.Row("computed")
		m.ResolveFailures(3)
	})
}

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.MemoLookup(true)
	m.MemoLookup(false)
	m.MemoLookup(false)
	m.Batch(10*time.Millisecond, true)
	m.InFlight(4)
	m.ResolveFailures(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.memoLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.memoLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.coalescerTimeout))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.remoteInFlight))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.resolveFailures))

	expected := `
# HELP cellgrid_coalescer_batches_total Batches drained by the coalescer
# TYPE cellgrid_coalescer_batches_total counter
cellgrid_coalescer_batches_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "cellgrid_coalescer_batches_total"))
}
