package prom

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_RegistersDispatchMetrics(t *testing.T) {
	require.NoError(t, Create("test-host", "test", "campaign"))
	t.Cleanup(func() { MetricSystemEnabled = false })

	IncSend("America/Guatemala", "sent")
	IncSend("America/Guatemala", "sent")
	IncSend("America/Guatemala", "not_sent")
	IncActivation("America/Panama")
	AddDrainInFlight("America/Panama", 1)
	AddDrainInFlight("America/Panama", -1)
	IncEventDropped()

	sends := MetricCollectionCounterVec[SystemDispatch+MetricSendsTotal]
	assert.Equal(t, 2.0, testutil.ToFloat64(sends.WithLabelValues("America/Guatemala", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sends.WithLabelValues("America/Guatemala", "not_sent")))

	activations := MetricCollectionCounterVec[SystemDispatch+MetricActivationsTotal]
	assert.Equal(t, 1.0, testutil.ToFloat64(activations.WithLabelValues("America/Panama")))

	inflight := MetricCollectionGaugeVec[SystemDispatch+MetricDrainsInFlight]
	assert.Equal(t, 0.0, testutil.ToFloat64(inflight.WithLabelValues("America/Panama")))

	assert.Equal(t, 1.0, testutil.ToFloat64(MetricCollectionCounters[SystemEvents+MetricEventsDroppedTotal]))
}

func TestCreateMetric_UnknownType(t *testing.T) {
	err := CreateMetric("summary", SystemDispatch, "unused")
	assert.Error(t, err)
}

func TestDisabledMetricsAreNoop(t *testing.T) {
	MetricSystemEnabled = false
	assert.NotPanics(t, func() {
		IncSend("zone", "sent")
		IncCounter("missing", "missing")
	})
}
