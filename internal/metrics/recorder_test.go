package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorder_Safe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveJobDuration("linux-amd64", time.Second)
	r.IncJobResult("linux-amd64", "succeeded")
	r.IncRunOutcome("failed")
	r.IncCacheEvent(true)
}

func TestPrometheusRecorder_Registers(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.ObserveJobDuration("linux-amd64", 2*time.Second)
	r.IncJobResult("linux-amd64", "succeeded")
	r.IncJobResult("linux-amd64", "failed")
	r.ObserveRunDuration(5 * time.Second)
	r.IncRunOutcome("failed")
	r.IncRejection("conflicting_toggles")
	r.SetActiveWorkers(3)
	r.ObservePublishDuration(time.Second, true)
	r.IncCacheEvent(true)
	r.IncCacheEvent(false)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["buildmatrix_job_results_total"])
	assert.True(t, names["buildmatrix_layer_cache_events_total"])
	assert.True(t, names["buildmatrix_active_workers"])
}

func TestPrometheusRecorder_NilReceiverSafe(t *testing.T) {
	var r *PrometheusRecorder
	r.IncJobResult("x", "succeeded")
	r.SetActiveWorkers(1)
}
