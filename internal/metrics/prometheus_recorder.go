package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	jobDuration     *prom.HistogramVec
	jobResults      *prom.CounterVec
	runDuration     prom.Histogram
	runOutcome      *prom.CounterVec
	rejections      *prom.CounterVec
	activeWorkers   prom.Gauge
	publishDuration *prom.HistogramVec
	cacheEvents     *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.jobDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "buildmatrix",
			Name:      "job_duration_seconds",
			Help:      "Duration of individual build jobs",
			Buckets:   prom.DefBuckets,
		}, []string{"target"})
		pr.jobResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "buildmatrix",
			Name:      "job_results_total",
			Help:      "Job results by terminal status",
		}, []string{"target", "status"})
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "buildmatrix",
			Name:      "run_duration_seconds",
			Help:      "Total matrix run duration",
			Buckets:   prom.DefBuckets,
		})
		pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "buildmatrix",
			Name:      "run_outcomes_total",
			Help:      "Matrix run outcomes by aggregate status",
		}, []string{"outcome"})
		pr.rejections = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "buildmatrix",
			Name:      "rejected_combinations_total",
			Help:      "Combinations rejected at expansion time by reason",
		}, []string{"reason"})
		pr.activeWorkers = prom.NewGauge(prom.GaugeOpts{
			Namespace: "buildmatrix",
			Name:      "active_workers",
			Help:      "Build workers currently executing a job",
		})
		pr.publishDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "buildmatrix",
			Name:      "publish_duration_seconds",
			Help:      "Duration of image publish pipelines",
			Buckets:   prom.DefBuckets,
		}, []string{"result"})
		pr.cacheEvents = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "buildmatrix",
			Name:      "layer_cache_events_total",
			Help:      "Layer cache lookups by hit/miss",
		}, []string{"result"})
		reg.MustRegister(pr.jobDuration, pr.jobResults, pr.runDuration, pr.runOutcome,
			pr.rejections, pr.activeWorkers, pr.publishDuration, pr.cacheEvents)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveJobDuration(target string, d time.Duration) {
	if p == nil || p.jobDuration == nil {
		return
	}
	p.jobDuration.WithLabelValues(target).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncJobResult(target, status string) {
	if p == nil || p.jobResults == nil {
		return
	}
	p.jobResults.WithLabelValues(target, status).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncRejection(reason string) {
	if p == nil || p.rejections == nil {
		return
	}
	p.rejections.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) SetActiveWorkers(n int) {
	if p == nil || p.activeWorkers == nil {
		return
	}
	p.activeWorkers.Set(float64(n))
}

func (p *PrometheusRecorder) ObservePublishDuration(d time.Duration, success bool) {
	if p == nil || p.publishDuration == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.publishDuration.WithLabelValues(res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCacheEvent(hit bool) {
	if p == nil || p.cacheEvents == nil {
		return
	}
	res := "miss"
	if hit {
		res = "hit"
	}
	p.cacheEvents.WithLabelValues(res).Inc()
}

// HTTPHandler returns an http.Handler serving Prometheus metrics for the registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
