// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sitetrack"

// Inventory records material consumption outcomes.
type Inventory struct {
	consumptions *prometheus.CounterVec
	quantity     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	batches      prometheus.Histogram
}

// NewInventory registers the inventory metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewInventory(reg prometheus.Registerer) *Inventory {
	if reg == nil {
		return &Inventory{}
	}
	consumptions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "material_consumptions_total",
		Help:      "FIFO consumption attempts by outcome.",
	}, []string{"outcome"})
	quantity := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "material_consumed_quantity_total",
		Help:      "Quantity withdrawn from batches, per material code.",
	}, []string{"code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "material_consumption_duration_seconds",
		Help:      "Duration of consumption transactions.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
	batches := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "material_consumption_batches",
		Help:      "Batches touched per successful consumption.",
		Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
	})
	reg.MustRegister(consumptions, quantity, duration, batches)
	return &Inventory{
		consumptions: consumptions,
		quantity:     quantity,
		duration:     duration,
		batches:      batches,
	}
}

// ObserveConsumption records one consumption attempt. Quantity and batch
// counts are only recorded for successful ones.
func (m *Inventory) ObserveConsumption(code, outcome string, quantity float64, batches int, elapsed time.Duration) {
	if m == nil || m.consumptions == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.consumptions.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if outcome != "ok" {
		return
	}
	m.quantity.WithLabelValues(normalizeLabel(code)).Add(quantity)
	m.batches.Observe(float64(batches))
}

// HTTP records request counts and latencies.
type HTTP struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTP registers the HTTP metrics on the provided registerer.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	if reg == nil {
		return &HTTP{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	reg.MustRegister(requests, duration)
	return &HTTP{requests: requests, duration: duration}
}

// ObserveRequest records one served request. route is the matched pattern,
// not the raw path.
func (m *HTTP) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	route = normalizeLabel(route)
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Jobs records background job executions.
type Jobs struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	items    *prometheus.CounterVec
}

// NewJobs registers the worker metrics on the provided registerer.
func NewJobs(reg prometheus.Registerer) *Jobs {
	if reg == nil {
		return &Jobs{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Duration of background jobs in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_runs_total",
		Help:      "Background job runs by result.",
	}, []string{"job", "result"})
	items := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_items_total",
		Help:      "Items processed by background jobs.",
	}, []string{"job"})
	reg.MustRegister(duration, runs, items)
	return &Jobs{duration: duration, runs: runs, items: items}
}

// ObserveRun records a job execution and the number of items it handled.
func (m *Jobs) ObserveRun(job string, items int64, elapsed time.Duration, err error) {
	if m == nil || m.runs == nil {
		return
	}
	job = normalizeLabel(job)
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.duration.WithLabelValues(job).Observe(elapsed.Seconds())
	m.runs.WithLabelValues(job, result).Inc()
	if items > 0 {
		m.items.WithLabelValues(job).Add(float64(items))
	}
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
