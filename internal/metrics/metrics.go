// Package metrics exposes Prometheus instrumentation for the HTTP surface,
// the remote joke providers and the combined endpoint.
package metrics

import (
	stdhttp "net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chistes/app/internal/providers"
)

const namespace = "chistes"

// Registry owns every collector exposed on /metrics. It uses a private
// prometheus.Registry so tests can build as many instances as they need.
type Registry struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	providerCalls     *prometheus.CounterVec
	providerDuration  *prometheus.HistogramVec
	combinedFallbacks *prometheus.CounterVec
}

var _ providers.Observer = (*Registry)(nil)

// New builds a Registry with Go runtime and process collectors attached.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Calls made to remote joke providers, by outcome.",
		}, []string{"provider", "outcome"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Latency of remote joke provider calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		combinedFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "combined",
			Name:      "fallback_slots_total",
			Help:      "Combined joke slots that could not use a provider result.",
		}, []string{"provider"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.httpRequests,
		r.httpDuration,
		r.providerCalls,
		r.providerDuration,
		r.combinedFallbacks,
	)

	return r
}

// ObserveProviderCall records one provider call.
func (r *Registry) ObserveProviderCall(provider, outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.providerCalls.WithLabelValues(provider, outcome).Inc()
	r.providerDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveRequest records one served HTTP request.
func (r *Registry) ObserveRequest(method, route string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveCombinedFallbacks adds the number of failed slots per provider for
// one combined response.
func (r *Registry) ObserveCombinedFallbacks(provider string, failed int) {
	if r == nil || failed <= 0 {
		return
	}
	r.combinedFallbacks.WithLabelValues(provider).Add(float64(failed))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() stdhttp.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
