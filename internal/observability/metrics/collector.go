package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the metrics exposed by the chat backend
type Collector struct {
	// Request metrics
	RequestDuration *prometheus.HistogramVec
	RequestCount    *prometheus.CounterVec

	// Model provider metrics
	ProviderLatency *prometheus.HistogramVec
	ProviderErrors  *prometheus.CounterVec
	ProviderTokens  *prometheus.CounterVec
}

// Registered once, tests may call NewCollector repeatedly
var (
	collector     *Collector
	collectorOnce sync.Once
)

// NewCollector returns the process-wide metrics collector
func NewCollector() *Collector {
	collectorOnce.Do(func() {
		collector = &Collector{
			RequestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
				},
				[]string{"method", "endpoint", "status"},
			),

			RequestCount: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total HTTP requests",
				},
				[]string{"method", "endpoint", "status"},
			),

			ProviderLatency: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "llm_provider_latency_seconds",
					Help:    "LLM provider latency in seconds",
					Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
				},
				[]string{"operation", "model"},
			),

			ProviderErrors: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "llm_provider_errors_total",
					Help: "Total LLM provider errors",
				},
				[]string{"operation", "reason"},
			),

			ProviderTokens: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "llm_provider_tokens_total",
					Help: "Total estimated tokens exchanged with the LLM provider",
				},
				[]string{"operation"},
			),
		}

		prometheus.MustRegister(collector.RequestDuration)
		prometheus.MustRegister(collector.RequestCount)
		prometheus.MustRegister(collector.ProviderLatency)
		prometheus.MustRegister(collector.ProviderErrors)
		prometheus.MustRegister(collector.ProviderTokens)
	})

	return collector
}

// Handler returns HTTP handler for metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.Handler()
}
