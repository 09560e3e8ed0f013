package web

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pingtrap/internal/shared/types"
)

const metricsNamespace = "pingtrap"

// NewMetricsHandler exposes the gateway counters in Prometheus text format.
// Values are read from provider at scrape time, nothing is cached.
func NewMetricsHandler(provider types.MetricsProvider) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_connections",
			Help:      "Connections currently being handled.",
		}, func() float64 { return float64(provider.GetMetrics().ActiveConnections) }),
		counterFunc("requests_total", "Requests read from a connection, malformed ones included.",
			func(m types.Metrics) uint64 { return m.TotalRequests }, provider),
		counterFunc("parse_failures_total", "Requests answered with 400 Bad Request.",
			func(m types.Metrics) uint64 { return m.ParseFailures }, provider),
		counterFunc("probes_total", "Diagnostic probes requested through the query string.",
			func(m types.Metrics) uint64 { return m.Probes }, provider),
		counterFunc("read_bytes_total", "Bytes read from clients.",
			func(m types.Metrics) uint64 { return m.BytesRead }, provider),
		counterFunc("written_bytes_total", "Bytes written to clients.",
			func(m types.Metrics) uint64 { return m.BytesWritten }, provider),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

func counterFunc(name, help string, pick func(types.Metrics) uint64, provider types.MetricsProvider) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(pick(provider.GetMetrics())) })
}
