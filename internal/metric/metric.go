// Package metric exposes prometheus counters for the server's upstream work.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ExportsStarted   prometheus.Counter
	ExportsCompleted *prometheus.CounterVec
	ExportRows       prometheus.Counter
	AssetDBQueries   prometheus.Counter
}

// New creates and registers the server metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		ExportsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stacklet_mcp_exports_started_total",
			Help: "Dataset export jobs started.",
		}),
		ExportsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stacklet_mcp_exports_completed_total",
			Help: "Dataset export jobs finished, by outcome.",
		}, []string{"status"}),
		ExportRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stacklet_mcp_export_rows_total",
			Help: "Rows written to export artifacts.",
		}),
		AssetDBQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stacklet_mcp_assetdb_queries_total",
			Help: "AssetDB query executions.",
		}),
	}
	registry.MustRegister(m.ExportsStarted, m.ExportsCompleted, m.ExportRows, m.AssetDBQueries)
	return m
}

// Handler serves the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
