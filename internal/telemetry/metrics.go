// Package telemetry provides observability for the record service.
//
// All metrics are registered against the default Prometheus registry and are served
// by the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<DORSALE_TELEMETRY_METRICS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Cascading delete counters by kind and record type
//   - Export counters by format
//   - Empty ownership scopes by reason
//   - Database connection pool gauge (polled every 30 s)
//
// HTTP metrics use c.FullPath() (route template such as /:app/:name/:id/) so record ids
// never become label values.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPRequestsTotal is labelled {method, path, status}; HTTPRequestDuration {method, path}.
//
// Example PromQL queries:
//   - Request rate:  rate(http_requests_total[5m])
//   - p99 per route: histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// CascadeObjectsTotal counts rows touched by committed deletes. kind is
// "soft_deleted" or "removed"; type is the record type key or the plain table name.
//
// Example PromQL queries:
//   - Removals by table: sum by (type) (rate(dorsale_cascade_objects_total{kind="removed"}[1h]))
var CascadeObjectsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dorsale_cascade_objects_total",
		Help: "Total number of records flagged or rows removed by cascading deletes.",
	},
	[]string{"kind", "type"},
)

// ExportsTotal counts completed exports by format.
var ExportsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dorsale_exports_total",
		Help: "Total number of record exports written, by format.",
	},
	[]string{"format"},
)

// ScopeEmptyTotal counts ownership scopes that were emptied, by reason
// (anonymous, unknown_actor, inactive_actor, lookup_failed).
var ScopeEmptyTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dorsale_scope_empty_total",
		Help: "Total number of ownership queries that matched nothing because of the actor.",
	},
	[]string{"reason"},
)

// DBOpenConnections tracks open connections of the sql.DB pool, sampled every
// 30 seconds by StartDBStatsCollector.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples pool statistics every 30 seconds. The goroutine exits
// once the database becomes unreachable, which happens when main closes it.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
