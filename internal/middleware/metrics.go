package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fiee/dorsale/internal/telemetry"
)

// noRoute labels requests that matched no route, so unknown paths do not
// create new series.
const noRoute = "<no-route>"

// MetricsMiddleware records http_requests_total and http_request_duration_seconds.
// Paths are labelled with the route template (/:app/:name/:id/) rather than the
// raw URL so record ids never become label values. Register it after
// gin.Recovery() so the final status is captured.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = noRoute
		}
		method := c.Request.Method

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
