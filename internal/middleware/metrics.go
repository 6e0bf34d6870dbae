package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"dev.manna.backend/internal/observability/metrics"
)

// Metrics records per-route request counts and latencies. Unmatched routes
// are bucketed together so random paths cannot blow up label cardinality.
func Metrics(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		collector.RequestDuration.WithLabelValues(method, endpoint, status).Observe(time.Since(start).Seconds())
		collector.RequestCount.WithLabelValues(method, endpoint, status).Inc()
	}
}
