package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/siakad-krs/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics records request count and latency labelled by route template.
// Requests that match no route share one label so probing does not grow series.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
