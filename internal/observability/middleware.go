package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// quietPaths are polled by dashboards and scrapers; they log at debug.
var quietPaths = map[string]bool{
	"/metrics": true,
	"/health":  true,
	"/walls":   true,
}

// RequestLogger logs one line per admin request, escalating on 4xx/5xx.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := routePath(c)

		event := logger.Info()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		case quietPaths[path]:
			event = logger.Debug()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("server.http_request")
	}
}

func RequestMetricsMiddleware(node string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		RecordHTTPRequest(node, c.Request.Method, routePath(c), c.Writer.Status(), time.Since(start))
	}
}

// routePath prefers the route template so wall ids do not explode label cardinality.
func routePath(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return "unmatched"
}
