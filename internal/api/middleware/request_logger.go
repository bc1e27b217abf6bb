package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger writes one line per request. Health probes are logged at
// debug level and server errors at error level.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := logrus.Fields{
			"status":  status,
			"method":  c.Request.Method,
			"path":    SanitizePath(c.Request.URL.Path),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		}
		if companyID, ok := c.Get(CompanyIDKey); ok {
			fields["company_id"] = companyID
		}
		entry := GetRequestLogger(c).WithFields(fields)

		switch {
		case status >= 500:
			entry.Error("handled request")
		case strings.HasSuffix(c.Request.URL.Path, "/health"):
			entry.Debug("handled request")
		default:
			entry.Info("handled request")
		}
	}
}
