package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery turns a handler panic into a 500 response carrying the request
// id. When verbose is true the log line also carries the stack trace and the
// sanitized request headers.
func Recovery(verbose bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				entry := GetRequestLogger(c).WithFields(map[string]interface{}{
					"method": c.Request.Method,
					"path":   SanitizePath(c.Request.URL.Path),
				})
				if verbose {
					entry.WithField("headers", SanitizeHeaders(c.Request.Header)).
						Errorf("PANIC: %v\nStacktrace:\n%s", r, debug.Stack())
				} else {
					entry.Errorf("PANIC: %v", r)
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "internal server error",
					"request_id": c.GetString(RequestIDKey),
				})
			}
		}()
		c.Next()
	}
}
