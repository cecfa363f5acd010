package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger пишет итог обработки каждого запроса и все приватные ошибки хендлеров.
func Logger(l *logrus.Logger) gin.HandlerFunc {
	entry := l.WithField("component", "api")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"clientIP": c.ClientIP(),
		}

		for _, ginErr := range c.Errors {
			if ginErr.IsType(gin.ErrorTypePrivate) {
				entry.WithFields(fields).WithError(ginErr.Err).Error("request failed")
				return
			}
		}
		entry.WithFields(fields).Info("request")
	}
}
