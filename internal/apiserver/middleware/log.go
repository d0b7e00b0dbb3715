package middleware

import (
	"net/http"
	"time"

	"github.com/vitrinhq/vitrin/internal/i18n"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger logs one line per request once it has been served
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int("size", c.Writer.Size()),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("request failed", fields...)
		case c.Request.URL.Path == "/health_check":
			logger.Debug("request served", fields...)
		default:
			logger.Info("request served", fields...)
		}
	}
}

// Recovery recovers from panics and returns 500 error
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"),
				)
				if !c.Writer.Written() {
					i18n.AbortWithError(c, i18n.ErrInternalServer)
					return
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
