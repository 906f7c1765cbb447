package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/noahdhickman/Quodsi-API-sub001/pkg/logger"
	"go.uber.org/zap"
)

// LoggingMiddleware logs every HTTP request after it is processed
func LoggingMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)

		latency := time.Since(start)
		log := logger.FromContext(c)
		log.Info("HTTP Request",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Int("status", c.Response().Status),
			zap.Duration("latency", latency),
			zap.String("ip", c.RealIP()),
		)

		return err
	}
}
