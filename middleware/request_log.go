package middleware

import (
	"time"

	"dispatch-app/config"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestLogger tags every request with an id and logs method, path,
// status and latency.
func RequestLogger(ctx *fiber.Ctx) error {
	requestID := uuid.New().String()
	ctx.Locals("requestID", requestID)
	ctx.Set("X-Request-ID", requestID)

	start := time.Now()
	err := ctx.Next()

	config.GetLogger().WithFields(logrus.Fields{
		"request_id": requestID,
		"method":     ctx.Method(),
		"path":       ctx.Path(),
		"status":     ctx.Response().StatusCode(),
		"latency_ms": time.Since(start).Milliseconds(),
	}).Info("request completed")

	return err
}
