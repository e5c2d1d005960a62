package middleware

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDKey is the Locals key holding the request id.
const RequestIDKey = "requestid"

// RequestID reuses an incoming X-Request-ID or assigns a fresh UUID v4.
func RequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Header: fiber.HeaderXRequestID,
		Generator: func() string {
			return uuid.New().String()
		},
		ContextKey: RequestIDKey,
	})
}

// Recover turns panics into 500 responses and logs them with a stack trace.
func Recover(log *zap.Logger) fiber.Handler {
	return recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			log.Error("Panic recovered",
				zap.Any("panic", e),
				zap.String("request_id", requestIDFrom(c)),
				zap.Stack("stack"),
			)
		},
	})
}

// RequestLogger writes one structured entry per request.
func RequestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
			zap.String("request_id", requestIDFrom(c)),
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			log.Error("Request", fields...)
		case status >= fiber.StatusBadRequest:
			log.Warn("Request", fields...)
		default:
			log.Info("Request", fields...)
		}
		return err
	}
}

// ErrorHandler renders errors that reach Fiber, such as unknown routes, as {message}.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := "Internal server error"

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
			msg = fiberErr.Message
		} else {
			log.Error("Unhandled error", zap.String("request_id", requestIDFrom(c)), zap.Error(err))
		}
		return c.Status(code).JSON(fiber.Map{"message": msg})
	}
}

func requestIDFrom(c *fiber.Ctx) string {
	id, _ := c.Locals(RequestIDKey).(string)
	return id
}
