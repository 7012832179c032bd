package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/thuisdata/thuis/internal/fetch"
	"github.com/thuisdata/thuis/internal/resolver"
)

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Source     resolver.Source
	ListenPort int
}

const contextKeyRequestID = "_thuis_request_id"

// NewApp builds a Fiber application with request IDs and structured error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Source == nil {
		return nil, errors.New("page source is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.Get("/page", pageHandler(opts))

	return app, nil
}

// requestIDMiddleware 为每个请求生成请求 ID，并回写 X-Request-ID。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// pageHandler 通过 Source 解析 ?url=，network=true 时允许条件回源。
func pageHandler(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		target := strings.TrimSpace(c.Query("url"))
		if target == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url_required"})
		}

		allowNetwork := false
		if raw := c.Query("network"); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_network_flag"})
			}
			allowNetwork = parsed
		}

		ctx := c.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		content, err := opts.Source.Resolve(ctx, target, allowNetwork)
		status := statusForError(err)

		fields := logrus.Fields{
			"action":        "browse",
			"url":           target,
			"allow_network": allowNetwork,
			"status":        status,
			"elapsed_ms":    time.Since(started).Milliseconds(),
			"request_id":    RequestID(c),
		}
		if err != nil {
			fields["error"] = err.Error()
			opts.Logger.WithFields(fields).Warn("browse_failed")
			return c.Status(status).JSON(fiber.Map{"error": errorCode(status)})
		}
		opts.Logger.WithFields(fields).Debug("browse_complete")

		c.Set(fiber.HeaderContentType, "text/html; charset=utf-8")
		return c.Status(fiber.StatusOK).SendString(content)
	}
}

func statusForError(err error) int {
	var transportErr *fetch.TransportError
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, resolver.ErrCacheMiss):
		return fiber.StatusNotFound
	case errors.As(err, &transportErr):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func errorCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "cache_miss"
	case fiber.StatusBadGateway:
		return "upstream_failed"
	default:
		return "resolve_failed"
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
