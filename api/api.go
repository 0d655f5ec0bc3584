package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"access-api/envelope"
	"access-api/fail"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// Dispatcher turns a raw command body into an encoded response. Both methods
// always produce a body.
type Dispatcher interface {
	Dispatch(ctx context.Context, raw string, fallback envelope.Generation) []byte
	Reject(ctx context.Context, raw string, fallback envelope.Generation, f fail.Fail) []byte
}

type settings struct {
	maxBodyBytes int64
	health       func(context.Context) error
}

type Option func(*settings)

func WithMaxBodyBytes(n int64) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithHealthCheck makes /healthz answer 503 while check fails.
func WithHealthCheck(check func(context.Context) error) Option {
	return func(s *settings) { s.health = check }
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, d Dispatcher, logger *log.Logger, opts ...Option) {
	s := settings{maxBodyBytes: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(&s)
	}
	e.POST("/command", postCommand(d, envelope.V1, s.maxBodyBytes, logger), GzipRequestMiddleware())
	e.POST("/command2", postCommand(d, envelope.V2, s.maxBodyBytes, logger), GzipRequestMiddleware())
	e.GET("/healthz", healthz(s.health))
	e.GET("/metrics", echoprometheus.NewHandler())
}

func healthz(check func(context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		if check == nil {
			return c.NoContent(http.StatusOK)
		}
		if err := check(c.Request().Context()); err != nil {
			return c.String(http.StatusServiceUnavailable, err.Error())
		}
		return c.NoContent(http.StatusOK)
	}
}

// postCommand answers every request with 200; failures travel in the body.
func postCommand(d Dispatcher, fallback envelope.Generation, limit int64, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newCommandRequestMetrics(ctx, logger, c.Path())
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		readStart := time.Now()
		body, readErr := io.ReadAll(io.LimitReader(c.Request().Body, limit+1))
		metrics.ObserveRead(time.Since(readStart))
		metrics.SetBodyBytes(len(body))

		dispatchStart := time.Now()
		var out []byte
		switch {
		case readErr != nil:
			metrics.SetErrorStage("read_body")
			out = d.Reject(ctx, string(body), fallback, fail.Parsing("request body", readErr))
		case int64(len(body)) > limit:
			metrics.SetErrorStage("body_too_large")
			out = d.Reject(ctx, string(body[:limit]), fallback, fail.PayloadTooLarge(limit))
		default:
			out = d.Dispatch(ctx, string(body), fallback)
		}
		metrics.ObserveDispatch(time.Since(dispatchStart))

		err = c.JSONBlob(http.StatusOK, out)
		if err != nil {
			metrics.SetErrorStage("write_response")
		}
		return err
	}
}
