package api

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/labstack/echo/v4"
)

// GzipRequestMiddleware inflates gzip request bodies before the command
// handler reads them. A body that is not valid gzip turns into a reader that
// fails, which the handler reports like any other unreadable body.
func GzipRequestMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if hasGzipEncoding(req.Header.Get(echo.HeaderContentEncoding)) {
				req.Body = inflate(req.Body)
				req.ContentLength = -1
				req.Header.Del(echo.HeaderContentEncoding)
				req.Header.Del(echo.HeaderContentLength)
			}
			return next(c)
		}
	}
}

func hasGzipEncoding(header string) bool {
	for _, enc := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			return true
		}
	}
	return false
}

func inflate(body io.ReadCloser) io.ReadCloser {
	zr, err := gzip.NewReader(body)
	if err != nil {
		return &brokenBody{err: fmt.Errorf("invalid gzip body: %w", err), raw: body}
	}
	return &inflatedBody{zr: zr, raw: body}
}

type inflatedBody struct {
	zr  *gzip.Reader
	raw io.Closer
}

func (b *inflatedBody) Read(p []byte) (int, error) { return b.zr.Read(p) }

func (b *inflatedBody) Close() error {
	return errorsFirst(b.zr.Close(), b.raw.Close())
}

type brokenBody struct {
	err error
	raw io.Closer
}

func (b *brokenBody) Read([]byte) (int, error) { return 0, b.err }

func (b *brokenBody) Close() error { return b.raw.Close() }

func errorsFirst(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
