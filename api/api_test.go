package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"access-api/envelope"
	"access-api/fail"
)

type call struct {
	raw      string
	fallback envelope.Generation
	rejected fail.Fail
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, raw string, fallback envelope.Generation) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{raw: raw, fallback: fallback})
	return []byte(`{"id":"1","version":"2.0.0","status":"success"}`)
}

func (f *fakeDispatcher) Reject(ctx context.Context, raw string, fallback envelope.Generation, reason fail.Fail) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{raw: raw, fallback: fallback, rejected: reason})
	return []byte(`{"id":"1","version":"2.0.0","status":"incident"}`)
}

func (f *fakeDispatcher) last(t *testing.T) call {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatalf("dispatcher was not called")
	}
	return f.calls[len(f.calls)-1]
}

func newTestServer(t *testing.T, opts ...Option) (*echo.Echo, *fakeDispatcher, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	d := &fakeDispatcher{}
	e := echo.New()
	Register(e, d, logger, opts...)
	return e, d, hook
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPostCommandRoutesByEndpoint(t *testing.T) {
	e, d, _ := newTestServer(t)

	tests := []struct {
		path string
		want envelope.Generation
	}{
		{path: "/command", want: envelope.V1},
		{path: "/command2", want: envelope.V2},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(`{"id":"1"}`))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := serve(e, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, echo.MIMEApplicationJSON) {
				t.Fatalf("unexpected content type %q", ct)
			}
			got := d.last(t)
			if got.fallback != tt.want || got.raw != `{"id":"1"}` || got.rejected != nil {
				t.Fatalf("unexpected call %+v", got)
			}
		})
	}
}

func TestPostCommandRejectsOversizedBody(t *testing.T) {
	e, d, hook := newTestServer(t, WithMaxBodyBytes(8))

	rec := serve(e, httptest.NewRequest(http.MethodPost, "/command2", strings.NewReader(`{"id":"123456789"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := d.last(t)
	if got.rejected == nil || got.rejected.Kind() != fail.KindPayloadTooLarge {
		t.Fatalf("expected payload too large, got %+v", got)
	}
	if len(got.raw) != 8 {
		t.Fatalf("expected truncated body, got %q", got.raw)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Data["error_stage"] != "body_too_large" {
		t.Fatalf("unexpected log entry %+v", entry)
	}
}

func TestPostCommandAcceptsBodyAtLimit(t *testing.T) {
	e, d, _ := newTestServer(t, WithMaxBodyBytes(10))

	serve(e, httptest.NewRequest(http.MethodPost, "/command2", strings.NewReader(`{"id":"1"}`)))

	if got := d.last(t); got.rejected != nil {
		t.Fatalf("body at the limit must be dispatched, got %+v", got)
	}
}

func gzipped(t *testing.T, s string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return &buf
}

func TestPostCommandDecodesGzipBody(t *testing.T) {
	e, d, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/command2", gzipped(t, `{"id":"gz"}`))
	req.Header.Set(echo.HeaderContentEncoding, "identity, gzip")
	serve(e, req)

	if got := d.last(t); got.raw != `{"id":"gz"}` || got.rejected != nil {
		t.Fatalf("unexpected call %+v", got)
	}
}

func TestPostCommandInvalidGzipIsAnsweredInBody(t *testing.T) {
	e, d, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/command", strings.NewReader("not gzip"))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := serve(e, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := d.last(t)
	if got.rejected == nil || got.rejected.Kind() != fail.KindParsing {
		t.Fatalf("expected parsing incident, got %+v", got)
	}
	if got.fallback != envelope.V1 {
		t.Fatalf("unexpected fallback %v", got.fallback)
	}
}

func TestHasGzipEncoding(t *testing.T) {
	tests := map[string]bool{
		"":              false,
		"gzip":          true,
		"GZIP":          true,
		"br, gzip":      true,
		"deflate":       false,
		"x-gzip-custom": false,
	}
	for header, want := range tests {
		if got := hasGzipEncoding(header); got != want {
			t.Fatalf("hasGzipEncoding(%q) = %v, want %v", header, got, want)
		}
	}
}

func TestHealthz(t *testing.T) {
	e, _, _ := newTestServer(t)
	if rec := serve(e, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	down, _, _ := newTestServer(t, WithHealthCheck(func(context.Context) error { return errors.New("history unavailable") }))
	rec := serve(down, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "history unavailable") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e, _, _ := newTestServer(t)
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("expected prometheus output")
	}
}

func setupTestTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	})
	return tp, exporter
}

func TestCommandRequestIsTracedAndLogged(t *testing.T) {
	_, exporter := setupTestTracer(t)
	e, _, hook := newTestServer(t, WithMaxBodyBytes(4))

	serve(e, httptest.NewRequest(http.MethodPost, "/command2", strings.NewReader(`{"id":"1"}`)))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != "POST /command2" {
		t.Fatalf("unexpected span name %q", span.Name)
	}
	if span.Status.Code != codes.Error || span.Status.Description != "body_too_large" {
		t.Fatalf("unexpected span status %+v", span.Status)
	}
	attrs := map[string]any{}
	for _, kv := range span.Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	if attrs["http.route"] != "/command2" || attrs["http.response.status_code"] != int64(http.StatusOK) {
		t.Fatalf("unexpected attributes %#v", attrs)
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatalf("expected a log entry")
	}
	if entry.Message != "command.request" || entry.Level != log.InfoLevel {
		t.Fatalf("unexpected entry %s %s", entry.Level, entry.Message)
	}
	if entry.Data["route"] != "/command2" || entry.Data["status"] != http.StatusOK {
		t.Fatalf("unexpected fields %#v", entry.Data)
	}
	if entry.Data["body_bytes"] != 5 {
		t.Fatalf("unexpected body size %#v", entry.Data["body_bytes"])
	}
}

func TestCommandRequestMetricsNilSafe(t *testing.T) {
	var m *commandRequestMetrics
	m.Log(http.StatusOK, nil)

	logger, hook := test.NewNullLogger()
	metrics, _ := newCommandRequestMetrics(context.Background(), logger, "/command")
	metrics.SetBodyBytes(-1)
	metrics.SetErrorStage("")
	metrics.Log(http.StatusOK, errors.New("broken pipe"))

	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.ErrorLevel || entry.Data["error"] != "broken pipe" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Data["body_bytes"] != 0 {
		t.Fatalf("negative body size must clamp to zero")
	}
}
