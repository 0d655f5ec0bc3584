package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "access-api/api"

type commandRequestMetrics struct {
	logger           *log.Logger
	span             trace.Span
	route            string
	start            time.Time
	readDuration     time.Duration
	dispatchDuration time.Duration
	bodyBytes        int
	errorStage       string
}

// newCommandRequestMetrics starts the request span. The returned context is
// nil when no span could be started.
func newCommandRequestMetrics(ctx context.Context, logger *log.Logger, route string) (*commandRequestMetrics, context.Context) {
	m := &commandRequestMetrics{
		logger: logger,
		route:  route,
		start:  time.Now(),
	}
	if ctx == nil {
		return m, nil
	}
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, http.MethodPost+" "+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("http.route", route)),
	)
	m.span = span
	return m, spanCtx
}

func (m *commandRequestMetrics) ObserveRead(d time.Duration) {
	if d > 0 {
		m.readDuration = d
	}
}

func (m *commandRequestMetrics) ObserveDispatch(d time.Duration) {
	if d > 0 {
		m.dispatchDuration = d
	}
}

func (m *commandRequestMetrics) SetBodyBytes(n int) {
	if n < 0 {
		n = 0
	}
	m.bodyBytes = n
}

func (m *commandRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *commandRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	total := time.Since(m.start)

	if m.span != nil {
		m.span.SetAttributes(
			attribute.Int("http.response.status_code", status),
			attribute.Int("access.request.body_bytes", m.bodyBytes),
			attribute.Float64("access.request.read_ms", durationToMillis(m.readDuration)),
			attribute.Float64("access.request.dispatch_ms", durationToMillis(m.dispatchDuration)),
		)
		switch {
		case err != nil:
			m.span.RecordError(err)
			m.span.SetStatus(codes.Error, err.Error())
		case m.errorStage != "":
			m.span.SetAttributes(attribute.String("access.request.error_stage", m.errorStage))
			m.span.SetStatus(codes.Error, m.errorStage)
		default:
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"route":      m.route,
		"status":     status,
		"total_ms":   durationToMillis(total),
		"body_bytes": m.bodyBytes,
	}
	if m.readDuration > 0 {
		fields["read_ms"] = durationToMillis(m.readDuration)
	}
	if m.dispatchDuration > 0 {
		fields["dispatch_ms"] = durationToMillis(m.dispatchDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
		m.logger.WithFields(fields).Error("command.request")
		return
	}
	m.logger.WithFields(fields).Info("command.request")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
