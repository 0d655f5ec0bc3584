// Package dispatch routes parsed commands to their handlers and makes
// repeated commands observe the response of the first run.
//
// A request goes through parse, resolve, history lookup, handler, history
// write and response building, in that order. A failure at any stage skips
// the stages after it and becomes the response.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"access-api/envelope"
	"access-api/fail"
	"access-api/history"
	"access-api/notify"
	"access-api/response"
	"access-api/result"
)

const tracerName = "access-api/dispatch"

// Guard keeps two instances from running the same command concurrently.
// Release only drops the claim identified by the token Claim returned.
type Guard interface {
	Claim(ctx context.Context, commandID, action string) (token string, claimed bool, err error)
	Release(ctx context.Context, commandID, action, token string) error
}

type Dispatcher struct {
	registry *Registry
	history  *history.Chain
	builder  *response.Builder
	guard    Guard
	notifier notify.Notifier
	logger   *log.Logger
	tracer   trace.TracerProvider
	now      func() time.Time
}

type Option func(*Dispatcher)

func WithGuard(g Guard) Option {
	return func(d *Dispatcher) { d.guard = g }
}

func WithNotifier(n notify.Notifier) Option {
	return func(d *Dispatcher) { d.notifier = n }
}

func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithTracerProvider pins the provider used for dispatch spans. By default
// the global provider is looked up on every request.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Dispatcher) { d.tracer = tp }
}

// WithClock overrides the timestamp written to history records.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func New(registry *Registry, chain *history.Chain, builder *response.Builder, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		history:  chain,
		builder:  builder,
		notifier: notify.Nop{},
		logger:   log.StandardLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// outcome is what one dispatch produced, for logging and tracing.
type outcome struct {
	id       string
	version  string
	action   string
	kind     Kind
	status   response.Status
	code     string
	replayed bool
	stage    string
	// incident carries the cause of a system fault into the log entry.
	incident *fail.Incident
}

// Dispatch runs one raw request body through the pipeline and returns the
// encoded response. It never fails: every failure is a response. fallback
// is the generation whose default version is echoed when the body carries
// no readable version.
func (d *Dispatcher) Dispatch(ctx context.Context, raw string, fallback envelope.Generation) []byte {
	return d.observe(ctx, func(ctx context.Context, out *outcome) []byte {
		return d.run(ctx, raw, fallback, out)
	})
}

// Reject answers a request the transport refused before it could be parsed,
// such as an oversized or unreadable body.
func (d *Dispatcher) Reject(ctx context.Context, raw string, fallback envelope.Generation, f fail.Fail) []byte {
	return d.observe(ctx, func(ctx context.Context, out *outcome) []byte {
		out.id, out.version = envelope.Peek(raw, fallback)
		out.stage = "transport"
		return d.reject(ctx, out, f)
	})
}

func (d *Dispatcher) observe(ctx context.Context, fn func(context.Context, *outcome) []byte) []byte {
	start := time.Now()
	tp := d.tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	ctx, span := tp.Tracer(tracerName).Start(ctx, "dispatch", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	out := &outcome{}
	body := fn(ctx, out)

	if out.action != "" {
		span.SetName("dispatch " + out.action)
	}
	span.SetAttributes(
		attribute.String("command.id", out.id),
		attribute.String("command.action", out.action),
		attribute.String("command.version", out.version),
		attribute.String("command.status", string(out.status)),
		attribute.Bool("command.replayed", out.replayed),
	)
	if out.code != "" {
		span.SetAttributes(attribute.String("command.fail_code", out.code))
	}
	if out.status == response.StatusIncident {
		span.SetStatus(codes.Error, out.code)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	fields := log.Fields{
		"command_id":  out.id,
		"action":      out.action,
		"version":     out.version,
		"status":      string(out.status),
		"replayed":    out.replayed,
		"duration_ms": float64(time.Since(start)) / float64(time.Millisecond),
	}
	if out.kind != 0 {
		fields["kind"] = out.kind.String()
	}
	if out.code != "" {
		fields["code"] = out.code
	}
	if out.stage != "" {
		fields["stage"] = out.stage
	}
	entry := d.logger.WithFields(fields)
	if out.incident != nil {
		entry = entry.WithError(out.incident)
	}
	if out.status == response.StatusIncident {
		entry.Warn("command.dispatched")
	} else {
		entry.Info("command.dispatched")
	}
	return body
}

func (d *Dispatcher) run(ctx context.Context, raw string, fallback envelope.Generation, out *outcome) []byte {
	cmd, f := envelope.Parse(raw).Unwrap()
	if f != nil {
		out.id, out.version = envelope.Peek(raw, fallback)
		out.stage = "parse"
		return d.reject(ctx, out, f)
	}
	out.id = cmd.ID
	out.version = cmd.Version.String()
	out.action = string(cmd.Action)

	h, f := d.registry.Resolve(cmd).Unwrap()
	if f != nil {
		out.stage = "resolve"
		return d.reject(ctx, out, f)
	}
	out.kind = h.Kind()

	if h.Kind() != Command {
		return d.respond(ctx, out, d.invoke(ctx, h, cmd))
	}
	return d.runCommand(ctx, h, cmd, out)
}

func (d *Dispatcher) runCommand(ctx context.Context, h Handler, cmd envelope.Descriptor, out *outcome) []byte {
	if body, ok, f := d.replay(ctx, out); f != nil {
		out.stage = "history"
		return d.reject(ctx, out, f)
	} else if ok {
		return body
	}

	if d.guard != nil {
		token, claimed, err := d.guard.Claim(ctx, out.id, out.action)
		switch {
		case err != nil:
			d.logger.WithError(err).WithFields(log.Fields{"command_id": out.id, "action": out.action}).
				Warn("in-flight guard unavailable, running without it")
		case !claimed:
			out.stage = "guard"
			return d.reject(ctx, out, fail.CommandInProgress(out.id, out.action))
		default:
			defer func() {
				if err := d.guard.Release(context.WithoutCancel(ctx), out.id, out.action, token); err != nil {
					d.logger.WithError(err).WithField("command_id", out.id).Warn("release in-flight claim")
				}
			}()
			// The previous holder may have finished between the lookup and
			// the claim.
			if body, ok, f := d.replay(ctx, out); f != nil {
				out.stage = "history"
				return d.reject(ctx, out, f)
			} else if ok {
				return body
			}
		}
	}

	res := d.invoke(ctx, h, cmd)
	r := d.build(out, res)
	if r.Status == response.StatusIncident {
		return d.finish(ctx, out, r)
	}
	body, f := d.encode(r)
	if f != nil {
		out.stage = "encode"
		return d.reject(ctx, out, f)
	}

	saved, f := d.history.Save(ctx, history.Record{
		CommandID: out.id,
		Action:    out.action,
		Date:      d.now().UTC(),
		Payload:   string(body),
	}).Unwrap()
	if f != nil {
		out.stage = "persist"
		return d.reject(ctx, out, f)
	}
	out.status = r.Status
	if saved.Payload != string(body) {
		out.replayed = true
		out.status = storedStatus(saved.Payload, r.Status)
	}
	return []byte(saved.Payload)
}

// replay returns the stored response for the command, if there is one.
func (d *Dispatcher) replay(ctx context.Context, out *outcome) ([]byte, bool, fail.Fail) {
	found, f := d.history.Find(ctx, out.id, out.action).Unwrap()
	if f != nil {
		return nil, false, f
	}
	rec, ok := found.Get()
	if !ok {
		return nil, false, nil
	}
	out.replayed = true
	out.status = storedStatus(rec.Payload, out.status)
	return []byte(rec.Payload), true, nil
}

// storedStatus reads the status of an encoded response, or returns def when
// the payload has none.
func storedStatus(payload string, def response.Status) response.Status {
	node, err := sonic.GetFromString(payload, "status")
	if err != nil {
		return def
	}
	status, err := node.String()
	if err != nil || status == "" {
		return def
	}
	return response.Status(status)
}

// invoke runs the handler. A panic in the handler becomes an incident.
func (d *Dispatcher) invoke(ctx context.Context, h Handler, cmd envelope.Descriptor) (res result.Result[any]) {
	defer func() {
		if rec := recover(); rec != nil {
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			d.logger.WithError(err).WithFields(log.Fields{"command_id": cmd.ID, "action": cmd.Action}).
				Error("handler panicked")
			res = result.Failure[any](fail.Unexpected(err))
		}
	}()
	return h.Execute(ctx, cmd)
}

func (d *Dispatcher) build(out *outcome, res result.Result[any]) response.Response {
	return result.Fold(res,
		func(v any) response.Response { return d.builder.Success(out.id, out.version, v) },
		func(f fail.Fail) response.Response {
			out.code = d.builder.Code(f.Kind())
			if inc, ok := f.(*fail.Incident); ok {
				out.incident = inc
			}
			return d.builder.Failure(out.id, out.version, f)
		})
}

func (d *Dispatcher) encode(r response.Response) ([]byte, fail.Fail) {
	body, err := response.Encode(r)
	if err != nil {
		return nil, fail.Serialization("response", err)
	}
	return body, nil
}

func (d *Dispatcher) respond(ctx context.Context, out *outcome, res result.Result[any]) []byte {
	return d.finish(ctx, out, d.build(out, res))
}

func (d *Dispatcher) reject(ctx context.Context, out *outcome, f fail.Fail) []byte {
	return d.respond(ctx, out, result.Failure[any](f))
}

// finish encodes a response that is not stored and reports incidents.
func (d *Dispatcher) finish(ctx context.Context, out *outcome, r response.Response) []byte {
	body, f := d.encode(r)
	if f != nil {
		out.stage = "encode"
		out.code = d.builder.Code(f.Kind())
		out.incident, _ = f.(*fail.Incident)
		r = d.builder.Failure(out.id, out.version, f)
		// An incident carries only strings and cannot fail to encode.
		body, _ = response.Encode(r)
	}
	out.status = r.Status
	if r.Status == response.StatusIncident {
		if err := d.notifier.Notify(ctx, r); err != nil {
			d.logger.WithError(err).WithField("command_id", out.id).Warn("incident notification failed")
		}
	}
	return body
}
