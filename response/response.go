// Package response renders command outcomes into the three wire shapes:
// success, fail and incident.
package response

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"access-api/fail"
)

// Status tells the caller which of the three shapes Result holds.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFail     Status = "fail"
	StatusIncident Status = "incident"
)

// DateLayout is the wire format of incident dates.
const DateLayout = "2006-01-02T15:04:05Z"

// Service identifies this deployment in error codes and incident payloads.
type Service struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Response is the wire envelope. Build it with a Builder only.
type Response struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Status  Status `json:"status"`
	Result  any    `json:"result,omitempty"`
}

// ErrorEntry is one element of a fail response.
type ErrorEntry struct {
	Code        string        `json:"code"`
	Description string        `json:"description"`
	Details     []fail.Detail `json:"details,omitempty"`
}

// Incident is the result of an incident response.
type Incident struct {
	ID      string           `json:"id"`
	Date    string           `json:"date"`
	Level   fail.Level       `json:"level"`
	Details []IncidentDetail `json:"details"`
	Service Service          `json:"service"`
}

type IncidentDetail struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Encode serializes r. Field order is fixed by the struct definitions, so a
// response encodes to the same bytes every time.
func Encode(r Response) ([]byte, error) {
	return sonic.ConfigStd.Marshal(r)
}

// Builder is the only constructor of Response values.
type Builder struct {
	service Service
	now     func() time.Time
	newID   func() string
}

type Option func(*Builder)

// WithClock overrides the incident timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithIDGenerator overrides the incident id source.
func WithIDGenerator(newID func() string) Option {
	return func(b *Builder) { b.newID = newID }
}

func NewBuilder(service Service, opts ...Option) *Builder {
	b := &Builder{
		service: service,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Service returns the identity the builder stamps on responses.
func (b *Builder) Service() Service {
	return b.service
}

// Code renders the wire code of a failure kind.
func (b *Builder) Code(kind fail.Kind) string {
	return kind.Code() + "/" + b.service.ID
}

// Success wraps a business value. A nil value omits "result".
func (b *Builder) Success(id, version string, value any) Response {
	return Response{ID: id, Version: version, Status: StatusSuccess, Result: value}
}

// Failure maps f to a fail or incident response. Incidents get a fresh id and
// date on every call.
func (b *Builder) Failure(id, version string, f fail.Fail) Response {
	return fail.Visit[Response](f, failureVisitor{b: b, id: id, version: version})
}

type failureVisitor struct {
	b       *Builder
	id      string
	version string
}

func (v failureVisitor) Validation(f *fail.Validation) Response {
	return v.errorResponse(f)
}

func (v failureVisitor) Business(f *fail.BusinessError) Response {
	return v.errorResponse(f)
}

func (v failureVisitor) Incident(f *fail.Incident) Response {
	return Response{
		ID:      v.id,
		Version: v.version,
		Status:  StatusIncident,
		Result: Incident{
			ID:    v.b.newID(),
			Date:  v.b.now().UTC().Format(DateLayout),
			Level: f.Level(),
			Details: []IncidentDetail{{
				Code:        v.b.Code(f.Kind()),
				Description: f.Description(),
			}},
			Service: v.b.service,
		},
	}
}

func (v failureVisitor) errorResponse(f fail.Fail) Response {
	return Response{
		ID:      v.id,
		Version: v.version,
		Status:  StatusFail,
		Result: []ErrorEntry{{
			Code:        v.b.Code(f.Kind()),
			Description: f.Description(),
			Details:     f.Details(),
		}},
	}
}
