// Package fail defines the closed set of failures a command can end with.
//
// A Fail is either an expected Error (Validation or BusinessError) that is
// safe to show to the caller, or an Incident describing a system fault. The
// set of Go types is closed: Fail has an unexported method, and Visit is the
// only place that switches over the concrete types.
package fail

import (
	"fmt"
)

// Fail is implemented by *Validation, *BusinessError and *Incident only.
type Fail interface {
	error
	Kind() Kind
	Code() string
	Description() string
	Details() []Detail
	sealed()
}

// Detail points at the piece of input a failure is about.
type Detail struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Level is the alerting severity of an incident.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

type base struct {
	kind        Kind
	description string
	details     []Detail
}

func (b base) Kind() Kind          { return b.kind }
func (b base) Code() string        { return b.kind.code }
func (b base) Description() string { return b.description }

func (b base) Details() []Detail {
	if len(b.details) == 0 {
		return nil
	}
	out := make([]Detail, len(b.details))
	copy(out, b.details)
	return out
}

func (b base) message() string {
	return b.kind.code + " " + b.kind.name + ": " + b.description
}

// Validation reports malformed or missing input.
type Validation struct {
	base
}

// BusinessError reports a violated domain rule.
type BusinessError struct {
	base
}

// Incident reports an unexpected system fault. The cause is kept for logs and
// never rendered on the wire.
type Incident struct {
	base
	level Level
	cause error
}

func (*Validation) sealed()    {}
func (*BusinessError) sealed() {}
func (*Incident) sealed()      {}

func (v *Validation) Error() string    { return v.message() }
func (b *BusinessError) Error() string { return b.message() }

func (i *Incident) Error() string {
	if i.cause != nil {
		return i.message() + ": " + i.cause.Error()
	}
	return i.message()
}

func (i *Incident) Unwrap() error { return i.cause }
func (i *Incident) Level() Level  { return i.level }

// NewValidation builds a validation failure. It panics when kind belongs to
// another family.
func NewValidation(kind Kind, description string, details ...Detail) *Validation {
	mustFamily(kind, FamilyValidation)
	return &Validation{base{kind: kind, description: description, details: details}}
}

// NewBusiness builds a business rule failure. It panics when kind belongs to
// another family.
func NewBusiness(kind Kind, description string, details ...Detail) *BusinessError {
	mustFamily(kind, FamilyBusiness)
	return &BusinessError{base{kind: kind, description: description, details: details}}
}

// NewIncident builds an incident. It panics when kind belongs to another
// family.
func NewIncident(kind Kind, level Level, description string, cause error) *Incident {
	mustFamily(kind, FamilyIncident)
	if level == "" {
		level = LevelError
	}
	return &Incident{base: base{kind: kind, description: description}, level: level, cause: cause}
}

func mustFamily(kind Kind, want Family) {
	if kind.family != want {
		panic(fmt.Sprintf("fail: kind %s is %s, not %s", kind, kind.family, want))
	}
}

// IsError reports whether f is an expected failure (validation or business).
func IsError(f Fail) bool {
	switch f.(type) {
	case *Validation, *BusinessError:
		return true
	}
	return false
}

// IsIncident reports whether f is a system fault.
func IsIncident(f Fail) bool {
	_, ok := f.(*Incident)
	return ok
}
