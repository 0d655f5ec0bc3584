package dispatch

import (
	"context"

	"access-api/envelope"
	"access-api/result"
)

// Kind tells the dispatcher whether a handler takes part in replay.
type Kind int

const (
	// Command handlers have side effects. Their responses are stored and
	// replayed for repeated commands.
	Command Kind = iota + 1
	// Query handlers read state and run on every request.
	Query
	// Check handlers validate state, return no value and run on every request.
	Check
)

func (k Kind) String() string {
	switch k {
	case Command:
		return "command"
	case Query:
		return "query"
	case Check:
		return "check"
	default:
		return "unknown"
	}
}

// Handler executes one action of one protocol generation.
type Handler interface {
	Action() envelope.ActionKey
	Generation() envelope.Generation
	Kind() Kind
	Execute(ctx context.Context, cmd envelope.Descriptor) result.Result[any]
}

type handler struct {
	action     envelope.ActionKey
	generation envelope.Generation
	kind       Kind
	run        func(ctx context.Context, cmd envelope.Descriptor) result.Result[any]
}

func (h handler) Action() envelope.ActionKey      { return h.action }
func (h handler) Generation() envelope.Generation { return h.generation }
func (h handler) Kind() Kind                      { return h.kind }

func (h handler) Execute(ctx context.Context, cmd envelope.Descriptor) result.Result[any] {
	return h.run(ctx, cmd)
}

func erase[R any](fn func(context.Context, envelope.Descriptor) result.Result[R]) func(context.Context, envelope.Descriptor) result.Result[any] {
	return func(ctx context.Context, cmd envelope.Descriptor) result.Result[any] {
		return result.Map(fn(ctx, cmd), func(v R) any { return v })
	}
}

// NewCommand registers fn as a replayable action.
func NewCommand[R any](gen envelope.Generation, action envelope.ActionKey, fn func(context.Context, envelope.Descriptor) result.Result[R]) Handler {
	return handler{action: action, generation: gen, kind: Command, run: erase(fn)}
}

// NewQuery registers fn as a read-only action that is never replayed.
func NewQuery[R any](gen envelope.Generation, action envelope.ActionKey, fn func(context.Context, envelope.Descriptor) result.Result[R]) Handler {
	return handler{action: action, generation: gen, kind: Query, run: erase(fn)}
}

// NewCheck registers fn as a validation action. A passed check answers with
// a success response without a result.
func NewCheck(gen envelope.Generation, action envelope.ActionKey, fn func(context.Context, envelope.Descriptor) result.ValidationResult) Handler {
	return handler{action: action, generation: gen, kind: Check, run: func(ctx context.Context, cmd envelope.Descriptor) result.Result[any] {
		return result.Lift[any](fn(ctx, cmd), nil)
	}}
}
