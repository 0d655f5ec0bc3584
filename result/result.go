// Package result threads expected failures through handler code without
// panics or sentinel errors.
//
// A Result holds either a value or a fail.Fail. Combinators never call their
// continuation on a failure, and a failure is never replaced by a later
// success: the first failure in a chain is the final one.
package result

import "access-api/fail"

// Result is the outcome of a computation producing a T.
type Result[T any] struct {
	value  T
	reason fail.Fail
}

// Success wraps a value.
func Success[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Failure wraps a failure. A nil reason is a programming error.
func Failure[T any](reason fail.Fail) Result[T] {
	if reason == nil {
		panic("result: Failure called with nil reason")
	}
	return Result[T]{reason: reason}
}

func (r Result[T]) IsSuccess() bool { return r.reason == nil }
func (r Result[T]) IsFailure() bool { return r.reason != nil }

// Unwrap returns the value and a nil failure on success, or the zero value
// and the failure otherwise. It is the early-return idiom for handlers:
//
//	tender, f := repo.Find(ctx, cpid, ocid).Unwrap()
//	if f != nil {
//		return result.Failure[State](f)
//	}
func (r Result[T]) Unwrap() (T, fail.Fail) {
	return r.value, r.reason
}

// Get returns the value and panics on a failure.
func (r Result[T]) Get() T {
	if r.reason != nil {
		panic("result: Get called on failure " + r.reason.Code())
	}
	return r.value
}

// Reason returns the failure or nil on success.
func (r Result[T]) Reason() fail.Fail {
	return r.reason
}

// OrElse returns the value on success and def otherwise.
func (r Result[T]) OrElse(def T) T {
	if r.reason != nil {
		return def
	}
	return r.value
}

// OnFailure calls fn with the failure, if any, and returns r unchanged.
func (r Result[T]) OnFailure(fn func(fail.Fail)) Result[T] {
	if r.reason != nil {
		fn(r.reason)
	}
	return r
}

// Map transforms the value of a success.
func Map[T, R any](r Result[T], fn func(T) R) Result[R] {
	if r.reason != nil {
		return Result[R]{reason: r.reason}
	}
	return Success(fn(r.value))
}

// FlatMap chains a dependent computation.
func FlatMap[T, R any](r Result[T], fn func(T) Result[R]) Result[R] {
	if r.reason != nil {
		return Result[R]{reason: r.reason}
	}
	return fn(r.value)
}

// MapFailure rewrites the failure of r. The replacement must not be nil.
func MapFailure[T any](r Result[T], fn func(fail.Fail) fail.Fail) Result[T] {
	if r.reason == nil {
		return r
	}
	return Failure[T](fn(r.reason))
}

// Fold collapses r into a single value.
func Fold[T, R any](r Result[T], onSuccess func(T) R, onFailure func(fail.Fail) R) R {
	if r.reason != nil {
		return onFailure(r.reason)
	}
	return onSuccess(r.value)
}
