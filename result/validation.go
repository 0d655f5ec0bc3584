package result

import "access-api/fail"

// ValidationResult is the value-less sibling of Result used by checks.
type ValidationResult struct {
	reason fail.Fail
}

// Ok is a passed check.
func Ok() ValidationResult {
	return ValidationResult{}
}

// Invalid is a failed check. A nil reason is a programming error.
func Invalid(reason fail.Fail) ValidationResult {
	if reason == nil {
		panic("result: Invalid called with nil reason")
	}
	return ValidationResult{reason: reason}
}

func (v ValidationResult) IsOk() bool        { return v.reason == nil }
func (v ValidationResult) IsError() bool     { return v.reason != nil }
func (v ValidationResult) Reason() fail.Fail { return v.reason }

// Validate runs checks in order and stops at the first failure.
func Validate(checks ...func() ValidationResult) ValidationResult {
	for _, check := range checks {
		if v := check(); v.reason != nil {
			return v
		}
	}
	return Ok()
}

// Lift turns a check into a Result carrying value when the check passed.
func Lift[T any](v ValidationResult, value T) Result[T] {
	if v.reason != nil {
		return Result[T]{reason: v.reason}
	}
	return Success(value)
}

// ToValidation drops the value of r.
func ToValidation[T any](r Result[T]) ValidationResult {
	return ValidationResult{reason: r.reason}
}

// Then runs check on the value of r, keeping r when the check passes.
func Then[T any](r Result[T], check func(T) ValidationResult) Result[T] {
	if r.reason != nil {
		return r
	}
	if v := check(r.value); v.reason != nil {
		return Result[T]{reason: v.reason}
	}
	return r
}
