package fail

import "fmt"

// Visitor handles each concrete failure type. Adding a type to the union adds
// a method here, so every visitor stops compiling until it handles it.
type Visitor[R any] interface {
	Validation(*Validation) R
	Business(*BusinessError) R
	Incident(*Incident) R
}

// Visit dispatches f to the matching visitor method.
func Visit[R any](f Fail, v Visitor[R]) R {
	switch t := f.(type) {
	case *Validation:
		return v.Validation(t)
	case *BusinessError:
		return v.Business(t)
	case *Incident:
		return v.Incident(t)
	}
	panic(fmt.Sprintf("fail: unhandled failure type %T", f))
}
