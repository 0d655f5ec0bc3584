package envelope

import (
	"strings"

	"github.com/bytedance/sonic"

	"access-api/fail"
	"access-api/result"
)

// Fields is a JSON object whose members are decoded on demand. Missing and
// null members are treated alike.
type Fields map[string]sonic.NoCopyRawMessage

// Params decodes the payload as an object. Failures name the member as sent:
// "data" for v1 and "params" for v2.
func (d Descriptor) Params() result.Result[Fields] {
	name := attrParams
	if d.Generation() == V1 {
		name = attrData
	}
	if !d.HasPayload() {
		return result.Failure[Fields](fail.MissingRequiredAttribute(name))
	}
	var f Fields
	if err := sonic.ConfigStd.Unmarshal(d.Payload, &f); err != nil {
		return result.Failure[Fields](fail.DataTypeMismatch(name, "object"))
	}
	return result.Success(f)
}

// Has reports whether name is present and not null.
func (f Fields) Has(name string) bool {
	raw, ok := f[name]
	return ok && !isNull(raw)
}

// String reads a required, non-blank string member.
func (f Fields) String(name string) result.Result[string] {
	if !f.Has(name) {
		return result.Failure[string](fail.MissingRequiredAttribute(name))
	}
	var s string
	if err := sonic.ConfigStd.Unmarshal(f[name], &s); err != nil {
		return result.Failure[string](fail.DataTypeMismatch(name, "string"))
	}
	if strings.TrimSpace(s) == "" {
		return result.Failure[string](fail.EmptyString(name))
	}
	return result.Success(s)
}

// Decode reads a required member into T. expected names the JSON type in
// the failure description.
func Decode[T any](f Fields, name, expected string) result.Result[T] {
	if !f.Has(name) {
		return result.Failure[T](fail.MissingRequiredAttribute(name))
	}
	var v T
	if err := sonic.ConfigStd.Unmarshal(f[name], &v); err != nil {
		return result.Failure[T](fail.DataTypeMismatch(name, expected))
	}
	return result.Success(v)
}

// Optional reads a member into T when it is present.
func Optional[T any](f Fields, name, expected string) result.Result[result.Option[T]] {
	if !f.Has(name) {
		return result.Success(result.None[T]())
	}
	return result.Map(Decode[T](f, name, expected), result.Some[T])
}
