package envelope

import (
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"access-api/fail"
	"access-api/result"
)

const (
	attrVersion = "version"
	attrID      = "id"
	attrCommand = "command"
	attrAction  = "action"
	attrContext = "context"
	attrData    = "data"
	attrParams  = "params"
)

// Parse builds a Descriptor from a raw body. Malformed JSON is a parsing
// incident; a missing or malformed envelope attribute is a validation
// failure. The action is not resolved here.
func Parse(raw string) result.Result[Descriptor] {
	var node map[string]sonic.NoCopyRawMessage
	if err := sonic.ConfigStd.UnmarshalFromString(raw, &node); err != nil {
		return result.Failure[Descriptor](fail.Parsing("request body", err))
	}
	body := Body{Raw: raw, Node: node}

	version, f := readVersion(node).Unwrap()
	if f != nil {
		return result.Failure[Descriptor](f)
	}

	switch version.Generation() {
	case V1:
		return parseV1(body, version)
	case V2:
		return parseV2(body, version)
	default:
		return result.Failure[Descriptor](fail.UnknownValue(attrVersion, version.String()))
	}
}

func readVersion(node map[string]sonic.NoCopyRawMessage) result.Result[Version] {
	s, f := readString(node, attrVersion).Unwrap()
	if f != nil {
		return result.Failure[Version](f)
	}
	v, ok := ParseVersion(s)
	if !ok {
		return result.Failure[Version](fail.DataFormatMismatch(attrVersion, "X.Y.Z"))
	}
	return result.Success(v)
}

func parseV1(body Body, version Version) result.Result[Descriptor] {
	id, f := readString(body.Node, attrID).Unwrap()
	if f != nil {
		return result.Failure[Descriptor](f)
	}
	command, f := readString(body.Node, attrCommand).Unwrap()
	if f != nil {
		return result.Failure[Descriptor](f)
	}
	ctx, f := readContext(body.Node).Unwrap()
	if f != nil {
		return result.Failure[Descriptor](f)
	}
	return result.Success(Descriptor{
		ID:      id,
		Version: version,
		Action:  ActionKey(command),
		Body:    body,
		Context: ctx,
		Payload: body.Node[attrData],
	})
}

func parseV2(body Body, version Version) result.Result[Descriptor] {
	id, f := readString(body.Node, attrID).Unwrap()
	if f != nil {
		return result.Failure[Descriptor](f)
	}
	action, f := readString(body.Node, attrAction).Unwrap()
	if f != nil {
		return result.Failure[Descriptor](f)
	}
	return result.Success(Descriptor{
		ID:      id,
		Version: version,
		Action:  ActionKey(action),
		Body:    body,
		Payload: body.Node[attrParams],
	})
}

func readContext(node map[string]sonic.NoCopyRawMessage) result.Result[*Context] {
	raw, ok := node[attrContext]
	if !ok || isNull(raw) {
		return result.Success[*Context](&Context{})
	}
	var ctx Context
	if err := sonic.ConfigStd.Unmarshal(raw, &ctx); err != nil {
		return result.Failure[*Context](fail.DataTypeMismatch(attrContext, "object"))
	}
	return result.Success(&ctx)
}

func readString(node map[string]sonic.NoCopyRawMessage, name string) result.Result[string] {
	return Fields(node).String(name)
}

func isNull(raw sonic.NoCopyRawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

// Peek reads the id and version of a body without validating it, for
// responses to requests rejected before a Descriptor exists. Missing values
// fall back to the nil UUID and the generation's default version.
func Peek(raw string, fallback Generation) (string, string) {
	id := uuid.Nil.String()
	version := fallback.DefaultVersion().String()

	var head struct {
		ID      any `json:"id"`
		Version any `json:"version"`
	}
	if err := sonic.ConfigStd.UnmarshalFromString(raw, &head); err != nil {
		return id, version
	}
	switch v := head.ID.(type) {
	case string:
		if strings.TrimSpace(v) != "" {
			id = v
		}
	case float64:
		id = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if v, ok := head.Version.(string); ok {
		if parsed, ok := ParseVersion(v); ok {
			version = parsed.String()
		}
	}
	return id, version
}
