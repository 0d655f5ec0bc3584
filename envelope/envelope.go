// Package envelope turns a raw request body into a Descriptor.
//
// Two protocol generations share one endpoint. The explicit "version" field
// selects the shape: major 1 is the context/data envelope keyed by "command",
// major 2 is the flat envelope keyed by "action" with "params".
package envelope

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// ActionKey names an operation within one protocol generation.
type ActionKey string

// Generation is the major protocol version.
type Generation int

const (
	V1 Generation = 1
	V2 Generation = 2
)

func (g Generation) String() string {
	return "v" + strconv.Itoa(int(g))
}

// DefaultVersion is echoed on responses for requests whose version could not
// be read.
func (g Generation) DefaultVersion() Version {
	return Version{Major: int(g)}
}

// Version is a semantic protocol version as sent by the caller.
type Version struct {
	Major int
	Minor int
	Patch int
}

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)

// ParseVersion parses "X.Y.Z".
func ParseVersion(s string) (Version, bool) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return Version{}, false
	}
	parts := [3]int{}
	for i := range parts {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Version{}, false
		}
		parts[i] = n
	}
	return Version{Major: parts[0], Minor: parts[1], Patch: parts[2]}, true
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func (v Version) Generation() Generation {
	return Generation(v.Major)
}

// Context carries the cross-cutting fields of a v1 envelope.
type Context struct {
	Cpid          string `json:"cpid,omitempty"`
	Ocid          string `json:"ocid,omitempty"`
	Stage         string `json:"stage,omitempty"`
	PrevStage     string `json:"prevStage,omitempty"`
	Owner         string `json:"owner,omitempty"`
	Token         string `json:"token,omitempty"`
	Pmd           string `json:"pmd,omitempty"`
	Country       string `json:"country,omitempty"`
	Language      string `json:"language,omitempty"`
	OperationType string `json:"operationType,omitempty"`
	Phase         string `json:"phase,omitempty"`
	StartDate     string `json:"startDate,omitempty"`
	EndDate       string `json:"endDate,omitempty"`
	IsAuction     *bool  `json:"isAuction,omitempty"`
}

// Body keeps both the raw request text and its parsed top-level members.
// Handlers decode their own typed payload from it.
type Body struct {
	Raw  string
	Node map[string]sonic.NoCopyRawMessage
}

// Descriptor is one parsed inbound command. (ID, Action) is its idempotency
// key.
type Descriptor struct {
	ID      string
	Version Version
	Action  ActionKey
	Body    Body
	// Context is set for v1 envelopes only.
	Context *Context
	// Payload is "data" for v1 and "params" for v2. It may be empty.
	Payload sonic.NoCopyRawMessage
}

// Generation returns the protocol generation the descriptor was parsed as.
func (d Descriptor) Generation() Generation {
	return d.Version.Generation()
}

// HasPayload reports whether the payload member was present and not null.
func (d Descriptor) HasPayload() bool {
	p := strings.TrimSpace(string(d.Payload))
	return p != "" && p != "null"
}
