package dispatch

import (
	"fmt"
	"sort"

	"access-api/envelope"
	"access-api/fail"
	"access-api/result"
)

// Registry holds one dispatch table per protocol generation. Tables are
// filled at startup and only read afterwards.
type Registry struct {
	tables map[envelope.Generation]map[envelope.ActionKey]Handler
}

func NewRegistry() *Registry {
	return &Registry{tables: map[envelope.Generation]map[envelope.ActionKey]Handler{}}
}

// Register adds handlers to the table of their generation. It panics on an
// empty action or on a second handler for the same action.
func (r *Registry) Register(handlers ...Handler) {
	for _, h := range handlers {
		if h == nil || h.Action() == "" {
			panic("dispatch: handler without action")
		}
		table, ok := r.tables[h.Generation()]
		if !ok {
			table = map[envelope.ActionKey]Handler{}
			r.tables[h.Generation()] = table
		}
		if _, dup := table[h.Action()]; dup {
			panic(fmt.Sprintf("dispatch: action %s registered twice for %s", h.Action(), h.Generation()))
		}
		table[h.Action()] = h
	}
}

// Resolve finds the handler for the descriptor's action within its own
// generation. Actions of another generation are unknown.
func (r *Registry) Resolve(cmd envelope.Descriptor) result.Result[Handler] {
	if h, ok := r.tables[cmd.Generation()][cmd.Action]; ok {
		return result.Success(h)
	}
	return result.Failure[Handler](fail.UnknownAction(string(cmd.Action), cmd.Version.String()))
}

// Actions lists the registered actions of gen in name order.
func (r *Registry) Actions(gen envelope.Generation) []envelope.ActionKey {
	table := r.tables[gen]
	out := make([]envelope.ActionKey, 0, len(table))
	for k := range table {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
