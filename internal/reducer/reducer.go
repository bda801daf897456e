// Package reducer ships the default reducers of the Redix runtime. Each
// reducer owns exactly one top-level sub-tree of the state document and
// ignores every event type outside its family, returning the input state
// unchanged (same reference, not a copy) so no-op reductions are free.
//
// All reducers are pure: new values are built copy-on-write, sharing every
// sub-tree they do not touch, and nothing is read besides the input state
// and the event (timestamps come from the event, never from the wall
// clock).
package reducer

import (
	"github.com/omnibrowser/redix/internal/eventlog"
)

// Default reducer names, as referenced by Event.Reducer.
const (
	TabReducer          = "tab"
	PerformanceReducer  = "performance"
	PolicyReducer       = "policy"
	OptimizationReducer = "optimization"
	ResourceReducer     = "resource"
)

// RegisterDefaults binds the five default reducers to their names.
// Re-registration is safe; the log overwrites bindings in place.
func RegisterDefaults(l *eventlog.Log) {
	l.RegisterReducer(TabReducer, Tab)
	l.RegisterReducer(PerformanceReducer, Performance)
	l.RegisterReducer(PolicyReducer, Policy)
	l.RegisterReducer(OptimizationReducer, Optimization)
	l.RegisterReducer(ResourceReducer, Resource)
}

// copyMap shallow-copies a document map. Children stay shared; callers
// replace exactly the children they change.
func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// num reads a numeric field from a document map. Zero when absent or
// non-numeric.
func num(m map[string]any, key string) float64 {
	f, _ := m[key].(float64)
	return f
}

// str reads a string field from a document map. Empty when absent or
// non-string.
func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
