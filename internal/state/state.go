// Package state defines the untyped document model the Redix runtime derives
// from its event log.
//
// A State is a plain nested JSON-shaped document (maps, slices, strings,
// numbers, bools, nil). Reducers treat it as immutable: a reduction returns a
// new top-level value and shares every sub-tree it did not touch, so
// unchanged branches keep reference identity across reductions. Clone
// produces fully independent copies for handing state across the API
// boundary.
package state

import (
	"encoding/json"
	"fmt"
	"strings"
)

// State is the root document. The zero value is usable but nil; use Empty
// for a non-nil empty document.
type State map[string]any

// Empty returns a new empty document.
func Empty() State {
	return State{}
}

// Clone returns a deep copy of the document. Mutating the copy never
// affects the receiver.
func (s State) Clone() State {
	if s == nil {
		return Empty()
	}
	out := make(State, len(s))
	for k, v := range s {
		out[k] = CloneValue(v)
	}
	return out
}

// With returns a copy of s with key set to v. Only the top level is copied;
// sibling sub-trees are shared with the receiver. This is the copy-on-write
// primitive reducers build on.
func (s State) With(key string, v any) State {
	out := make(State, len(s)+1)
	for k, val := range s {
		out[k] = val
	}
	out[key] = v
	return out
}

// Sub returns the child document at key, or nil when the key is absent or
// holds a non-map value. The returned map is shared, not copied.
func (s State) Sub(key string) map[string]any {
	child, _ := s[key].(map[string]any)
	return child
}

// GetPath resolves a dotted path (e.g. "tabs.t1.status") against the
// document. The boolean reports whether every segment resolved.
func (s State) GetPath(path string) (any, bool) {
	if path == "" {
		return map[string]any(s), s != nil
	}
	var cur any = map[string]any(s)
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// CloneValue deep-copies a document value. Maps and slices are copied
// recursively; scalars are returned as-is.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = CloneValue(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = CloneValue(child)
		}
		return out
	default:
		return v
	}
}

// NormalizeValue converts an arbitrary payload value into canonical document
// form: maps become map[string]any, sequences become []any, and every
// numeric type becomes float64 (the form JSON decoding produces). Events
// round-trip through JSON on export/import, so normalizing at ingestion is
// what keeps replay deterministic across that boundary.
//
// Values that are not JSON-shaped (structs, typed maps) are converted via an
// encoding/json round trip. Unmarshalable values (channels, funcs, cycles)
// are rejected.
func NormalizeValue(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string, bool, float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int8:
		return float64(val), nil
	case int16:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint:
		return float64(val), nil
	case uint8:
		return float64(val), nil
	case uint16:
		return float64(val), nil
	case uint32:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("normalize number %q: %w", val, err)
		}
		return f, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			norm, err := NormalizeValue(child)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = norm
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			norm, err := NormalizeValue(child)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = norm
		}
		return out, nil
	default:
		// Not JSON-shaped: round-trip through encoding/json.
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("normalize %T: %w", v, err)
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("normalize %T: %w", v, err)
		}
		return decoded, nil
	}
}
