package state

import "reflect"

// DeepEqual reports true structural equality between two document values.
//
// Unlike a serialize-and-compare check, it is insensitive to map key order
// and distinguishes an absent key from a key holding nil (callers compare
// presence separately). Numbers compare by value across int and float
// representations, so a document rebuilt from a JSON round trip still
// compares equal to its in-memory original.
func DeepEqual(a, b any) bool {
	a, b = unwrap(a), unwrap(b)

	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, aval := range av {
			bval, present := bv[k]
			if !present || !DeepEqual(aval, bval) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !DeepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		// Non-document values (shouldn't appear after normalization).
		return reflect.DeepEqual(a, b)
	}
}

// unwrap erases the State named type so type assertions below see plain maps.
func unwrap(v any) any {
	if s, ok := v.(State); ok {
		return map[string]any(s)
	}
	return v
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
