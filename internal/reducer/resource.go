package reducer

import (
	"github.com/omnibrowser/redix/internal/event"
	"github.com/omnibrowser/redix/internal/state"
)

// Resource folds the redix:resource:* family into state["resources"]:
// per-name allocation records plus a running allocatedBytes total.
//
// Allocating an already-held name replaces the record and adjusts the total
// by the difference; releasing an unknown name is ignored.
func Resource(st state.State, ev event.Event) state.State {
	p := ev.PayloadMap()
	name := str(p, "name")

	switch ev.Type {
	case "redix:resource:allocated":
		if name == "" {
			return st
		}
		res := copyMap(st.Sub("resources"))
		allocs, _ := res["allocations"].(map[string]any)
		nextAllocs := copyMap(allocs)

		total := num(res, "allocatedBytes")
		if prev, ok := allocs[name].(map[string]any); ok {
			total -= num(prev, "bytes")
		}
		bytes := num(p, "bytes")
		nextAllocs[name] = map[string]any{
			"holder":      str(p, "holder"),
			"priority":    num(p, "priority"),
			"bytes":       bytes,
			"allocatedAt": float64(ev.Timestamp),
		}

		res["allocations"] = nextAllocs
		res["allocatedBytes"] = total + bytes
		return st.With("resources", res)

	case "redix:resource:released":
		allocs, _ := st.Sub("resources")["allocations"].(map[string]any)
		prev, ok := allocs[name].(map[string]any)
		if !ok {
			return st
		}
		res := copyMap(st.Sub("resources"))
		nextAllocs := copyMap(allocs)
		delete(nextAllocs, name)

		total := num(res, "allocatedBytes") - num(prev, "bytes")
		if total < 0 {
			total = 0
		}
		res["allocations"] = nextAllocs
		res["allocatedBytes"] = total
		return st.With("resources", res)

	default:
		return st
	}
}
