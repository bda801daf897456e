package reducer

import (
	"github.com/omnibrowser/redix/internal/event"
	"github.com/omnibrowser/redix/internal/state"
)

// Optimization folds the redix:ai:* family into state["aiOptimizations"],
// a map of suggestion records keyed by the suggesting event's ID.
//
// A suggestion arrives with applied=false; a later redix:ai:applied event
// referencing the suggestion's key flips it and records when. Applying an
// unknown suggestion is ignored.
func Optimization(st state.State, ev event.Event) state.State {
	p := ev.PayloadMap()

	switch ev.Type {
	case "redix:ai:suggested":
		opts := copyMap(st.Sub("aiOptimizations"))
		opts[ev.ID] = map[string]any{
			"kind":        str(p, "kind"),
			"detail":      str(p, "detail"),
			"ecoScore":    num(p, "ecoScore"),
			"applied":     false,
			"suggestedAt": float64(ev.Timestamp),
		}
		return st.With("aiOptimizations", opts)

	case "redix:ai:applied":
		id := str(p, "id")
		entry, ok := st.Sub("aiOptimizations")[id].(map[string]any)
		if !ok {
			return st
		}
		opts := copyMap(st.Sub("aiOptimizations"))
		next := copyMap(entry)
		next["applied"] = true
		next["appliedAt"] = float64(ev.Timestamp)
		opts[id] = next
		return st.With("aiOptimizations", opts)

	default:
		return st
	}
}
