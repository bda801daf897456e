package reducer

import (
	"github.com/omnibrowser/redix/internal/event"
	"github.com/omnibrowser/redix/internal/state"
)

// Tab caps per power mode. Low-RAM mode keeps only a handful of live tabs.
const (
	defaultMaxTabs = 20
	lowRAMMaxTabs  = 5
)

// Policy folds the redix:policy:* family into state["policy"], the resource
// policy document collaborators consult before suspending or rebalancing.
//
// Mode switches adjust derived limits: entering "low-ram" halves
// memoryCapBytes (remembering the base value) and drops the tab cap;
// leaving it restores both.
func Policy(st state.State, ev event.Event) state.State {
	p := ev.PayloadMap()

	switch ev.Type {
	case "redix:policy:update":
		policy := copyMap(st.Sub("policy"))
		for k, v := range p {
			policy[k] = v
		}
		return st.With("policy", policy)

	case "redix:policy:mode":
		mode := str(p, "mode")
		if mode == "" {
			return st
		}
		policy := copyMap(st.Sub("policy"))
		policy["mode"] = mode

		if mode == "low-ram" {
			policy["maxTabs"] = float64(lowRAMMaxTabs)
			if capBytes, ok := policy["memoryCapBytes"].(float64); ok {
				if _, saved := policy["baseMemoryCapBytes"]; !saved {
					policy["baseMemoryCapBytes"] = capBytes
				}
				policy["memoryCapBytes"] = num(policy, "baseMemoryCapBytes") / 2
			}
		} else {
			policy["maxTabs"] = float64(defaultMaxTabs)
			if base, ok := policy["baseMemoryCapBytes"].(float64); ok {
				policy["memoryCapBytes"] = base
				delete(policy, "baseMemoryCapBytes")
			}
		}
		return st.With("policy", policy)

	default:
		return st
	}
}
