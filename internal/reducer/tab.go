package reducer

import (
	"github.com/omnibrowser/redix/internal/event"
	"github.com/omnibrowser/redix/internal/state"
)

// Tab folds the redix:tab:* family into state["tabs"], a map keyed by tab
// ID. Lifecycle: opened -> active/idle -> suspended/resumed -> closed, with
// crash and memory-sample events on the side.
//
// Events referencing a tab ID that was never opened (or already closed) are
// ignored; the log keeps them, state does not change.
func Tab(st state.State, ev event.Event) state.State {
	p := ev.PayloadMap()
	tabID := str(p, "tabId")

	switch ev.Type {
	case "redix:tab:opened":
		if tabID == "" {
			return st
		}
		tabs := copyMap(st.Sub("tabs"))
		tabs[tabID] = map[string]any{
			"url":          str(p, "url"),
			"title":        str(p, "title"),
			"status":       "idle",
			"openedAt":     float64(ev.Timestamp),
			"lastActiveAt": float64(ev.Timestamp),
		}
		return st.With("tabs", tabs)

	case "redix:tab:activated":
		tab, ok := st.Sub("tabs")[tabID].(map[string]any)
		if !ok {
			return st
		}
		tabs := copyMap(st.Sub("tabs"))
		// Demote the previously active tab; only one tab is active.
		for id, v := range tabs {
			if id == tabID {
				continue
			}
			if doc, ok := v.(map[string]any); ok && str(doc, "status") == "active" {
				demoted := copyMap(doc)
				demoted["status"] = "idle"
				tabs[id] = demoted
			}
		}
		next := copyMap(tab)
		next["status"] = "active"
		next["lastActiveAt"] = float64(ev.Timestamp)
		tabs[tabID] = next
		return st.With("tabs", tabs)

	case "redix:tab:suspended":
		tab, ok := st.Sub("tabs")[tabID].(map[string]any)
		if !ok {
			return st
		}
		tabs := copyMap(st.Sub("tabs"))
		next := copyMap(tab)
		next["status"] = "suspended"
		next["suspendedAt"] = float64(ev.Timestamp)
		if reason := str(p, "reason"); reason != "" {
			next["suspendReason"] = reason
		}
		tabs[tabID] = next
		return st.With("tabs", tabs)

	case "redix:tab:resumed":
		tab, ok := st.Sub("tabs")[tabID].(map[string]any)
		if !ok {
			return st
		}
		tabs := copyMap(st.Sub("tabs"))
		next := copyMap(tab)
		next["status"] = "idle"
		next["resumedAt"] = float64(ev.Timestamp)
		delete(next, "suspendReason")
		tabs[tabID] = next
		return st.With("tabs", tabs)

	case "redix:tab:crashed":
		tab, ok := st.Sub("tabs")[tabID].(map[string]any)
		if !ok {
			return st
		}
		tabs := copyMap(st.Sub("tabs"))
		next := copyMap(tab)
		next["status"] = "crashed"
		next["crashedAt"] = float64(ev.Timestamp)
		tabs[tabID] = next
		return st.With("tabs", tabs)

	case "redix:tab:memory":
		tab, ok := st.Sub("tabs")[tabID].(map[string]any)
		if !ok {
			return st
		}
		tabs := copyMap(st.Sub("tabs"))
		next := copyMap(tab)
		next["memoryBytes"] = num(p, "bytes")
		next["lastSampleAt"] = float64(ev.Timestamp)
		tabs[tabID] = next
		return st.With("tabs", tabs)

	case "redix:tab:closed":
		if _, ok := st.Sub("tabs")[tabID]; !ok {
			return st
		}
		tabs := copyMap(st.Sub("tabs"))
		delete(tabs, tabID)
		return st.With("tabs", tabs)

	default:
		return st
	}
}
