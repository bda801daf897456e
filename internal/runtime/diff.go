package runtime

import (
	"sort"

	"github.com/omnibrowser/redix/internal/state"
)

const (
	// MaxDiffEntries caps how many changed paths a single diff reports.
	// Traversal stops as soon as the cap is reached, so a sweeping state
	// change costs a bounded amount of work and memory.
	MaxDiffEntries = 50

	// MaxDiffDepth is how many map levels the diff descends before
	// reporting a changed subtree as a single whole-value entry.
	MaxDiffDepth = 2
)

// DiffEntry records one changed path between two states. BeforePresent and
// AfterPresent distinguish an absent key from a key holding nil, which the
// values alone cannot.
type DiffEntry struct {
	Path          string `json:"path"`
	Before        any    `json:"before,omitempty"`
	After         any    `json:"after,omitempty"`
	BeforePresent bool   `json:"beforePresent"`
	AfterPresent  bool   `json:"afterPresent"`
}

// Diff computes the structural delta from prev to next. Maps are walked
// key-by-key in sorted order down to MaxDiffDepth; arrays and deeper
// subtrees compare as whole values. Equal subtrees are skipped entirely,
// so an untouched branch contributes nothing.
func Diff(prev, next state.State) []DiffEntry {
	out := make([]DiffEntry, 0, 8)
	walkDiff(map[string]any(prev), map[string]any(next), "", 0, &out)
	return out
}

func walkDiff(prev, next map[string]any, prefix string, depth int, out *[]DiffEntry) {
	for _, k := range unionKeys(prev, next) {
		if len(*out) >= MaxDiffEntries {
			return
		}
		pv, pok := prev[k]
		nv, nok := next[k]
		path := joinPath(prefix, k)
		switch {
		case !pok:
			*out = append(*out, DiffEntry{Path: path, After: nv, AfterPresent: true})
		case !nok:
			*out = append(*out, DiffEntry{Path: path, Before: pv, BeforePresent: true})
		default:
			if state.DeepEqual(pv, nv) {
				continue
			}
			pm, pIsMap := asMap(pv)
			nm, nIsMap := asMap(nv)
			if pIsMap && nIsMap && depth < MaxDiffDepth {
				walkDiff(pm, nm, path, depth+1, out)
				continue
			}
			*out = append(*out, DiffEntry{Path: path, Before: pv, After: nv, BeforePresent: true, AfterPresent: true})
		}
	}
}

func unionKeys(a, b map[string]any) []string {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case state.State:
		return map[string]any(m), true
	default:
		return nil, false
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
