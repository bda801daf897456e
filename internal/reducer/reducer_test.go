package reducer

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnibrowser/redix/internal/event"
	"github.com/omnibrowser/redix/internal/eventlog"
	"github.com/omnibrowser/redix/internal/state"
	"github.com/omnibrowser/redix/internal/testutil"
)

// sameRef reports whether two document values share a backing map.
func sameRef(a, b any) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

// ev builds a normalized-form event the way the log hands them to reducers.
func ev(id, typ string, ts int64, payload map[string]any) event.Event {
	return event.Event{ID: id, Type: typ, Timestamp: ts, Payload: payload}
}

func tabDoc(t *testing.T, st state.State, tabID string) map[string]any {
	t.Helper()
	doc, ok := st.Sub("tabs")[tabID].(map[string]any)
	require.True(t, ok, "tab %q missing", tabID)
	return doc
}

func TestTabLifecycle(t *testing.T) {
	st := state.Empty()

	st = Tab(st, ev("e1", "redix:tab:opened", 100, map[string]any{"tabId": "t1", "url": "https://a.example", "title": "A"}))
	st = Tab(st, ev("e2", "redix:tab:opened", 110, map[string]any{"tabId": "t2", "url": "https://b.example"}))

	assert.Equal(t, "idle", tabDoc(t, st, "t1")["status"])
	assert.Equal(t, float64(100), tabDoc(t, st, "t1")["openedAt"])

	st = Tab(st, ev("e3", "redix:tab:activated", 120, map[string]any{"tabId": "t1"}))
	assert.Equal(t, "active", tabDoc(t, st, "t1")["status"])
	assert.Equal(t, float64(120), tabDoc(t, st, "t1")["lastActiveAt"])

	// Activating t2 demotes t1.
	st = Tab(st, ev("e4", "redix:tab:activated", 130, map[string]any{"tabId": "t2"}))
	assert.Equal(t, "idle", tabDoc(t, st, "t1")["status"])
	assert.Equal(t, "active", tabDoc(t, st, "t2")["status"])

	st = Tab(st, ev("e5", "redix:tab:suspended", 140, map[string]any{"tabId": "t1", "reason": "memory-pressure"}))
	assert.Equal(t, "suspended", tabDoc(t, st, "t1")["status"])
	assert.Equal(t, "memory-pressure", tabDoc(t, st, "t1")["suspendReason"])
	assert.Equal(t, float64(140), tabDoc(t, st, "t1")["suspendedAt"])

	st = Tab(st, ev("e6", "redix:tab:resumed", 150, map[string]any{"tabId": "t1"}))
	assert.Equal(t, "idle", tabDoc(t, st, "t1")["status"])
	assert.NotContains(t, tabDoc(t, st, "t1"), "suspendReason")

	st = Tab(st, ev("e7", "redix:tab:memory", 160, map[string]any{"tabId": "t1", "bytes": float64(4096)}))
	assert.Equal(t, float64(4096), tabDoc(t, st, "t1")["memoryBytes"])

	st = Tab(st, ev("e8", "redix:tab:crashed", 170, map[string]any{"tabId": "t2"}))
	assert.Equal(t, "crashed", tabDoc(t, st, "t2")["status"])

	st = Tab(st, ev("e9", "redix:tab:closed", 180, map[string]any{"tabId": "t1"}))
	assert.NotContains(t, st.Sub("tabs"), "t1")
	assert.Contains(t, st.Sub("tabs"), "t2")
}

func TestTabIgnoresUnknownTabID(t *testing.T) {
	st := state.State{"tabs": map[string]any{}}

	for _, typ := range []string{
		"redix:tab:activated",
		"redix:tab:suspended",
		"redix:tab:resumed",
		"redix:tab:crashed",
		"redix:tab:memory",
		"redix:tab:closed",
	} {
		next := Tab(st, ev("e1", typ, 100, map[string]any{"tabId": "ghost"}))
		assert.True(t, sameRef(st, next), "%s should be a no-op", typ)
	}
}

func TestTabUnmatchedTypeReturnsSameReference(t *testing.T) {
	st := state.State{"tabs": map[string]any{"t1": map[string]any{"status": "idle"}}}
	next := Tab(st, ev("e1", "redix:policy:update", 100, nil))
	assert.True(t, sameRef(st, next))
}

func TestTabSharesUntouchedSiblings(t *testing.T) {
	policy := map[string]any{"mode": "eco"}
	otherTab := map[string]any{"status": "idle"}
	st := state.State{
		"policy": policy,
		"tabs":   map[string]any{"t1": otherTab},
	}

	next := Tab(st, ev("e1", "redix:tab:opened", 100, map[string]any{"tabId": "t2"}))

	// The policy sub-tree and the untouched tab doc are shared, not copied.
	assert.True(t, sameRef(next["policy"], policy))
	assert.True(t, sameRef(next.Sub("tabs")["t1"], otherTab))
	// Input state unchanged.
	assert.NotContains(t, st.Sub("tabs"), "t2")
}

func TestPerformanceSampleWindow(t *testing.T) {
	st := state.Empty()
	for i := 0; i < maxPerformanceSamples+5; i++ {
		st = Performance(st, ev("e", "redix:performance:sample", int64(100+i), map[string]any{
			"cpu":          float64(i),
			"memoryBytes":  float64(i * 1024),
			"batteryLevel": float64(100 - i),
		}))
	}

	perf := st.Sub("performance")
	samples := perf["samples"].([]any)
	assert.Len(t, samples, maxPerformanceSamples)

	// Oldest samples were trimmed; the window ends at the latest reading.
	first := samples[0].(map[string]any)
	assert.Equal(t, float64(5), first["cpu"])
	current := perf["current"].(map[string]any)
	assert.Equal(t, float64(maxPerformanceSamples+4), current["cpu"])
}

func TestPerformanceAlertAndThresholds(t *testing.T) {
	st := state.Empty()

	st = Performance(st, ev("e1", "redix:performance:low", 100, map[string]any{
		"metric": "battery", "level": "critical", "value": float64(5),
	}))
	st = Performance(st, ev("e2", "redix:performance:low", 110, map[string]any{
		"metric": "memory", "level": "warning", "value": float64(0.9),
	}))

	perf := st.Sub("performance")
	alert := perf["alert"].(map[string]any)
	assert.Equal(t, "memory", alert["metric"])
	assert.Equal(t, float64(2), perf["alertCount"])

	st = Performance(st, ev("e3", "redix:performance:thresholds", 120, map[string]any{"cpu": float64(0.8)}))
	st = Performance(st, ev("e4", "redix:performance:thresholds", 130, map[string]any{"memory": float64(0.75)}))

	thresholds := st.Sub("performance")["thresholds"].(map[string]any)
	assert.Equal(t, float64(0.8), thresholds["cpu"])
	assert.Equal(t, float64(0.75), thresholds["memory"])
}

func TestPolicyUpdateMerges(t *testing.T) {
	st := state.State{"policy": map[string]any{"mode": "default", "suspendAfterMs": float64(30000)}}

	next := Policy(st, ev("e1", "redix:policy:update", 100, map[string]any{"suspendAfterMs": float64(60000), "ecoScoreTarget": float64(80)}))

	policy := next.Sub("policy")
	assert.Equal(t, "default", policy["mode"])
	assert.Equal(t, float64(60000), policy["suspendAfterMs"])
	assert.Equal(t, float64(80), policy["ecoScoreTarget"])
}

func TestPolicyLowRAMModeHalvesAndRestores(t *testing.T) {
	st := state.State{"policy": map[string]any{"memoryCapBytes": float64(2 << 30)}}

	low := Policy(st, ev("e1", "redix:policy:mode", 100, map[string]any{"mode": "low-ram"}))
	policy := low.Sub("policy")
	assert.Equal(t, "low-ram", policy["mode"])
	assert.Equal(t, float64(lowRAMMaxTabs), policy["maxTabs"])
	assert.Equal(t, float64(1<<30), policy["memoryCapBytes"])
	assert.Equal(t, float64(2<<30), policy["baseMemoryCapBytes"])

	// Re-entering low-ram must not halve twice.
	again := Policy(low, ev("e2", "redix:policy:mode", 110, map[string]any{"mode": "low-ram"}))
	assert.Equal(t, float64(1<<30), again.Sub("policy")["memoryCapBytes"])

	restored := Policy(again, ev("e3", "redix:policy:mode", 120, map[string]any{"mode": "eco"}))
	policy = restored.Sub("policy")
	assert.Equal(t, "eco", policy["mode"])
	assert.Equal(t, float64(defaultMaxTabs), policy["maxTabs"])
	assert.Equal(t, float64(2<<30), policy["memoryCapBytes"])
	assert.NotContains(t, policy, "baseMemoryCapBytes")
}

func TestPolicyModeWithoutModeFieldIgnored(t *testing.T) {
	st := state.Empty()
	next := Policy(st, ev("e1", "redix:policy:mode", 100, map[string]any{}))
	assert.True(t, sameRef(st, next))
}

func TestOptimizationSuggestAndApply(t *testing.T) {
	st := state.Empty()

	st = Optimization(st, ev("sug-1", "redix:ai:suggested", 100, map[string]any{
		"kind": "suspend-idle-tabs", "detail": "3 tabs idle >10m", "ecoScore": float64(72),
	}))

	entry := st.Sub("aiOptimizations")["sug-1"].(map[string]any)
	assert.Equal(t, false, entry["applied"])
	assert.Equal(t, float64(72), entry["ecoScore"])

	st = Optimization(st, ev("e2", "redix:ai:applied", 200, map[string]any{"id": "sug-1"}))
	entry = st.Sub("aiOptimizations")["sug-1"].(map[string]any)
	assert.Equal(t, true, entry["applied"])
	assert.Equal(t, float64(200), entry["appliedAt"])
}

func TestOptimizationApplyUnknownIgnored(t *testing.T) {
	st := state.Empty()
	next := Optimization(st, ev("e1", "redix:ai:applied", 100, map[string]any{"id": "nope"}))
	assert.True(t, sameRef(st, next))
}

func TestResourceAllocationAccounting(t *testing.T) {
	st := state.Empty()

	st = Resource(st, ev("e1", "redix:resource:allocated", 100, map[string]any{
		"name": "renderer-pool", "holder": "tab-manager", "priority": float64(2), "bytes": float64(1024),
	}))
	st = Resource(st, ev("e2", "redix:resource:allocated", 110, map[string]any{
		"name": "gpu-cache", "holder": "compositor", "priority": float64(1), "bytes": float64(2048),
	}))

	res := st.Sub("resources")
	assert.Equal(t, float64(3072), res["allocatedBytes"])

	// Re-allocating a held name adjusts by the difference.
	st = Resource(st, ev("e3", "redix:resource:allocated", 120, map[string]any{
		"name": "gpu-cache", "holder": "compositor", "priority": float64(1), "bytes": float64(512),
	}))
	assert.Equal(t, float64(1536), st.Sub("resources")["allocatedBytes"])

	st = Resource(st, ev("e4", "redix:resource:released", 130, map[string]any{"name": "renderer-pool"}))
	res = st.Sub("resources")
	assert.Equal(t, float64(512), res["allocatedBytes"])
	assert.NotContains(t, res["allocations"].(map[string]any), "renderer-pool")
}

func TestResourceReleaseUnknownIgnored(t *testing.T) {
	st := state.Empty()
	next := Resource(st, ev("e1", "redix:resource:released", 100, map[string]any{"name": "ghost"}))
	assert.True(t, sameRef(st, next))
}

func TestRegisterDefaultsEndToEnd(t *testing.T) {
	l := eventlog.New(
		eventlog.WithClock(testutil.NewMillisClock(1000, 10).Now),
		eventlog.WithIDGenerator(event.NewSequenceGenerator("ev")),
	)
	RegisterDefaults(l)

	dispatch := func(typ, red string, payload map[string]any) {
		t.Helper()
		_, err := l.Append(event.Event{Type: typ, Reducer: red, Payload: payload})
		require.NoError(t, err)
	}

	dispatch("redix:tab:opened", TabReducer, map[string]any{"tabId": "t1", "url": "https://a.example"})
	dispatch("redix:policy:mode", PolicyReducer, map[string]any{"mode": "eco"})
	dispatch("redix:performance:sample", PerformanceReducer, map[string]any{"cpu": 0.4, "memoryBytes": 1 << 20, "batteryLevel": 88})
	dispatch("redix:ai:suggested", OptimizationReducer, map[string]any{"kind": "suspend-idle-tabs"})
	dispatch("redix:resource:allocated", ResourceReducer, map[string]any{"name": "renderer-pool", "bytes": 4096})

	st := l.State()
	assert.Contains(t, st.Sub("tabs"), "t1")
	assert.Equal(t, "eco", st.Sub("policy")["mode"])
	assert.Equal(t, float64(0.4), st.Sub("performance")["current"].(map[string]any)["cpu"])
	assert.Len(t, st.Sub("aiOptimizations"), 1)
	assert.Equal(t, float64(4096), st.Sub("resources")["allocatedBytes"])
}
