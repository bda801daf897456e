package state

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sameMap(a, b map[string]any) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

func TestCloneIsIndependent(t *testing.T) {
	orig := State{
		"tabs": map[string]any{
			"t1": map[string]any{"status": "active"},
		},
		"count": float64(3),
	}

	clone := orig.Clone()
	clone["count"] = float64(99)
	clone.Sub("tabs")["t1"].(map[string]any)["status"] = "suspended"

	assert.Equal(t, float64(3), orig["count"])
	assert.Equal(t, "active", orig.Sub("tabs")["t1"].(map[string]any)["status"])
}

func TestWithSharesUntouchedSubtrees(t *testing.T) {
	tabs := map[string]any{"t1": map[string]any{"status": "active"}}
	orig := State{"tabs": tabs, "count": float64(1)}

	next := orig.With("count", float64(2))

	// The untouched sub-tree is the same map, not a copy.
	assert.True(t, sameMap(next.Sub("tabs"), tabs))
	assert.Equal(t, float64(2), next["count"])
	assert.Equal(t, float64(1), orig["count"])
}

func TestGetPath(t *testing.T) {
	s := State{
		"tabs": map[string]any{
			"t1": map[string]any{"memoryBytes": float64(1024)},
		},
	}

	tests := []struct {
		name   string
		path   string
		want   any
		wantOK bool
	}{
		{"nested hit", "tabs.t1.memoryBytes", float64(1024), true},
		{"intermediate map", "tabs.t1", map[string]any{"memoryBytes": float64(1024)}, true},
		{"missing leaf", "tabs.t1.cpu", nil, false},
		{"missing root", "windows", nil, false},
		{"through scalar", "tabs.t1.memoryBytes.x", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.GetPath(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"int to float64", 3, float64(3)},
		{"int64 to float64", int64(-7), float64(-7)},
		{"uint to float64", uint(12), float64(12)},
		{"float32 widened", float32(1.5), float64(1.5)},
		{"json.Number", json.Number("2.25"), float64(2.25)},
		{"string passthrough", "eco", "eco"},
		{"bool passthrough", true, true},
		{"nil passthrough", nil, nil},
		{
			"nested map",
			map[string]any{"n": 1, "inner": map[string]any{"m": int64(2)}},
			map[string]any{"n": float64(1), "inner": map[string]any{"m": float64(2)}},
		},
		{
			"slice",
			[]any{1, "a", nil},
			[]any{float64(1), "a", nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeValueStructRoundTrip(t *testing.T) {
	type sample struct {
		TabID string `json:"tabId"`
		Bytes int64  `json:"bytes"`
	}

	got, err := NormalizeValue(sample{TabID: "t1", Bytes: 2048})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"tabId": "t1", "bytes": float64(2048)}, got)
}

func TestNormalizeValueRejectsUnmarshalable(t *testing.T) {
	_, err := NormalizeValue(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
}

func TestDeepEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"nil both", nil, nil, true},
		{"nil vs value", nil, float64(0), false},
		{"numeric cross-type", int64(3), float64(3), true},
		{"numeric mismatch", float64(3), float64(3.5), false},
		{"string", "a", "a", true},
		{"string vs number", "3", float64(3), false},
		{
			"map key order irrelevant",
			map[string]any{"a": float64(1), "b": float64(2)},
			map[string]any{"b": float64(2), "a": float64(1)},
			true,
		},
		{
			"absent key vs nil value",
			map[string]any{"a": nil},
			map[string]any{},
			false,
		},
		{
			"nested difference",
			map[string]any{"x": map[string]any{"y": float64(1)}},
			map[string]any{"x": map[string]any{"y": float64(2)}},
			false,
		},
		{"arrays equal", []any{float64(1), "a"}, []any{float64(1), "a"}, true},
		{"arrays length", []any{float64(1)}, []any{float64(1), float64(2)}, false},
		{"state vs plain map", State{"a": float64(1)}, map[string]any{"a": float64(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeepEqual(tt.a, tt.b))
		})
	}
}

func TestDigestStableAcrossRepresentation(t *testing.T) {
	a := State{"count": int64(6), "mode": "eco"}
	b := State{"mode": "eco", "count": float64(6)}

	da, err := a.Digest()
	require.NoError(t, err)
	db, err := b.Digest()
	require.NoError(t, err)

	assert.Equal(t, da, db)

	c := State{"mode": "eco", "count": float64(7)}
	dc, err := c.Digest()
	require.NoError(t, err)
	assert.NotEqual(t, da, dc)
}

func TestDigestNilEqualsEmpty(t *testing.T) {
	var s State
	dn, err := s.Digest()
	require.NoError(t, err)
	de, err := Empty().Digest()
	require.NoError(t, err)
	assert.Equal(t, dn, de)
}
