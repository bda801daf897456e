// Package harness executes YAML-defined conformance scenarios against a
// fresh runtime with deterministic IDs, timestamps, and storage, so two
// runs of the same scenario produce byte-identical traces. Golden files
// pin those traces; assertions check individual properties.
package harness

import (
	"context"
	"fmt"

	"github.com/omnibrowser/redix/internal/event"
	"github.com/omnibrowser/redix/internal/eventlog"
	"github.com/omnibrowser/redix/internal/persist"
	"github.com/omnibrowser/redix/internal/runtime"
	"github.com/omnibrowser/redix/internal/schema"
	"github.com/omnibrowser/redix/internal/state"
	"github.com/omnibrowser/redix/internal/testutil"
)

// TraceEvent records one dispatch for assertions and golden comparison.
// DiffPaths carries only the changed paths, not the values: the golden
// file pins the final state document in full, so per-event values would
// just duplicate it.
type TraceEvent struct {
	Seq       int      `json:"seq"`
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Reducer   string   `json:"reducer,omitempty"`
	Timestamp int64    `json:"timestamp"`
	DiffPaths []string `json:"diffPaths"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace lists the dispatched events in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds assertion failure messages; empty when Pass is true.
	Errors []string `json:"errors,omitempty"`

	// FinalState is the state document after the last event.
	FinalState state.State `json:"finalState"`

	// Digest is the canonical hash of FinalState.
	Digest string `json:"digest"`
}

// AddError records an assertion failure and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// Run executes scenario against a fresh runtime: memory-backed storage, a
// 10ms-step clock starting at 1000, sequential "ev-NNNNNN" IDs, the
// default reducers, and the built-in payload schemas. Dispatch failures
// (schema rejections included) abort the run with an error; assertion
// failures are collected on the result instead.
func Run(scenario *Scenario) (*Result, error) {
	schemas, err := schema.NewDefault()
	if err != nil {
		return nil, fmt.Errorf("builtin schemas: %w", err)
	}

	log := eventlog.New(
		eventlog.WithClock(testutil.NewMillisClock(1000, 10).Now),
		eventlog.WithIDGenerator(event.NewSequenceGenerator("ev")),
	)
	rt := runtime.New(
		runtime.WithLog(log),
		runtime.WithAdapter(persist.NewMemory()),
		runtime.WithValidator(schemas),
	)
	defer rt.Close()

	ctx := context.Background()
	result := &Result{Pass: true}
	for i, step := range scenario.Events {
		re, err := rt.Dispatch(ctx, event.Event{
			Type:    step.Type,
			Reducer: step.Reducer,
			Source:  step.Source,
			Payload: step.Payload,
		})
		if err != nil {
			return nil, fmt.Errorf("events[%d] (%s): %w", i, step.Type, err)
		}
		result.Trace = append(result.Trace, TraceEvent{
			Seq:       re.Seq,
			ID:        re.ID,
			Type:      re.Type,
			Reducer:   re.Reducer,
			Timestamp: re.Timestamp,
			DiffPaths: diffPaths(re.Diff),
		})
	}

	result.FinalState = rt.State()
	digest, err := result.FinalState.Digest()
	if err != nil {
		return nil, fmt.Errorf("digest final state: %w", err)
	}
	result.Digest = digest

	for _, msg := range EvaluateAssertions(rt, scenario, result) {
		result.AddError(msg)
	}
	return result, nil
}

func diffPaths(entries []runtime.DiffEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}
