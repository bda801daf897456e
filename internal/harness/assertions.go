package harness

import (
	"fmt"
	"strings"

	"github.com/omnibrowser/redix/internal/eventlog"
	"github.com/omnibrowser/redix/internal/reducer"
	"github.com/omnibrowser/redix/internal/runtime"
	"github.com/omnibrowser/redix/internal/state"
)

// AssertionError is returned when an assertion fails. It carries the trace
// so the failure message shows what actually ran.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s\n", e.Actual)
	fmt.Fprintf(&buf, "\ntrace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s (%s)\n", ev.Seq, ev.Type, ev.ID)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failures as
// messages. The runtime is only read, never mutated: undo assertions run
// against a scratch replay of the log.
func EvaluateAssertions(rt *runtime.Runtime, scenario *Scenario, result *Result) []string {
	var failures []string
	for i, a := range scenario.Assertions {
		if err := evaluateAssertion(rt, a, result); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluateAssertion(rt *runtime.Runtime, a Assertion, result *Result) error {
	switch a.Type {
	case AssertFinalState:
		return assertPathValue(result.FinalState, a, result.Trace, "final state")

	case AssertStateAtIndex:
		st, ok := rt.TimeTravel(runtime.TravelQuery{EventIndex: a.Index})
		if !ok {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("state reconstructable at index %d", *a.Index),
				Actual:   "index not resolvable",
				Trace:    result.Trace,
			}
		}
		return assertPathValue(st, a, result.Trace, fmt.Sprintf("state at index %d", *a.Index))

	case AssertHistoryCount:
		got := len(rt.History("", len(result.Trace)+1))
		if got != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d history entries", a.Count),
				Actual:   fmt.Sprintf("%d history entries", got),
				Trace:    result.Trace,
			}
		}
		return nil

	case AssertDiffContains:
		idx := *a.EventIndex
		if idx < 0 || idx >= len(result.Trace) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("event index %d within trace", idx),
				Actual:   fmt.Sprintf("trace has %d events", len(result.Trace)),
				Trace:    result.Trace,
			}
		}
		for _, p := range result.Trace[idx].DiffPaths {
			if p == a.Path {
				return nil
			}
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("diff of event %d touches %s", idx, a.Path),
			Actual:   fmt.Sprintf("diff paths: %v", result.Trace[idx].DiffPaths),
			Trace:    result.Trace,
		}

	case AssertUndoResult:
		st, err := undoResult(rt)
		if err != nil {
			return &AssertionError{
				Type:     a.Type,
				Expected: "undo to succeed",
				Actual:   err.Error(),
				Trace:    result.Trace,
			}
		}
		return assertPathValue(st, a, result.Trace, "state after undo")

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// undoResult replays the run's events into a scratch log and undoes the
// last one, leaving the runtime untouched for later assertions.
func undoResult(rt *runtime.Runtime) (state.State, error) {
	scratch := eventlog.New()
	reducer.RegisterDefaults(scratch)
	if err := scratch.Restore(rt.Log().Events()); err != nil {
		return nil, err
	}
	return scratch.Undo()
}

// assertPathValue resolves a dotted path in st and compares it against the
// assertion's expected value, normalizing the expectation first so YAML
// integers compare equal to reduced float64 values.
func assertPathValue(st state.State, a Assertion, trace []TraceEvent, where string) error {
	got, ok := st.GetPath(a.Path)
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s: %s = %v", where, a.Path, a.Expect),
			Actual:   "path not present",
			Trace:    trace,
		}
	}
	want, err := state.NormalizeValue(a.Expect)
	if err != nil {
		return fmt.Errorf("expect value for %s: %w", a.Path, err)
	}
	if !state.DeepEqual(got, want) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s: %s = %v", where, a.Path, want),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    trace,
		}
	}
	return nil
}
