package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/omnibrowser/redix/internal/state"
)

// TraceSnapshot is the document pinned by a golden file: the ordered
// trace plus the full final state, serialized canonically. Digests are
// deliberately left out so golden files stay reviewable by hand.
type TraceSnapshot struct {
	Scenario   string       `json:"scenario"`
	Events     []TraceEvent `json:"events"`
	FinalState state.State  `json:"finalState"`
}

// RunWithGolden executes a scenario and compares its trace snapshot
// against testdata/golden/<scenario name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already-obtained result against the golden
// file for scenarioName, without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		Scenario:   scenarioName,
		Events:     result.Trace,
		FinalState: result.FinalState,
	}
	data, err := state.CanonicalJSON(snapshot)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
