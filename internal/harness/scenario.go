package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario defines a deterministic conformance run: a sequence of events
// dispatched against a fresh runtime, then assertions over the resulting
// state, history, and diffs.
type Scenario struct {
	// Name uniquely identifies the scenario; golden files are keyed by it.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Events are dispatched in order. IDs and timestamps are assigned by
	// the harness runtime, deterministically.
	Events []EventStep `yaml:"events"`

	// Assertions validate the finished run.
	Assertions []Assertion `yaml:"assertions"`
}

// EventStep is one event to dispatch.
type EventStep struct {
	Type    string         `yaml:"type"`
	Reducer string         `yaml:"reducer,omitempty"`
	Source  string         `yaml:"source,omitempty"`
	Payload map[string]any `yaml:"payload,omitempty"`
}

// Assertion checks one property of the finished run.
type Assertion struct {
	// Type selects the check:
	//   - "final_state": the value at Path in the final state equals Expect
	//   - "state_at_index": the value at Path after event Index equals Expect
	//   - "history_count": the dispatch history holds exactly Count entries
	//   - "diff_contains": the diff of event EventIndex touches Path
	//   - "undo_result": after undoing the last event, Path equals Expect
	Type string `yaml:"type"`

	Path       string `yaml:"path,omitempty"`
	Expect     any    `yaml:"expect,omitempty"`
	Index      *int   `yaml:"index,omitempty"`
	EventIndex *int   `yaml:"event_index,omitempty"`
	Count      int    `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState   = "final_state"
	AssertStateAtIndex = "state_at_index"
	AssertHistoryCount = "history_count"
	AssertDiffContains = "diff_contains"
	AssertUndoResult   = "undo_result"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly instead of silently dropping assertions.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// LoadScenarioDir loads every .yaml/.yml scenario under dir, sorted by
// filename for stable run order.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks required fields up front so runs fail before
// dispatching anything.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}

	for i, step := range s.Events {
		if step.Type == "" {
			return fmt.Errorf("events[%d]: type is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertFinalState, AssertUndoResult:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for %s", index, a.Type)
		}
	case AssertStateAtIndex:
		if a.Index == nil {
			return fmt.Errorf("assertions[%d]: index is required for state_at_index", index)
		}
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for state_at_index", index)
		}
	case AssertHistoryCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertDiffContains:
		if a.EventIndex == nil {
			return fmt.Errorf("assertions[%d]: event_index is required for diff_contains", index)
		}
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for diff_contains", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
