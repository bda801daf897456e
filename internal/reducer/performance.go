package reducer

import (
	"github.com/omnibrowser/redix/internal/event"
	"github.com/omnibrowser/redix/internal/state"
)

// maxPerformanceSamples bounds the rolling sample window.
const maxPerformanceSamples = 20

// Performance folds the redix:performance:* family into
// state["performance"]: a rolling window of cpu/memory/battery samples, the
// latest reading, the active alert, and alert thresholds.
func Performance(st state.State, ev event.Event) state.State {
	p := ev.PayloadMap()

	switch ev.Type {
	case "redix:performance:sample":
		perf := copyMap(st.Sub("performance"))
		reading := map[string]any{
			"cpu":          num(p, "cpu"),
			"memoryBytes":  num(p, "memoryBytes"),
			"batteryLevel": num(p, "batteryLevel"),
			"at":           float64(ev.Timestamp),
		}

		prev, _ := perf["samples"].([]any)
		samples := make([]any, 0, len(prev)+1)
		samples = append(samples, prev...)
		samples = append(samples, reading)
		if len(samples) > maxPerformanceSamples {
			samples = samples[len(samples)-maxPerformanceSamples:]
		}

		perf["samples"] = samples
		perf["current"] = reading
		perf["lastSampleAt"] = float64(ev.Timestamp)
		return st.With("performance", perf)

	case "redix:performance:low":
		perf := copyMap(st.Sub("performance"))
		perf["alert"] = map[string]any{
			"metric": str(p, "metric"),
			"level":  str(p, "level"),
			"value":  num(p, "value"),
			"at":     float64(ev.Timestamp),
		}
		perf["alertCount"] = num(perf, "alertCount") + 1
		return st.With("performance", perf)

	case "redix:performance:thresholds":
		perf := copyMap(st.Sub("performance"))
		thresholds, _ := perf["thresholds"].(map[string]any)
		merged := copyMap(thresholds)
		for k, v := range p {
			merged[k] = v
		}
		perf["thresholds"] = merged
		return st.With("performance", perf)

	default:
		return st
	}
}
