// Package event defines the immutable records the Redix runtime appends to
// its log, the ID generators that stamp them, and their content digests.
package event

import (
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/omnibrowser/redix/internal/state"
)

// Event is a single logged occurrence. Once appended to the log an Event is
// immutable; total order is append order, not Timestamp (timestamps may tie
// within a millisecond).
//
// Reducer names which registered reducer should fold the event into state;
// events whose Reducer is empty or unregistered are logged without changing
// state. Source is a free-form label for the emitting collaborator.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Payload   any               `json:"payload,omitempty"`
	Timestamp int64             `json:"timestamp"`
	Reducer   string            `json:"reducer,omitempty"`
	Source    string            `json:"source,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Normalize returns a canonical copy of ev: identity strings are Unicode
// NFC-normalized, the payload is converted to canonical document form (see
// state.NormalizeValue), and the metadata map is copied so the caller cannot
// alias it afterwards. ID and Timestamp pass through untouched; the log
// assigns them at append time.
func Normalize(ev Event) (Event, error) {
	out := ev
	out.Type = norm.NFC.String(ev.Type)
	out.Reducer = norm.NFC.String(ev.Reducer)
	out.Source = norm.NFC.String(ev.Source)

	payload, err := state.NormalizeValue(ev.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("event %q payload: %w", out.Type, err)
	}
	out.Payload = payload

	if ev.Metadata != nil {
		meta := make(map[string]string, len(ev.Metadata))
		for k, v := range ev.Metadata {
			meta[norm.NFC.String(k)] = v
		}
		out.Metadata = meta
	}
	return out, nil
}

// PayloadMap returns the payload as a document map, or nil when the payload
// is absent or not an object. Reducers use this to read structured payloads
// without per-site assertions.
func (e Event) PayloadMap() map[string]any {
	m, _ := e.Payload.(map[string]any)
	return m
}
