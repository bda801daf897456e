package event

import (
	"github.com/omnibrowser/redix/internal/state"
)

// digestDomain separates event digests from state digests and any future
// hash domain.
const digestDomain = "redix/event/v1"

// Digest returns the domain-separated SHA-256 of the event's canonical JSON
// form, hex encoded. Two events with identical content digest identically
// regardless of payload map ordering; any field change produces a different
// digest. Used for export integrity traces and debugging.
func Digest(ev Event) (string, error) {
	canon, err := state.CanonicalJSON(ev)
	if err != nil {
		return "", err
	}
	return state.HashWithDomain(digestDomain, canon), nil
}
