// Package schema validates event payloads against CUE constraints before
// they reach the log. Schemas are registered per event type, or per type
// family with a trailing ":*" wildcard; events with no registered schema
// pass unchecked.
package schema

import (
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"golang.org/x/text/unicode/norm"
)

// Error describes a payload that failed validation, with the CUE source
// position of the violated constraint when one is available.
type Error struct {
	EventType string
	Message   string
	Pos       token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: payload for %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.EventType, e.Message)
	}
	return fmt.Sprintf("payload for %s: %s", e.EventType, e.Message)
}

// Registry holds compiled payload schemas.
//
// Thread-safety: Register and Validate are safe for concurrent use, though
// the expected pattern is to register everything up front.
type Registry struct {
	mu       sync.RWMutex
	ctx      *cue.Context
	exact    map[string]cue.Value
	families map[string]cue.Value
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		ctx:      cuecontext.New(),
		exact:    make(map[string]cue.Value),
		families: make(map[string]cue.Value),
	}
}

// Register compiles source and binds it to pattern. A pattern ending in
// ":*" matches every event type sharing the prefix; otherwise the match is
// exact. Re-registering a pattern replaces its schema.
func (r *Registry) Register(pattern, source string) error {
	pattern = norm.NFC.String(pattern)
	compiled := r.ctx.CompileString(source)
	if err := compiled.Err(); err != nil {
		return formatCUEError(pattern, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		r.families[prefix] = compiled
		return nil
	}
	r.exact[pattern] = compiled
	return nil
}

// Validate checks payload against the schema registered for eventType. An
// exact registration wins over a family one; among families the longest
// matching prefix wins. No registration means no constraint: nil.
func (r *Registry) Validate(eventType string, payload map[string]any) error {
	eventType = norm.NFC.String(eventType)
	schema, ok := r.lookup(eventType)
	if !ok {
		return nil
	}

	if payload == nil {
		payload = map[string]any{}
	}
	encoded := r.ctx.Encode(payload)
	if err := encoded.Err(); err != nil {
		return formatCUEError(eventType, err)
	}

	unified := schema.Unify(encoded)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(eventType, err)
	}
	return nil
}

func (r *Registry) lookup(eventType string) (cue.Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if v, ok := r.exact[eventType]; ok {
		return v, true
	}
	var (
		best    cue.Value
		bestLen = -1
	)
	for prefix, v := range r.families {
		if strings.HasPrefix(eventType, prefix) && len(prefix) > bestLen {
			best = v
			bestLen = len(prefix)
		}
	}
	return best, bestLen >= 0
}

// formatCUEError reduces a CUE error list to a single Error carrying the
// first reported position.
func formatCUEError(eventType string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{EventType: eventType, Message: err.Error()}
	}
	first := errs[0]
	out := &Error{EventType: eventType, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		out.Pos = positions[0]
	}
	return out
}
