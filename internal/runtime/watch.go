package runtime

// Handler consumes a dispatched runtime event. Handlers run synchronously
// on the dispatching goroutine, after the event has been applied.
type Handler func(RuntimeEvent)

type listenerEntry struct {
	id int64
	fn Handler
}

// listenerRegistry tracks type-scoped and global handlers. Within each
// bucket, handlers fire in registration order; type-scoped handlers fire
// before global ones.
//
// Not self-locking: the Runtime's mutex guards all access.
type listenerRegistry struct {
	nextID int64
	typed  map[string][]listenerEntry
	global []listenerEntry
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{typed: make(map[string][]listenerEntry)}
}

func (reg *listenerRegistry) addTyped(eventType string, fn Handler) int64 {
	reg.nextID++
	reg.typed[eventType] = append(reg.typed[eventType], listenerEntry{id: reg.nextID, fn: fn})
	return reg.nextID
}

func (reg *listenerRegistry) addGlobal(fn Handler) int64 {
	reg.nextID++
	reg.global = append(reg.global, listenerEntry{id: reg.nextID, fn: fn})
	return reg.nextID
}

// remove drops the handler with the given id from the named bucket. An
// empty eventType names the global bucket. Removing an already-removed id
// is a no-op, which makes unsubscribe closures idempotent.
func (reg *listenerRegistry) remove(eventType string, id int64) {
	if eventType == "" {
		reg.global = removeEntry(reg.global, id)
		return
	}
	entries := removeEntry(reg.typed[eventType], id)
	if len(entries) == 0 {
		delete(reg.typed, eventType)
		return
	}
	reg.typed[eventType] = entries
}

func removeEntry(entries []listenerEntry, id int64) []listenerEntry {
	for i, e := range entries {
		if e.id == id {
			return append(entries[:i:i], entries[i+1:]...)
		}
	}
	return entries
}

// matching returns the handlers to notify for eventType: type-scoped first,
// then global, as a fresh slice safe to iterate after the lock is released.
func (reg *listenerRegistry) matching(eventType string) []listenerEntry {
	typed := reg.typed[eventType]
	out := make([]listenerEntry, 0, len(typed)+len(reg.global))
	out = append(out, typed...)
	out = append(out, reg.global...)
	return out
}

func (reg *listenerRegistry) reset() {
	reg.typed = make(map[string][]listenerEntry)
	reg.global = nil
}
