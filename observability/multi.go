package observability

import "context"

// MultiObserver fans a Task's or ProcedureQueue's events out to several
// sinks at once, e.g. a human-readable SlogObserver for an operator's
// terminal alongside a second SlogObserver writing a JSON audit trail.
// Observers are fixed at construction; MultiObserver itself holds no
// mutable state once built.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver creates a MultiObserver that forwards every event to all
// of observers, in order. Nil entries are dropped so a caller can pass an
// optional observer without a branch at the call site.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	filtered := make([]Observer, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			filtered = append(filtered, obs)
		}
	}
	return &MultiObserver{observers: filtered}
}

// OnEvent delivers event to every wrapped observer, sequentially, on the
// calling goroutine. A slow or panicking observer therefore delays or
// breaks the rest of the fan-out; callers wanting isolation should wrap an
// observer in their own goroutine-dispatching Observer first.
func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(ctx, event)
	}
}
