package observability

import "context"

// NoOpObserver discards every event at zero cost. It is queue.Config's
// default Observer, so a ProcedureQueue built without one does no logging
// work at all rather than logging to a discarded destination.
type NoOpObserver struct{}

// OnEvent does nothing.
func (NoOpObserver) OnEvent(ctx context.Context, event Event) {}
