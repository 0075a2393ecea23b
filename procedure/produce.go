package procedure

import "github.com/tailored-agentic-units/procedurekernel/procedure/eventqueue"

// PendingEvent lets a Task guarantee that a produced Task is enqueued on the
// host queue before some other in-flight event is allowed to complete
// (spec.md §3 glossary: "Pending Event"). Construct one with NewPendingEvent
// and pass it to Produce as the before argument.
type PendingEvent struct {
	Name  string
	group *eventqueue.CompletionGroup
}

// NewPendingEvent returns a PendingEvent identified by name, for diagnostics
// only.
func NewPendingEvent(name string) *PendingEvent {
	return &PendingEvent{Name: name, group: eventqueue.NewCompletionGroup()}
}

// Wait blocks until every Produce call that named e as its before argument
// has actually enqueued its operation on the host queue. Callers that
// disable automatic finishing and produce Tasks from outside Execute use
// this (see Task.FinishAfter) to honor Produce's happens-before guarantee
// without relying on Event Queue FIFO order, which only holds when the
// Produce call and the dependent event are dispatched from the same
// goroutine.
func (e *PendingEvent) Wait() error {
	e.group.Wait()
	return nil
}

// ProduceFuture resolves once a produced Task has actually been handed to
// the host queue.
type ProduceFuture struct {
	done chan struct{}
	err  error
}

func newProduceFuture() *ProduceFuture {
	return &ProduceFuture{done: make(chan struct{})}
}

func (f *ProduceFuture) complete(err error) {
	f.err = err
	close(f.done)
}

// Wait blocks until the produced Task has been enqueued (or enqueuing
// failed) and returns the outcome.
func (f *ProduceFuture) Wait() error {
	<-f.done
	return f.err
}

// Produce asks the Task's host queue to add op on this Task's behalf,
// running WillAdd/DidAdd observers around the call (spec.md §3 glossary:
// "Produce"). If before is non-nil, the host queue is guaranteed to receive
// op before before's own completion is allowed to fire. Produce fails with
// ErrNoQueue if the Task has not yet been handed to a host queue.
func (t *Task) Produce(op *Task, before *PendingEvent) (*ProduceFuture, error) {
	t.mu.Lock()
	q := t.enqueuedQueue
	state := t.state
	t.mu.Unlock()

	if state < StateWillEnqueue || q == nil {
		return nil, ErrNoQueue
	}

	future := newProduceFuture()
	if before != nil {
		before.group.Add(1)
	}

	t.eq.Dispatch(func() {
		t.dispatchObservers(func(o ObserverHandle) {
			if o.WillAdd != nil {
				o.WillAdd(t, op)
			}
		})
		err := q.EnqueueProduced(t, op)
		t.dispatchObservers(func(o ObserverHandle) {
			if o.DidAdd != nil {
				o.DidAdd(t, op)
			}
		})
		future.complete(err)
		if before != nil {
			before.group.Done()
		}
	})

	return future, nil
}
