package procedure

import "github.com/tailored-agentic-units/procedurekernel/procedure/eventqueue"

// ObserverHandle is the Observer Fabric's subscription unit (spec.md §4.4):
// a set of optional callbacks plus an optional queue affinity. Every
// callback field is optional; dispatchObservers skips nil ones. This mirrors
// the example corpus's function-field handler idiom (orchestrate/hub's
// MessageHandler) rather than a fat interface every observer would have to
// implement in full.
type ObserverHandle struct {
	DidAttach   func(t *Task)
	WillExecute func(t *Task)
	DidExecute  func(t *Task)
	WillCancel  func(t *Task, errs []error)
	DidCancel   func(t *Task, errs []error)
	WillAdd     func(t *Task, op *Task)
	DidAdd      func(t *Task, op *Task)
	WillFinish  func(t *Task, errs []error)
	DidFinish   func(t *Task, errs []error)

	// Queue pins this observer's callbacks to a specific Event Queue rather
	// than the owning Task's own one. Nil means "run on the Task's own Event
	// Queue", the common case.
	Queue *eventqueue.Queue
}

// TaskHooks lets a Task subtype (or a closure-based equivalent) observe its
// own lifecycle from the inside, distinct from the externally attached
// ObserverHandle list (spec.md §4.4 distinguishes subclass override points
// from attached observers).
type TaskHooks struct {
	ProcedureWillFinish func(errs []error)
	ProcedureDidFinish  func(errs []error)
	ProcedureDidCancel  func(errs []error)
}

// HostScheduleable is the change-notification surface a host queue can
// register to learn about a Task's readiness, cancellation, execution and
// completion without polling (spec.md §9 notes this as the Go-native
// replacement for ProcedureKit's KVO-based isReady/isExecuting/isFinished
// observation: an explicit interface instead of dynamic property
// observation, which Go has no equivalent of).
type HostScheduleable interface {
	OnReadyChange()
	OnCancelledChange()
	OnExecutingChange(executing bool)
	OnFinishedChange(finished bool)
}

// QueueHandle is the non-owning back-reference a Task holds to whatever host
// queue it was enqueued on (spec.md §4.7's "enqueued queue"). A host queue
// implements both halves: producing new work on a Task's behalf, and
// receiving its scheduling-relevant change notifications.
type QueueHandle interface {
	HostScheduleable

	// EnqueueProduced adds op to the same queue that owns parent, as part of
	// satisfying Produce (spec.md §4.6 "Produce").
	EnqueueProduced(parent *Task, op *Task) error
}

// dispatchObservers fans perObserver out across every attached observer,
// never blocking the calling goroutine: observers with no queue affinity (or
// affinity to this Task's own queue) run inline; observers pinned to another
// queue are dispatched there asynchronously. The returned CompletionGroup
// drains once every observer has run, so callers that must wait for the fan
// out use DispatchNotify against it rather than blocking here (spec.md §4.4:
// "dispatchObservers is called only from the Event Queue" — the non-blocking
// design is what keeps that rule from causing a deadlock when an observer's
// own queue is itself busy).
func (t *Task) dispatchObservers(perObserver func(ObserverHandle)) *eventqueue.CompletionGroup {
	group := eventqueue.NewCompletionGroup()

	t.mu.Lock()
	obs := append([]ObserverHandle(nil), t.observers...)
	t.mu.Unlock()

	if len(obs) == 0 {
		return group
	}

	group.Add(len(obs))
	for _, o := range obs {
		o := o
		if o.Queue == nil || o.Queue == t.eq {
			perObserver(o)
			group.Done()
			continue
		}
		o.Queue.Dispatch(func() {
			perObserver(o)
			group.Done()
		})
	}
	return group
}
