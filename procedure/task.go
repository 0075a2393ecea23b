package procedure

import (
	"context"
	"fmt"
	"sync"

	"github.com/tailored-agentic-units/procedurekernel/internal/ids"
	"github.com/tailored-agentic-units/procedurekernel/procedure/condition"
	"github.com/tailored-agentic-units/procedurekernel/procedure/eventqueue"
	"github.com/tailored-agentic-units/procedurekernel/procedure/exclusivity"
)

// Dependency is the minimal contract a Task's dependency must satisfy. It is
// re-exported from condition so callers never need to import that package
// just to call AddDependency.
type Dependency = condition.Dependency

// Task is one unit of work carried through the seven-state lifecycle
// described in package doc.go. Its exported behavior is a close reading of
// ProcedureKit's Procedure type (see TEACHER.txt / original_source, used
// here only as a naming and shape compass); its internals are grounded on
// orchestrate/hub's single-goroutine dispatch loop and orchestrate/state's
// dependency-graph bookkeeping from the example corpus.
type Task struct {
	mu sync.Mutex

	id string

	state                        State
	isCancelled                  bool
	isAutomaticFinishingDisabled bool

	errs []error

	observers []ObserverHandle

	depOrder   []string
	deps       map[string]Dependency
	conditions []condition.Condition

	exclusivityCategories []string
	registry              *exclusivity.Registry

	eq              *eventqueue.Queue
	underlyingQueue *eventqueue.Queue

	enqueuedQueue QueueHandle

	evaluator     *condition.Evaluator
	evalCancel    func()
	pendingFinish *FinishInfo

	pendingAutomaticFinish *FinishInfo
	isHandlingFinish       bool
	finishedHandlingCancel bool
	gone                   bool

	execute func(ctx context.Context)
	hooks   TaskHooks

	ctx       context.Context
	ctxCancel context.CancelFunc

	done chan struct{}
}

// Config configures a new Task at construction time.
type Config struct {
	// Name is used only for logs and debug assertions.
	Name string `json:"name,omitempty"`

	// Execute is the work the Task performs once it reaches StateExecuting.
	// It must return once ctx is cancelled or once its work is done, and must
	// eventually cause Finish to be called (directly, or by returning from
	// Execute if AutomaticFinishing is left enabled, in which case the Task
	// finishes itself after Execute returns). Not serializable.
	Execute func(ctx context.Context) `json:"-"`

	// UnderlyingQueue, if set, is where Execute actually runs; the Task's own
	// Event Queue is paused for the duration (spec.md §4.7 step 5). Not
	// serializable.
	UnderlyingQueue *eventqueue.Queue `json:"-"`

	// Registry is the exclusivity registry used to serialize against other
	// Tasks sharing a category. Defaults to exclusivity.DefaultRegistry. Not
	// serializable.
	Registry *exclusivity.Registry `json:"-"`

	// Hooks are the Task subtype's own lifecycle overrides. Not serializable.
	Hooks TaskHooks `json:"-"`
}

// DefaultConfig returns a Config with sensible defaults for every field that
// has one; Execute defaults to a no-op so a zero-value Config still builds a
// legal, if useless, Task.
func DefaultConfig() Config {
	return Config{
		Execute:  func(context.Context) {},
		Registry: exclusivity.DefaultRegistry,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Name != "" {
		c.Name = source.Name
	}
	if source.Execute != nil {
		c.Execute = source.Execute
	}
	if source.UnderlyingQueue != nil {
		c.UnderlyingQueue = source.UnderlyingQueue
	}
	if source.Registry != nil {
		c.Registry = source.Registry
	}
	if source.Hooks.ProcedureWillFinish != nil || source.Hooks.ProcedureDidFinish != nil || source.Hooks.ProcedureDidCancel != nil {
		c.Hooks = source.Hooks
	}
}

// New constructs a Task in StateInitialized, ready to be configured with
// AddDependency / AddCondition / AddObserver before being handed to a host
// queue.
func New(cfg Config) *Task {
	merged := DefaultConfig()
	merged.Merge(&cfg)

	t := &Task{
		id:              ids.New(),
		deps:            make(map[string]Dependency),
		registry:        merged.Registry,
		eq:              eventqueue.New(eventqueue.Config{Name: merged.Name}),
		underlyingQueue: merged.UnderlyingQueue,
		execute:         merged.Execute,
		hooks:           merged.Hooks,
		done:            make(chan struct{}),
	}
	t.ctx, t.ctxCancel = context.WithCancel(context.Background())
	return t
}

// Identity returns the Task's opaque, stable identity (spec.md §3 glossary:
// "Identity").
func (t *Task) Identity() string { return t.id }

// State reports the Task's current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsCancelled reports whether Cancel has been called, regardless of whether
// the Task has finished processing that cancellation yet.
func (t *Task) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isCancelled
}

// IsExecuting reports whether the Task is currently in StateExecuting.
func (t *Task) IsExecuting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateExecuting
}

// IsFinished reports whether the Task has reached StateFinished. It also
// satisfies condition.Dependency.
func (t *Task) IsFinished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateFinished
}

// HasErrors reports whether the Task accumulated any errors over its
// lifetime. It satisfies condition.FailedDependency.
func (t *Task) HasErrors() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.errs) > 0
}

// Errors returns a snapshot of every error the Task has accumulated so far.
func (t *Task) Errors() []error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]error(nil), t.errs...)
}

// IsReady reports whether the Task is clear to start: it is in StatePending
// or later and either its evaluator, if any, has finished (whatever its
// outcome) or the Task is cancelled, in which case starting it lets it
// finish without running Execute.
// A host queue polls this (or registers for OnReadyChange via QueueHandle)
// to decide what to schedule next.
func (t *Task) IsReady() bool {
	t.mu.Lock()
	state := t.state
	evaluator := t.evaluator
	cancelled := t.isCancelled
	t.mu.Unlock()

	if state < StatePending {
		return false
	}
	if state >= StateStarted {
		return true
	}
	if cancelled {
		return true
	}
	if evaluator == nil {
		return true
	}
	select {
	case <-evaluator.Done():
		return true
	default:
		return false
	}
}

// Done returns a channel closed once the Task reaches StateFinished. It
// satisfies the notifiable interface the condition Evaluator uses to await
// dependencies without polling.
func (t *Task) Done() <-chan struct{} { return t.done }

// Gone reports whether the Task has been torn down independently of
// finishing normally. The reference implementation never tears a Task down
// early, so this always returns false; it exists to satisfy
// condition.ParentHandle and to give host queues an extension point.
func (t *Task) Gone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gone
}

// Dependencies returns the Task's direct dependencies as the minimal
// condition.Dependency view. It satisfies condition.ParentHandle.
func (t *Task) Dependencies() []condition.Dependency {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]condition.Dependency, 0, len(t.depOrder))
	for _, id := range t.depOrder {
		out = append(out, t.deps[id])
	}
	return out
}

// AddDependency registers op as a direct dependency: the Task will not be
// considered ready until op has finished. Dependencies are frozen once the
// Task reaches StateStarted (spec.md §4.6 "Dependency contract").
func (t *Task) AddDependency(op Dependency) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state >= StateStarted {
		assertLegal(illegal, t.state, t.state)
		return ErrDependencyFrozen
	}
	id := identityOf(op)
	if _, exists := t.deps[id]; exists {
		return nil
	}
	t.deps[id] = op
	t.depOrder = append(t.depOrder, id)
	return nil
}

// RemoveDependency undoes a prior AddDependency. Like AddDependency, it is
// only legal before StateStarted.
func (t *Task) RemoveDependency(op Dependency) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state >= StateStarted {
		assertLegal(illegal, t.state, t.state)
		return ErrDependencyFrozen
	}
	id := identityOf(op)
	if _, exists := t.deps[id]; !exists {
		return nil
	}
	delete(t.deps, id)
	for i, existing := range t.depOrder {
		if existing == id {
			t.depOrder = append(t.depOrder[:i], t.depOrder[i+1:]...)
			break
		}
	}
	return nil
}

// AddCondition attaches c to the Task. Conditions are frozen once the Task
// has been handed to a host queue (StateWillEnqueue or later): spec.md §4.6
// "Condition contract".
func (t *Task) AddCondition(c condition.Condition) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state >= StateWillEnqueue {
		assertLegal(illegal, t.state, t.state)
		return ErrConditionFrozen
	}
	t.conditions = append(t.conditions, c)
	return nil
}

// AddObserver attaches o to the Task's Observer Fabric. Observers may be
// added only before StatePending (spec.md §4.4: late attachment would miss
// the willExecute notification a host queue expects to have been delivered
// before scheduling).
func (t *Task) AddObserver(o ObserverHandle) error {
	t.mu.Lock()
	if t.state >= StatePending {
		t.mu.Unlock()
		assertLegal(illegal, t.state, t.state)
		return ErrObserverTooLate
	}
	t.observers = append(t.observers, o)
	t.mu.Unlock()

	if o.DidAttach != nil {
		t.eq.Dispatch(func() { o.DidAttach(t) })
	}
	return nil
}

// DisableAutomaticFinishing opts the Task out of its default behavior of
// calling Finish automatically once Execute returns, for Tasks
// whose Execute hands off to asynchronous work that will call Finish itself
// later (spec.md §7 "disableAutomaticFinishing").
func (t *Task) DisableAutomaticFinishing() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.isAutomaticFinishingDisabled = true
}

// WillEnqueue records the host queue that will own this Task and advances
// the state machine to StateWillEnqueue, freezing Conditions.
func (t *Task) WillEnqueue(q QueueHandle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := tryAdvance(&t.state, StateWillEnqueue)
	assertLegal(result, StateWillEnqueue, StateWillEnqueue)
	if result == illegal {
		return ErrIllegalState
	}
	t.enqueuedQueue = q
	return nil
}

// PendingQueueStart advances the Task to StatePending and, if it has any
// Conditions or dependencies, spins up its Condition Evaluator
// (spec.md §4.5). The evaluator's dependency mirror is a snapshot of
// Dependencies() taken when the evaluator, launched here, starts waiting;
// direct dependencies added after that are visible to later readers of
// Dependencies() but not retroactively to a running evaluation.
func (t *Task) PendingQueueStart() error {
	t.mu.Lock()
	result := tryAdvance(&t.state, StatePending)
	assertLegal(result, StatePending, StatePending)
	if result == illegal {
		t.mu.Unlock()
		return ErrIllegalState
	}
	needsEvaluator := len(t.conditions) > 0 || len(t.depOrder) > 0
	var evaluator *condition.Evaluator
	var evalCtx context.Context
	if needsEvaluator {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithCancel(context.Background())
		evaluator = condition.NewEvaluator(t, t.conditions)
		t.evaluator = evaluator
		t.evalCancel = cancel
	}
	t.mu.Unlock()

	if evaluator != nil {
		go evaluator.Run(evalCtx)
	}
	return nil
}

// identityOf extracts a stable map key from an arbitrary Dependency. Tasks
// expose Identity(); other host-supplied Dependency implementations are
// keyed by pointer identity via fmt, same as the teacher's agent.Registry
// does for values without a natural key.
func identityOf(op Dependency) string {
	type identifiable interface{ Identity() string }
	if i, ok := op.(identifiable); ok {
		return i.Identity()
	}
	return fmt.Sprintf("%p", op)
}
