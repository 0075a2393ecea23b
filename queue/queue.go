package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tailored-agentic-units/procedurekernel/observability"
	"github.com/tailored-agentic-units/procedurekernel/procedure"
)

const (
	EventTaskAdded    observability.EventType = "queue.task.added"
	EventTaskStarted  observability.EventType = "queue.task.started"
	EventTaskFinished observability.EventType = "queue.task.finished"
)

// Config configures a ProcedureQueue.
type Config struct {
	// Name identifies the queue in observability events.
	Name string `json:"name,omitempty"`

	// Observer receives lifecycle events. Defaults to observability.NoOpObserver.
	// Not serializable; a JSON-loaded Config resolves this by name instead,
	// typically via observability.GetObserver.
	Observer observability.Observer `json:"-"`

	// PollInterval bounds how often the queue re-checks readiness for Tasks
	// that have not pushed an explicit OnReadyChange notification. Defaults
	// to 5ms.
	PollInterval time.Duration `json:"poll_interval,omitempty"`

	// MaxConcurrent caps how many Tasks may be StateStarted at once. Zero
	// means unbounded.
	MaxConcurrent int `json:"max_concurrent,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults for every field.
func DefaultConfig() Config {
	return Config{
		Observer:     observability.NoOpObserver{},
		PollInterval: 5 * time.Millisecond,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Name != "" {
		c.Name = source.Name
	}
	if source.Observer != nil {
		c.Observer = source.Observer
	}
	if source.PollInterval > 0 {
		c.PollInterval = source.PollInterval
	}
	if source.MaxConcurrent > 0 {
		c.MaxConcurrent = source.MaxConcurrent
	}
}

type entry struct {
	task    *procedure.Task
	started bool
}

// ProcedureQueue is a reference host queue: it accepts Tasks, drives each
// through WillEnqueue/PendingQueueStart immediately, and starts it once it
// reports ready, subject to MaxConcurrent. Grounded on orchestrate/hub.hub's
// single background goroutine plus context-cancel-driven shutdown.
type ProcedureQueue struct {
	name          string
	observer      observability.Observer
	pollInterval  time.Duration
	maxConcurrent int

	mu      sync.Mutex
	tasks   map[string]*entry
	running int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wakeup chan struct{}
}

// New starts a ProcedureQueue's background scheduling loop.
func New(ctx context.Context, cfg Config) *ProcedureQueue {
	merged := DefaultConfig()
	merged.Merge(&cfg)

	qctx, cancel := context.WithCancel(ctx)
	q := &ProcedureQueue{
		name:          merged.Name,
		observer:      merged.Observer,
		pollInterval:  merged.PollInterval,
		maxConcurrent: merged.MaxConcurrent,
		tasks:         make(map[string]*entry),
		ctx:           qctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		wakeup:        make(chan struct{}, 1),
	}
	go q.loop()
	return q
}

// Add hands task to the queue: it is advanced through WillEnqueue and
// PendingQueueStart synchronously, then scheduled once ready.
func (q *ProcedureQueue) Add(task *procedure.Task) error {
	if err := task.WillEnqueue(q); err != nil {
		return fmt.Errorf("queue: will-enqueue %s: %w", task.Identity(), err)
	}
	if err := task.PendingQueueStart(); err != nil {
		return fmt.Errorf("queue: pending-queue-start %s: %w", task.Identity(), err)
	}

	q.mu.Lock()
	q.tasks[task.Identity()] = &entry{task: task}
	q.mu.Unlock()

	q.observer.OnEvent(q.ctx, observability.Event{
		Type:      EventTaskAdded,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    q.name,
		Data:      map[string]any{"task_id": task.Identity()},
	})

	q.signal()
	return nil
}

// EnqueueProduced satisfies procedure.QueueHandle: a Task produced another
// Task via Produce, and the host queue takes ownership of it exactly as if
// Add had been called directly.
func (q *ProcedureQueue) EnqueueProduced(parent, op *procedure.Task) error {
	return q.Add(op)
}

// OnReadyChange, OnCancelledChange, OnExecutingChange and OnFinishedChange
// satisfy procedure.HostScheduleable: each just wakes the scheduling loop
// so it re-evaluates readiness promptly instead of waiting for the next
// poll tick.
func (q *ProcedureQueue) OnReadyChange()         { q.signal() }
func (q *ProcedureQueue) OnCancelledChange()     { q.signal() }
func (q *ProcedureQueue) OnExecutingChange(bool) { q.signal() }
func (q *ProcedureQueue) OnFinishedChange(bool)  { q.signal() }

func (q *ProcedureQueue) signal() {
	select {
	case q.wakeup <- struct{}{}:
	default:
	}
}

func (q *ProcedureQueue) loop() {
	defer close(q.done)
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		q.scheduleReady()
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
		case <-q.wakeup:
		}
	}
}

// scheduleReady starts every not-yet-started Task that reports ready,
// subject to MaxConcurrent, mirroring orchestrate/state.stateGraph.Execute's
// "iterate until no further progress is possible" shape generalized from a
// single linear graph walk to an unordered readiness scan.
func (q *ProcedureQueue) scheduleReady() {
	q.mu.Lock()
	var candidates []*entry
	for _, e := range q.tasks {
		if !e.started {
			candidates = append(candidates, e)
		}
	}
	q.mu.Unlock()

	for _, e := range candidates {
		q.mu.Lock()
		if q.maxConcurrent > 0 && q.running >= q.maxConcurrent {
			q.mu.Unlock()
			break
		}
		if e.started || !e.task.IsReady() {
			q.mu.Unlock()
			continue
		}
		e.started = true
		q.running++
		q.mu.Unlock()

		q.startTask(e.task)
	}
}

func (q *ProcedureQueue) startTask(task *procedure.Task) {
	q.observer.OnEvent(q.ctx, observability.Event{
		Type:      EventTaskStarted,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    q.name,
		Data:      map[string]any{"task_id": task.Identity()},
	})

	go func() {
		<-task.Done()

		q.mu.Lock()
		q.running--
		delete(q.tasks, task.Identity())
		q.mu.Unlock()

		q.observer.OnEvent(q.ctx, observability.Event{
			Type:      EventTaskFinished,
			Level:     observability.LevelInfo,
			Timestamp: time.Now(),
			Source:    q.name,
			Data:      map[string]any{"task_id": task.Identity(), "errors": len(task.Errors())},
		})

		q.signal()
	}()

	task.Start()
}

// Shutdown cancels the queue's scheduling loop and waits up to timeout for
// it to drain. In-flight Tasks are not cancelled; Shutdown only stops
// scheduling new ones.
func (q *ProcedureQueue) Shutdown(timeout time.Duration) error {
	q.cancel()
	select {
	case <-q.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("queue: shutdown timeout after %v", timeout)
	}
}

// Len reports how many Tasks are currently tracked (not yet finished).
func (q *ProcedureQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Lookup returns the Task registered under id, if it has not finished yet.
// Tasks are removed from the queue's bookkeeping as soon as they finish, so
// a caller racing a Task's completion may see ok == false even though the
// Task ran to completion moments earlier.
func (q *ProcedureQueue) Lookup(id string) (*procedure.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.tasks[id]
	if !ok {
		return nil, false
	}
	return e.task, true
}
