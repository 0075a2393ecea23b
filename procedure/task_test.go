package procedure_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tailored-agentic-units/procedurekernel/procedure"
	"github.com/tailored-agentic-units/procedurekernel/procedure/condition"
	"github.com/tailored-agentic-units/procedurekernel/procedure/eventqueue"
)

func waitFor(t *testing.T, ch <-chan struct{}, timeout time.Duration, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

type fakeQueue struct {
	enqueued []*procedure.Task
}

func (f *fakeQueue) EnqueueProduced(parent, op *procedure.Task) error {
	f.enqueued = append(f.enqueued, op)
	return nil
}
func (f *fakeQueue) OnReadyChange()         {}
func (f *fakeQueue) OnCancelledChange()     {}
func (f *fakeQueue) OnExecutingChange(bool) {}
func (f *fakeQueue) OnFinishedChange(bool)  {}

func runToFinish(t *testing.T, task *procedure.Task) {
	t.Helper()
	if err := task.WillEnqueue(&fakeQueue{}); err != nil {
		t.Fatalf("WillEnqueue: %v", err)
	}
	if err := task.PendingQueueStart(); err != nil {
		t.Fatalf("PendingQueueStart: %v", err)
	}
	// Start is only to be called once the Task reports ready, as a host
	// queue does; a Task with conditions is not ready until they resolve.
	deadline := time.Now().Add(time.Second)
	for !task.IsReady() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	task.Start()
	waitFor(t, task.Done(), time.Second, "task to finish")
}

func TestTask_HappyPathFinishesAutomatically(t *testing.T) {
	var ran bool
	task := procedure.New(procedure.Config{
		Name: "happy",
		Execute: func(ctx context.Context) {
			ran = true
		},
	})
	runToFinish(t, task)

	if !ran {
		t.Error("expected Execute to run")
	}
	if task.State() != procedure.StateFinished {
		t.Errorf("state = %v, want Finished", task.State())
	}
	if task.HasErrors() {
		t.Errorf("unexpected errors: %v", task.Errors())
	}
}

func TestTask_CancelBeforeStartSkipsExecute(t *testing.T) {
	var ran bool
	task := procedure.New(procedure.Config{
		Execute: func(ctx context.Context) { ran = true },
	})
	if err := task.WillEnqueue(&fakeQueue{}); err != nil {
		t.Fatalf("WillEnqueue: %v", err)
	}
	if err := task.PendingQueueStart(); err != nil {
		t.Fatalf("PendingQueueStart: %v", err)
	}

	boom := errors.New("boom")
	task.Cancel(boom)
	task.Start()

	waitFor(t, task.Done(), time.Second, "task to finish")
	if ran {
		t.Error("Execute should not have run on a pre-cancelled task")
	}
	if task.State() != procedure.StateFinished {
		t.Errorf("state = %v, want Finished", task.State())
	}
	found := false
	for _, err := range task.Errors() {
		if errors.Is(err, boom) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected accumulated errors to include %v, got %v", boom, task.Errors())
	}
}

func TestTask_ExecuteRespectsContextCancellation(t *testing.T) {
	started := make(chan struct{})
	observedDone := make(chan bool, 1)
	task := procedure.New(procedure.Config{
		Execute: func(ctx context.Context) {
			close(started)
			select {
			case <-ctx.Done():
				observedDone <- true
			case <-time.After(time.Second):
				observedDone <- false
			}
		},
	})
	task.DisableAutomaticFinishing()

	if err := task.WillEnqueue(&fakeQueue{}); err != nil {
		t.Fatalf("WillEnqueue: %v", err)
	}
	if err := task.PendingQueueStart(); err != nil {
		t.Fatalf("PendingQueueStart: %v", err)
	}
	task.Start()

	waitFor(t, started, time.Second, "execute to start")
	task.Cancel()

	select {
	case ok := <-observedDone:
		if !ok {
			t.Error("execute did not observe context cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for execute to observe cancellation")
	}

	task.Finish()
	waitFor(t, task.Done(), time.Second, "task to finish")
}

func TestTask_ConditionFailureCancelsBeforeExecute(t *testing.T) {
	var ran bool
	task := procedure.New(procedure.Config{
		Execute: func(ctx context.Context) { ran = true },
	})
	if err := task.AddCondition(condition.NewBlock(func(ctx context.Context) (bool, error) {
		return false, nil
	})); err != nil {
		t.Fatalf("AddCondition: %v", err)
	}

	runToFinish(t, task)

	if ran {
		t.Error("Execute should not run when a condition fails")
	}
	if !task.IsCancelled() {
		t.Error("expected task to be cancelled by failed condition")
	}
}

func TestTask_ConditionErrorRecordsError(t *testing.T) {
	boom := errors.New("condition exploded")
	task := procedure.New(procedure.Config{
		Execute: func(ctx context.Context) {},
	})
	if err := task.AddCondition(condition.NewBlock(func(ctx context.Context) (bool, error) {
		return false, boom
	})); err != nil {
		t.Fatalf("AddCondition: %v", err)
	}

	runToFinish(t, task)

	found := false
	for _, err := range task.Errors() {
		if errors.Is(err, boom) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %v among task errors, got %v", boom, task.Errors())
	}
}

func TestTask_DependencyGatesExecution(t *testing.T) {
	var order []string
	dep := procedure.New(procedure.Config{
		Execute: func(ctx context.Context) { order = append(order, "dep") },
	})
	main := procedure.New(procedure.Config{
		Execute: func(ctx context.Context) { order = append(order, "main") },
	})
	if err := main.AddDependency(dep); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}

	if err := main.WillEnqueue(&fakeQueue{}); err != nil {
		t.Fatalf("WillEnqueue: %v", err)
	}
	if err := main.PendingQueueStart(); err != nil {
		t.Fatalf("PendingQueueStart: %v", err)
	}

	if main.IsReady() {
		t.Error("main should not be ready before its dependency finishes")
	}

	runToFinish(t, dep)
	waitFor(t, dep.Done(), time.Second, "dependency to finish")

	deadline := time.Now().Add(time.Second)
	for !main.IsReady() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !main.IsReady() {
		t.Fatal("main never became ready after its dependency finished")
	}

	main.Start()
	waitFor(t, main.Done(), time.Second, "main to finish")

	if len(order) != 2 || order[0] != "dep" || order[1] != "main" {
		t.Errorf("unexpected execution order: %v", order)
	}
}

func TestTask_ObserverFabricFiresInOrder(t *testing.T) {
	var events []string
	didFinish := make(chan struct{})
	task := procedure.New(procedure.Config{
		Execute: func(ctx context.Context) { events = append(events, "execute") },
	})
	if err := task.AddObserver(procedure.ObserverHandle{
		WillExecute: func(*procedure.Task) { events = append(events, "willExecute") },
		DidExecute:  func(*procedure.Task) { events = append(events, "didExecute") },
		WillFinish:  func(*procedure.Task, []error) { events = append(events, "willFinish") },
		DidFinish: func(*procedure.Task, []error) {
			events = append(events, "didFinish")
			close(didFinish)
		},
	}); err != nil {
		t.Fatalf("AddObserver: %v", err)
	}

	runToFinish(t, task)
	// Done closes when the Task reaches StateFinished, before DidFinish
	// observers run, so wait for DidFinish itself before reading events.
	waitFor(t, didFinish, time.Second, "DidFinish observer")

	want := []string{"willExecute", "execute", "didExecute", "willFinish", "didFinish"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q (full: %v)", i, events[i], want[i], events)
		}
	}
}

// slowQueue delays EnqueueProduced to make the happens-before guarantee
// between Produce and a gated FinishAfter call observable: without it, a
// FIFO-ordering accident on the Event Queue could make the test pass even
// if FinishAfter never actually waited on the gate.
type slowQueue struct {
	mu       sync.Mutex
	delay    time.Duration
	enqueued []*procedure.Task
}

func (q *slowQueue) EnqueueProduced(parent, op *procedure.Task) error {
	time.Sleep(q.delay)
	q.mu.Lock()
	q.enqueued = append(q.enqueued, op)
	q.mu.Unlock()
	return nil
}
func (q *slowQueue) OnReadyChange()         {}
func (q *slowQueue) OnCancelledChange()     {}
func (q *slowQueue) OnExecutingChange(bool) {}
func (q *slowQueue) OnFinishedChange(bool)  {}

func (q *slowQueue) snapshot() []*procedure.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*procedure.Task(nil), q.enqueued...)
}

func TestTask_FinishAfterWaitsForGatedProduce(t *testing.T) {
	host := &slowQueue{delay: 50 * time.Millisecond}
	child := procedure.New(procedure.Config{Execute: func(context.Context) {}})

	var parent *procedure.Task
	gate := procedure.NewPendingEvent("child-produced")
	parent = procedure.New(procedure.Config{
		Execute: func(ctx context.Context) {
			if _, err := parent.Produce(child, gate); err != nil {
				t.Errorf("Produce: %v", err)
			}
			// Hand off to a goroutine outside Execute, exactly the case
			// FinishAfter exists for: automatic finishing is disabled, so
			// nothing else will call Finish once Execute returns.
			go func() {
				if err := parent.FinishAfter(gate); err != nil {
					t.Errorf("FinishAfter: %v", err)
				}
			}()
		},
	})
	parent.DisableAutomaticFinishing()

	if err := parent.WillEnqueue(host); err != nil {
		t.Fatalf("WillEnqueue: %v", err)
	}
	if err := parent.PendingQueueStart(); err != nil {
		t.Fatalf("PendingQueueStart: %v", err)
	}
	parent.Start()
	waitFor(t, parent.Done(), time.Second, "parent to finish")

	enqueued := host.snapshot()
	if len(enqueued) != 1 || enqueued[0] != child {
		t.Fatalf("FinishAfter returned before Produce's enqueue completed: host.enqueued = %v", enqueued)
	}
}

func TestTask_ProduceAddsToHostQueue(t *testing.T) {
	host := &fakeQueue{}
	child := procedure.New(procedure.Config{Execute: func(context.Context) {}})

	var parent *procedure.Task
	var produceErr error
	parent = procedure.New(procedure.Config{
		Execute: func(ctx context.Context) {
			future, err := parent.Produce(child, nil)
			if err != nil {
				produceErr = err
				return
			}
			produceErr = future.Wait()
		},
	})

	if err := parent.WillEnqueue(host); err != nil {
		t.Fatalf("WillEnqueue: %v", err)
	}
	if err := parent.PendingQueueStart(); err != nil {
		t.Fatalf("PendingQueueStart: %v", err)
	}
	parent.Start()
	waitFor(t, parent.Done(), time.Second, "parent to finish")

	if produceErr != nil {
		t.Fatalf("Produce failed: %v", produceErr)
	}
	if len(host.enqueued) != 1 || host.enqueued[0] != child {
		t.Errorf("host.enqueued = %v, want [child]", host.enqueued)
	}
}

func TestTask_UnderlyingQueueSerializesExecute(t *testing.T) {
	underlying := eventqueue.New(eventqueue.Config{Name: "shared-underlying"})
	defer underlying.Close()

	var mu sync.Mutex
	var active int
	var overlapped bool

	makeTask := func() *procedure.Task {
		return procedure.New(procedure.Config{
			UnderlyingQueue: underlying,
			Execute: func(ctx context.Context) {
				mu.Lock()
				active++
				if active > 1 {
					overlapped = true
				}
				mu.Unlock()

				time.Sleep(20 * time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
			},
		})
	}

	a := makeTask()
	b := makeTask()

	if err := a.WillEnqueue(&fakeQueue{}); err != nil {
		t.Fatalf("WillEnqueue(a): %v", err)
	}
	if err := a.PendingQueueStart(); err != nil {
		t.Fatalf("PendingQueueStart(a): %v", err)
	}
	if err := b.WillEnqueue(&fakeQueue{}); err != nil {
		t.Fatalf("WillEnqueue(b): %v", err)
	}
	if err := b.PendingQueueStart(); err != nil {
		t.Fatalf("PendingQueueStart(b): %v", err)
	}

	a.Start()
	b.Start()

	waitFor(t, a.Done(), time.Second, "a to finish")
	waitFor(t, b.Done(), time.Second, "b to finish")

	if overlapped {
		t.Error("Execute ran concurrently for two Tasks sharing an UnderlyingQueue")
	}
}

func TestConfig_MergePreservesDefaultsForZeroFields(t *testing.T) {
	cfg := procedure.DefaultConfig()
	if cfg.Execute == nil {
		t.Fatal("DefaultConfig should set a non-nil Execute")
	}
	if cfg.Registry == nil {
		t.Fatal("DefaultConfig should set a non-nil Registry")
	}

	cfg.Merge(&procedure.Config{Name: "overridden"})
	if cfg.Name != "overridden" {
		t.Errorf("Name = %q, want %q", cfg.Name, "overridden")
	}
	if cfg.Execute == nil {
		t.Error("Merge with a nil Execute should not clear the default")
	}
}
