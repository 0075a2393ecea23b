package procedure

// This file implements the Start/Cancel/Finish algorithms of spec.md §4.7.
// The guiding constraint throughout is that the Event Queue has exactly one
// worker goroutine (see eventqueue.Queue): every step that must wait for
// something else to finish does so by returning from its currently
// dispatched block and scheduling a continuation via DispatchNotify, rather
// than blocking the worker goroutine in place. The one deliberate exception
// is invoking Execute on an UnderlyingQueue, where pausing the worker is the
// whole point (spec.md §4.7 step 5).

// Start begins the Task's lifecycle. It is the host queue's responsibility
// to call Start only once a Task IsReady.
func (t *Task) Start() {
	t.mu.Lock()
	result := tryAdvance(&t.state, StateStarted)
	assertLegal(result, StateStarted, StateStarted)
	if result != advanced {
		t.mu.Unlock()
		return
	}
	pending := t.pendingFinish
	t.mu.Unlock()

	if pending != nil {
		t.finishWithInfo(*pending)
		return
	}

	if t.finishAutomaticallyOrStage(FinishAutomaticFromStart) {
		return
	}

	t.runMainPath()
}

// finishAutomaticallyOrStage resolves the race described in spec.md §4.7
// between a concurrent Cancel and the Start/main-path cancellation check: if
// the Task is cancelled and automatic finishing is enabled, either finish
// right away (when Cancel's own DidCancel fan-out has already drained) or
// stage the finish for cancel's completion continuation to pick up. Reports
// whether it took either action.
func (t *Task) finishAutomaticallyOrStage(source FinishSource) bool {
	t.mu.Lock()
	if !t.isCancelled || t.isAutomaticFinishingDisabled {
		t.mu.Unlock()
		return false
	}
	if t.finishedHandlingCancel {
		t.mu.Unlock()
		t.finishWithInfo(FinishInfo{Source: source})
		return true
	}
	t.pendingAutomaticFinish = &FinishInfo{Source: source}
	t.mu.Unlock()
	return true
}

func (t *Task) runMainPath() {
	t.eq.Dispatch(func() {
		group := t.dispatchObservers(func(o ObserverHandle) {
			if o.WillExecute != nil {
				o.WillExecute(t)
			}
		})
		t.eq.DispatchNotify(group, t.continueMainPathAfterWillExecute)
	})
}

func (t *Task) continueMainPathAfterWillExecute() {
	t.mu.Lock()
	if t.state > StateStarted {
		// Something else (an explicit Finish racing with Start, most likely)
		// already moved the Task past Started. Do not execute and do not
		// finish a second time.
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	if t.finishAutomaticallyOrStage(FinishAutomaticFromStart) {
		return
	}

	t.mu.Lock()
	result := tryAdvance(&t.state, StateExecuting)
	assertLegal(result, StateExecuting, StateExecuting)
	t.mu.Unlock()

	if t.enqueuedQueue != nil {
		t.enqueuedQueue.OnExecutingChange(true)
	}

	runExecute := func() { t.execute(t.ctx) }
	if t.underlyingQueue != nil {
		t.eq.DispatchSynchronizedWith(t.underlyingQueue, runExecute)
		t.eq.Dispatch(t.afterExecute)
		return
	}

	// Execute runs on its own goroutine, never directly on the Event Queue's
	// single worker: Execute routinely calls back into the Task (Produce,
	// Finish, Cancel), each of which dispatches further work onto the Event
	// Queue, so running Execute inline here would deadlock the moment it
	// made such a call and then waited on its result.
	go func() {
		runExecute()
		t.eq.Dispatch(t.afterExecute)
	}()
}

func (t *Task) afterExecute() {
	t.dispatchObservers(func(o ObserverHandle) {
		if o.DidExecute != nil {
			o.DidExecute(t)
		}
	})

	if t.enqueuedQueue != nil {
		t.enqueuedQueue.OnExecutingChange(false)
	}

	t.mu.Lock()
	disabled := t.isAutomaticFinishingDisabled
	t.mu.Unlock()
	if !disabled {
		t.Finish()
	}
}

// Cancel marks the Task cancelled, cooperatively: running Execute code is
// never interrupted directly. errs, if any, are appended to the Task's
// accumulated error list. Cancel is idempotent past the first successful
// call.
func (t *Task) Cancel(errs ...error) {
	t.mu.Lock()
	if t.isCancelled || t.state >= StateFinishing {
		t.mu.Unlock()
		return
	}
	t.isCancelled = true
	t.errs = append(t.errs, errs...)
	evaluator := t.evaluator
	evalCancel := t.evalCancel
	t.mu.Unlock()

	t.ctxCancel()
	if evaluator != nil {
		evaluator.Cancel()
	}
	if evalCancel != nil {
		evalCancel()
	}
	if t.enqueuedQueue != nil {
		t.enqueuedQueue.OnCancelledChange()
		t.enqueuedQueue.OnReadyChange()
	}

	snapshot := append([]error(nil), errs...)
	t.eq.Dispatch(func() {
		t.dispatchObservers(func(o ObserverHandle) {
			if o.WillCancel != nil {
				o.WillCancel(t, snapshot)
			}
		})
		if t.hooks.ProcedureDidCancel != nil {
			t.hooks.ProcedureDidCancel(snapshot)
		}
		group := t.dispatchObservers(func(o ObserverHandle) {
			if o.DidCancel != nil {
				o.DidCancel(t, snapshot)
			}
		})
		t.eq.DispatchNotify(group, t.markCancelHandled)
	})
}

func (t *Task) markCancelHandled() {
	t.mu.Lock()
	t.finishedHandlingCancel = true
	staged := t.pendingAutomaticFinish
	t.pendingAutomaticFinish = nil
	t.mu.Unlock()

	if staged != nil {
		t.finishWithInfo(*staged)
	}
}

// Finish marks the Task as done, with optional errors. Calling Finish
// before Start on a Task that has not been cancelled is a programmer error
// (spec.md §4.6) reported as ErrFinishTooEarly; calling it more than once,
// or after the Task has already started finishing, is a silent no-op.
func (t *Task) Finish(errs ...error) error {
	t.mu.Lock()
	if t.state < StateStarted {
		if t.isCancelled {
			t.pendingFinish = &FinishInfo{Errors: errs, Source: FinishExplicitCall}
			t.mu.Unlock()
			return nil
		}
		t.mu.Unlock()
		assertLegal(illegal, t.state, StateFinishing)
		return ErrFinishTooEarly
	}
	t.mu.Unlock()

	t.finishWithInfo(FinishInfo{Errors: errs, Source: FinishExplicitCall})
	return nil
}

// FinishAfter blocks until gate drains (every Produce call that named gate
// as its before argument has enqueued its operation on the host queue), then
// finishes the Task exactly as Finish does. This is how Execute code that
// disables automatic finishing and produces Tasks from another goroutine
// satisfies the ordering Produce's before parameter documents: pass the same
// PendingEvent to both calls. A nil gate makes this identical to Finish.
func (t *Task) FinishAfter(gate *PendingEvent, errs ...error) error {
	if gate != nil {
		gate.Wait()
	}
	return t.Finish(errs...)
}

// finishWithInfo is the single gatekeeper for the Finishing transition: it
// atomically checks and advances state under the Task's mutex so that a
// racing automatic finish (from the Start path or from Cancel's completion
// continuation) and an explicit Finish call can never both proceed.
func (t *Task) finishWithInfo(info FinishInfo) {
	t.mu.Lock()
	if t.isHandlingFinish || t.state >= StateFinishing {
		t.mu.Unlock()
		return
	}
	t.isHandlingFinish = true
	wasExecuting := t.state == StateExecuting
	result := tryAdvance(&t.state, StateFinishing)
	assertLegal(result, StateFinishing, StateFinishing)
	t.errs = append(t.errs, info.Errors...)
	snapshot := append([]error(nil), t.errs...)
	t.mu.Unlock()

	if wasExecuting && t.enqueuedQueue != nil {
		t.enqueuedQueue.OnExecutingChange(false)
	}

	t.eq.Dispatch(func() {
		if t.hooks.ProcedureWillFinish != nil {
			t.hooks.ProcedureWillFinish(snapshot)
		}
		group := t.dispatchObservers(func(o ObserverHandle) {
			if o.WillFinish != nil {
				o.WillFinish(t, snapshot)
			}
		})
		t.eq.DispatchNotify(group, func() { t.completeFinish(snapshot) })
	})
}

func (t *Task) completeFinish(snapshot []error) {
	t.mu.Lock()
	t.state = StateFinished
	categories := t.exclusivityCategories
	t.exclusivityCategories = nil
	t.mu.Unlock()

	if t.enqueuedQueue != nil {
		t.enqueuedQueue.OnFinishedChange(true)
	}
	if t.hooks.ProcedureDidFinish != nil {
		t.hooks.ProcedureDidFinish(snapshot)
	}
	t.registry.Unlock(categories)
	close(t.done)

	t.dispatchObservers(func(o ObserverHandle) {
		if o.DidFinish != nil {
			o.DidFinish(t, snapshot)
		}
	})
}

// RequestExclusivity asks the Task's registry to acquire every named
// category before invoking onAcquired. It satisfies condition.ParentHandle;
// the categories requested here are what completeFinish later releases.
func (t *Task) RequestExclusivity(categories []string, onAcquired func()) {
	t.mu.Lock()
	t.exclusivityCategories = append(t.exclusivityCategories, categories...)
	t.mu.Unlock()
	t.registry.RequestLock(categories, onAcquired)
}
