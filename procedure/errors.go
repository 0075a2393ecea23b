package procedure

import "errors"

// Sentinel programmer errors. These indicate the Task's public contract was
// violated (spec: "ProgrammerError ... Abort in debug; undefined in
// release"). In release builds they are returned so callers retain the
// option of handling them instead of crashing; in debug builds (see
// debug_on.go) the same condition also panics before the error is returned.
var (
	ErrDependencyFrozen = errors.New("procedure: cannot modify dependencies after task has started")
	ErrConditionFrozen  = errors.New("procedure: cannot add conditions after task has been enqueued")
	ErrObserverTooLate  = errors.New("procedure: cannot add observer once task is pending or later")
	ErrFinishTooEarly   = errors.New("procedure: finish called before start on a task that is not cancelled")
	ErrIllegalState     = errors.New("procedure: illegal state transition")
)

// ErrNoQueue is returned by Produce when the Task has not been enqueued on
// any host queue (spec: "NoQueueError").
var ErrNoQueue = errors.New("procedure: task is not enqueued on any queue")
