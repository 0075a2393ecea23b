package observer

import (
	"time"

	"github.com/tailored-agentic-units/procedurekernel/procedure"
)

// Timeout returns an ObserverHandle that cancels its Task if Execute has not
// returned (DidExecute has not fired) d after WillExecute fires; time spent
// after Execute returns, before Finish, is not covered. ProcedureKit ships this as a stock
// observer (see TEACHER.txt / original_source for the naming compass);
// spec.md's distillation does not mention it, but any host queue running
// untrusted or flaky work needs a deadline, so it is carried over here.
func Timeout(d time.Duration) procedure.ObserverHandle {
	var timer *time.Timer
	return procedure.ObserverHandle{
		WillExecute: func(t *procedure.Task) {
			timer = time.AfterFunc(d, func() {
				t.Cancel(errTimedOut{duration: d})
			})
		},
		DidExecute: func(t *procedure.Task) {
			if timer != nil {
				timer.Stop()
			}
		},
	}
}

type errTimedOut struct {
	duration time.Duration
}

func (e errTimedOut) Error() string {
	return "procedure: task exceeded its " + e.duration.String() + " timeout"
}
