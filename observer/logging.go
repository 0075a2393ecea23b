package observer

import (
	"context"
	"time"

	"github.com/tailored-agentic-units/procedurekernel/observability"
	"github.com/tailored-agentic-units/procedurekernel/procedure"
)

const (
	EventWillExecute observability.EventType = "procedure.will_execute"
	EventDidExecute  observability.EventType = "procedure.did_execute"
	EventWillCancel  observability.EventType = "procedure.will_cancel"
	EventDidCancel   observability.EventType = "procedure.did_cancel"
	EventWillFinish  observability.EventType = "procedure.will_finish"
	EventDidFinish   observability.EventType = "procedure.did_finish"
)

// Logging returns an ObserverHandle that reports the WillExecute, DidExecute,
// WillCancel, DidCancel, WillFinish and DidFinish callbacks as
// observability.Events: one call per callback, task identity and any errors
// carried as attributes. DidAttach, WillAdd and DidAdd are not reported.
func Logging(source string, obs observability.Observer) procedure.ObserverHandle {
	emit := func(ctx context.Context, t observability.EventType, level observability.Level, task *procedure.Task, errs []error) {
		data := map[string]any{"task_id": task.Identity()}
		if len(errs) > 0 {
			msgs := make([]string, len(errs))
			for i, e := range errs {
				msgs[i] = e.Error()
			}
			data["errors"] = msgs
		}
		obs.OnEvent(ctx, observability.Event{
			Type:      t,
			Level:     level,
			Timestamp: time.Now(),
			Source:    source,
			Data:      data,
		})
	}

	return procedure.ObserverHandle{
		WillExecute: func(task *procedure.Task) {
			emit(context.Background(), EventWillExecute, observability.LevelVerbose, task, nil)
		},
		DidExecute: func(task *procedure.Task) {
			emit(context.Background(), EventDidExecute, observability.LevelVerbose, task, nil)
		},
		WillCancel: func(task *procedure.Task, errs []error) {
			emit(context.Background(), EventWillCancel, observability.LevelWarning, task, errs)
		},
		DidCancel: func(task *procedure.Task, errs []error) {
			emit(context.Background(), EventDidCancel, observability.LevelWarning, task, errs)
		},
		WillFinish: func(task *procedure.Task, errs []error) {
			level := observability.LevelInfo
			if len(errs) > 0 {
				level = observability.LevelError
			}
			emit(context.Background(), EventWillFinish, level, task, errs)
		},
		DidFinish: func(task *procedure.Task, errs []error) {
			level := observability.LevelInfo
			if len(errs) > 0 {
				level = observability.LevelError
			}
			emit(context.Background(), EventDidFinish, level, task, errs)
		},
	}
}
