package remote

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/procedurekernel/procedure"
	"github.com/tailored-agentic-units/procedurekernel/queue"
)

const serviceName = "procedurekernel.v1.ProcedureService"

// Service adapts a queue.ProcedureQueue to three Connect-RPC procedures:
// Submit, Cancel and Watch. It holds no state of its own beyond a reference
// to the queue and the registered factories are package-level, matching the
// queue's own "accept, don't own the work" posture.
type Service struct {
	queue *queue.ProcedureQueue
}

// NewService wraps q for RPC access.
func NewService(q *queue.ProcedureQueue) *Service {
	return &Service{queue: q}
}

// Submit decodes {"kind": string, "args": object} from req.Msg, runs the
// matching registered Factory as a Task's Execute hook, adds it to the
// queue, and returns {"id": string}.
func (s *Service) Submit(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	kind := req.Msg.Fields["kind"].GetStringValue()
	if kind == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("remote: submit request missing \"kind\""))
	}
	factory, ok := lookupFactory(kind)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("remote: no factory registered for kind %q", kind))
	}
	args := req.Msg.Fields["args"].GetStructValue().AsMap()

	var runErr error
	task := procedure.New(procedure.Config{
		Name: kind,
		Execute: func(ctx context.Context) {
			runErr = factory(ctx, args)
		},
	})
	task.AddObserver(procedure.ObserverHandle{
		DidExecute: func(t *procedure.Task) {
			if runErr != nil {
				t.Cancel(runErr)
			}
		},
	})

	if err := s.queue.Add(task); err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("remote: add task: %w", err))
	}

	resp, err := structpb.NewStruct(map[string]any{"id": task.Identity()})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(resp), nil
}

// Cancel decodes {"id": string} and cancels the matching Task, if any.
func (s *Service) Cancel(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[emptypb.Empty], error) {
	id := req.Msg.Fields["id"].GetStringValue()
	task, ok := s.queue.Lookup(id)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("remote: no task %q", id))
	}
	task.Cancel()
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// Watch decodes {"id": string} and streams lifecycle events for the
// matching Task until it finishes or the stream's context is cancelled.
// Each message is {"type": string, "task_id": string, "errors": [string]}.
func (s *Service) Watch(ctx context.Context, req *connect.Request[structpb.Struct], stream *connect.ServerStream[structpb.Struct]) error {
	id := req.Msg.Fields["id"].GetStringValue()
	task, ok := s.queue.Lookup(id)
	if !ok {
		return connect.NewError(connect.CodeNotFound, fmt.Errorf("remote: no task %q", id))
	}

	send := func(eventType string, errs []error) error {
		fields := map[string]any{"type": eventType, "task_id": id}
		if len(errs) > 0 {
			msgs := make([]any, len(errs))
			for i, e := range errs {
				msgs[i] = e.Error()
			}
			fields["errors"] = msgs
		}
		msg, err := structpb.NewStruct(fields)
		if err != nil {
			return err
		}
		return stream.Send(msg)
	}

	done := make(chan struct{})
	err := task.AddObserver(procedure.ObserverHandle{
		WillExecute: func(t *procedure.Task) { send("will_execute", nil) },
		DidExecute:  func(t *procedure.Task) { send("did_execute", nil) },
		WillCancel:  func(t *procedure.Task, errs []error) { send("will_cancel", errs) },
		DidCancel:   func(t *procedure.Task, errs []error) { send("did_cancel", errs) },
		DidFinish: func(t *procedure.Task, errs []error) {
			send("did_finish", errs)
			close(done)
		},
	})
	if err != nil {
		// Task is already past the point where observers attach; fall
		// back to a single snapshot event instead of failing the stream.
		if sendErr := send("did_finish", task.Errors()); sendErr != nil {
			return sendErr
		}
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewHandler mounts the service's three procedures onto a fresh
// http.ServeMux, the way a generated *connect.Handler constructor would,
// but built from connect.NewUnaryHandler/NewServerStreamHandler directly
// since there is no .proto-generated package to call into.
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()

	submitPath, submitHandler := connect.NewUnaryHandler(
		serviceName+"/Submit", svc.Submit, opts...,
	)
	mux.Handle(submitPath, submitHandler)

	cancelPath, cancelHandler := connect.NewUnaryHandler(
		serviceName+"/Cancel", svc.Cancel, opts...,
	)
	mux.Handle(cancelPath, cancelHandler)

	watchPath, watchHandler := connect.NewServerStreamHandler(
		serviceName+"/Watch", svc.Watch, opts...,
	)
	mux.Handle(watchPath, watchHandler)

	return "/" + serviceName + "/", mux
}

// defaultWatchTimeout is not referenced by Watch or NewHandler: Watch waits
// until the Task finishes or the stream's context ends, with no deadline of
// its own.
const defaultWatchTimeout = 30 * time.Minute
