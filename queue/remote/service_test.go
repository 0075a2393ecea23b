package remote_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/procedurekernel/queue"
	"github.com/tailored-agentic-units/procedurekernel/queue/remote"
)

func TestService_SubmitRunsRegisteredFactory(t *testing.T) {
	ran := make(chan struct{})
	if err := remote.RegisterFactory("remote-test-echo", func(ctx context.Context, args map[string]any) error {
		close(ran)
		return nil
	}); err != nil {
		t.Fatalf("RegisterFactory: %v", err)
	}

	q := queue.New(context.Background(), queue.Config{Name: "remote-test"})
	defer q.Shutdown(time.Second)

	svc := remote.NewService(q)
	_, handler := remote.NewHandler(svc)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	client := connect.NewClient[structpb.Struct, structpb.Struct](
		http.DefaultClient, srv.URL+"/procedurekernel.v1.ProcedureService/Submit",
	)

	req, err := structpb.NewStruct(map[string]any{"kind": "remote-test-echo"})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}

	resp, err := client.CallUnary(context.Background(), connect.NewRequest(req))
	if err != nil {
		t.Fatalf("CallUnary: %v", err)
	}
	if resp.Msg.Fields["id"].GetStringValue() == "" {
		t.Fatal("response missing task id")
	}

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("factory never ran")
	}
}

func TestService_SubmitUnknownKindFails(t *testing.T) {
	q := queue.New(context.Background(), queue.Config{Name: "remote-test"})
	defer q.Shutdown(time.Second)

	svc := remote.NewService(q)
	_, handler := remote.NewHandler(svc)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	client := connect.NewClient[structpb.Struct, structpb.Struct](
		http.DefaultClient, srv.URL+"/procedurekernel.v1.ProcedureService/Submit",
	)

	req, _ := structpb.NewStruct(map[string]any{"kind": "does-not-exist"})
	_, err := client.CallUnary(context.Background(), connect.NewRequest(req))
	if err == nil {
		t.Fatal("expected error for unregistered kind")
	}
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("CodeOf(err) = %v, want CodeNotFound", connect.CodeOf(err))
	}
}
