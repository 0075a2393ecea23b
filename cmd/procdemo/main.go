// Command procdemo runs a small chain of Tasks through a ProcedureQueue and
// prints the lifecycle events as they happen, adapted from cmd/kernel's
// flag-driven single-run CLI shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/tailored-agentic-units/procedurekernel/observability"
	"github.com/tailored-agentic-units/procedurekernel/observer"
	"github.com/tailored-agentic-units/procedurekernel/procedure"
	"github.com/tailored-agentic-units/procedurekernel/procedure/condition"
	"github.com/tailored-agentic-units/procedurekernel/queue"
)

func main() {
	var (
		verbose      = flag.Bool("verbose", false, "Enable debug-level logging to stderr")
		timeout      = flag.Duration("timeout", 10*time.Second, "Overall demo timeout")
		failSecond   = flag.Bool("fail-second", false, "Make the second task fail, to demonstrate error propagation")
		observerName = flag.String("observer", "procdemo", "Registered observer name to resolve via observability.GetObserver")
		auditJSON    = flag.Bool("audit-json", false, "Also fan events out to a JSON audit trail on stdout")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	observability.RegisterObserver("procdemo", observability.NewSlogObserver(logger))

	resolved, err := observability.GetObserver(*observerName)
	if err != nil {
		log.Fatalf("GetObserver: %v", err)
	}
	var obs observability.Observer = resolved
	if *auditJSON {
		audit := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
		obs = observability.NewMultiObserver(resolved, observability.NewSlogObserver(audit))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	q := queue.New(ctx, queue.Config{Name: "procdemo", Observer: obs, MaxConcurrent: 2})
	defer q.Shutdown(2 * time.Second)

	fetch := procedure.New(procedure.Config{
		Name: "fetch",
		Execute: func(ctx context.Context) {
			fmt.Println("fetch: running")
			time.Sleep(50 * time.Millisecond)
		},
	})
	fetch.AddObserver(observer.Logging("procdemo", obs))
	fetch.AddObserver(observer.Timeout(5 * time.Second))

	process := procedure.New(procedure.Config{
		Name: "process",
		Execute: func(ctx context.Context) {
			fmt.Println("process: running")
		},
	})
	process.AddObserver(observer.Logging("procdemo", obs))
	if err := process.AddDependency(fetch); err != nil {
		log.Fatalf("AddDependency: %v", err)
	}
	if *failSecond {
		if err := process.AddCondition(condition.NewBlock(func(ctx context.Context) (bool, error) {
			return false, fmt.Errorf("procdemo: -fail-second requested a failing condition")
		})); err != nil {
			log.Fatalf("AddCondition: %v", err)
		}
	}

	if err := q.Add(fetch); err != nil {
		log.Fatalf("Add(fetch): %v", err)
	}
	if err := q.Add(process); err != nil {
		log.Fatalf("Add(process): %v", err)
	}

	select {
	case <-process.Done():
	case <-ctx.Done():
		log.Fatalf("demo timed out: %v", ctx.Err())
	}

	if errs := process.Errors(); len(errs) > 0 {
		fmt.Printf("process finished with errors: %v\n", errs)
		os.Exit(1)
	}
	fmt.Println("process finished cleanly")
}
