// Package queue provides ProcedureQueue, a reference host queue for
// package procedure's Task primitive: it drives every Task handed to it
// through WillEnqueue, PendingQueueStart and Start, polls readiness the way
// orchestrate/state.stateGraph.Execute iterates a graph until no further
// progress is possible, and reports lifecycle events through the
// observability fabric the way orchestrate/hub.hub reports its own.
package queue
