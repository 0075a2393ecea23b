// Package procedure implements the Task primitive: a structured-concurrency
// unit of work carrying a seven-state lifecycle, cooperative cancellation,
// dependency and condition gating, mutual-exclusion coordination, and an
// observer notification fabric.
//
// A Task is created via New, optionally configured with AddDependency,
// AddCondition and AddObserver, and then driven through its lifecycle by a
// host queue (see package queue for a reference implementation) calling
// WillEnqueue, PendingQueueStart and Start in order. User code supplies the
// work to perform via the Execute function passed to New. By default the Task
// finishes itself once Execute returns; a Task that opts into manual
// finishing via DisableAutomaticFinishing must eventually call Finish itself.
package procedure
