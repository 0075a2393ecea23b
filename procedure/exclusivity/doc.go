// Package exclusivity implements the process-wide mutual-exclusion registry:
// a map from category name to a FIFO chain of waiters, used to serialize
// Tasks that declare the same exclusivityCategories (spec.md §4.3). It is
// grounded on the mutex-guarded map idiom shared by
// github.com/tailored-agentic-units/kernel's agent.Registry (RWMutex over a
// name-keyed map, lazy default population) and orchestrate/hub.hub's
// subscription bookkeeping (map of named waiter sets guarded by its own
// mutex, independent from any single Task's state).
package exclusivity
