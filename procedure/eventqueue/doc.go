// Package eventqueue implements the per-Task serial FIFO executor that
// serializes user-visible lifecycle callbacks. It is grounded on the
// buffered-channel-plus-worker-goroutine shape used throughout the example
// corpus for message dispatch (github.com/tailored-agentic-units/kernel's
// orchestrate/hub package), generalized from message dispatch to closure
// dispatch.
package eventqueue
