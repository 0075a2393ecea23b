// Package observer provides ready-made procedure.ObserverHandle
// constructors: Logging reports lifecycle events through the
// observability fabric the way observability.SlogObserver does, Block
// adapts plain closures the way orchestrate/hub's MessageHandler function
// type does, and Timeout cancels a Task that runs too long, a capability
// carried over from ProcedureKit (original_source) that spec.md's
// distillation dropped but a complete kernel needs.
package observer
