package observer

import "github.com/tailored-agentic-units/procedurekernel/procedure"

// BlockConfig collects the closures Block wires into a procedure.ObserverHandle.
// Every field is optional, mirroring ObserverHandle itself; Block exists so
// call sites that only care about one or two callbacks can use named fields
// instead of the longer ObserverHandle literal directly.
type BlockConfig struct {
	DidAttach   func(t *procedure.Task)
	WillExecute func(t *procedure.Task)
	DidExecute  func(t *procedure.Task)
	WillCancel  func(t *procedure.Task, errs []error)
	DidCancel   func(t *procedure.Task, errs []error)
	WillFinish  func(t *procedure.Task, errs []error)
	DidFinish   func(t *procedure.Task, errs []error)
}

// Block adapts a BlockConfig into a procedure.ObserverHandle, the same
// function-type handler idiom orchestrate/hub uses for MessageHandler.
func Block(cfg BlockConfig) procedure.ObserverHandle {
	return procedure.ObserverHandle{
		DidAttach:   cfg.DidAttach,
		WillExecute: cfg.WillExecute,
		DidExecute:  cfg.DidExecute,
		WillCancel:  cfg.WillCancel,
		DidCancel:   cfg.DidCancel,
		WillFinish:  cfg.WillFinish,
		DidFinish:   cfg.DidFinish,
	}
}
