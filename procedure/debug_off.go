//go:build !procedurekernel_debug

package procedure

// assertLegal is a no-op in release builds; instead of crashing the process,
// callers either return an error (ErrIllegalState or a more specific
// sentinel such as ErrFinishTooEarly) or, as Start does, leave the Task as
// it is and return.
func assertLegal(result advanceResult, from, to State) {}
