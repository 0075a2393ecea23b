//go:build procedurekernel_debug

package procedure

// assertLegal panics when a transition attempt was rejected as illegal.
// Built with -tags procedurekernel_debug; release builds use the no-op in
// debug_off.go instead (spec: "Abort in debug; undefined in release").
func assertLegal(result advanceResult, from, to State) {
	if result == illegal {
		panic("procedure: illegal state transition " + from.String() + " -> " + to.String())
	}
}
