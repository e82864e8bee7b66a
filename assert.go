package mps

// assert panics on an internal invariant violation. It must never fire
// on attacker-controlled or otherwise externally-influenced input; those
// cases return a *Error instead. Grounded on mint's package-local
// assert(cond bool), used the same way throughout record-layer.go.
func assert(ok bool) {
	if !ok {
		panic("mps: assertion failed")
	}
}

func assertMsg(ok bool, msg string) {
	if !ok {
		panic("mps: assertion failed: " + msg)
	}
}
