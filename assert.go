//go:build !synx_noassert

package synx

// assertFails panics with a ContractViolation. Under the synx_noassert
// build tag it is replaced by a no-op (assert_noassert.go), matching the
// spec's "fatal in debug, undefined in release" contract for
// ContractViolation. Go still evaluates a call's arguments, and a call
// site's condition check stays unless it is wrapped in assertionsEnabled;
// the message is only formatted here, so the no-op skips that cost.
func assertFails(kind ViolationKind, format string, args ...any) {
	panic(newContractViolation(kind, format, args...))
}

const assertionsEnabled = true
