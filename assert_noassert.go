//go:build synx_noassert

package synx

// assertFails is a no-op in release builds: ContractViolation conditions
// are undefined behavior once synx_noassert is set, per the package's
// error-handling contract.
func assertFails(ViolationKind, string, ...any) {}

const assertionsEnabled = false
