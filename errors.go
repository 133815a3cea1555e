package synx

import (
	"bytes"
	"fmt"
	"runtime/debug"
)

// ErrDeadlockAvoided is returned by Rd2wrlock (on both BlockingRwMutex and
// PackedRwSpinLock) when a second goroutine attempts a read-to-write
// conversion while another goroutine already holds the single converter
// slot. It is the one recoverable error condition in the package: the
// caller must release its read-lock, call Rd2wryield, and retry its
// transaction from the start.
var ErrDeadlockAvoided = fmt.Errorf("synx: deadlock avoided, read-to-write conversion already in progress")

// ViolationKind classifies a ContractViolation.
type ViolationKind uint8

const (
	// SelfLock: a NonRecursiveMutex was locked by a goroutine that already owns it.
	SelfLock ViolationKind = iota
	// OutstandingTokens: a Guarded was destructed (GC-finalized or explicitly
	// closed) while a token still referenced it.
	OutstandingTokens
	// UseAfterMove: a token operation was attempted on a token that was
	// already consumed by a conversion (e.g. a wat that was turned into a rat).
	UseAfterMove
	// WrongGoroutine: a OneThread-policy Guarded was accessed from a goroutine
	// other than the one whose first Access claimed it.
	WrongGoroutine
	// SemaphoreOverflow: Semaphore.Post would overflow the 32-bit token field.
	SemaphoreOverflow
)

func (k ViolationKind) String() string {
	switch k {
	case SelfLock:
		return "self-lock"
	case OutstandingTokens:
		return "outstanding tokens"
	case UseAfterMove:
		return "use after move"
	case WrongGoroutine:
		return "wrong goroutine"
	case SemaphoreOverflow:
		return "semaphore overflow"
	default:
		return "unknown"
	}
}

// ContractViolation is the fatal, debug-only failure mode of this package:
// a programmer error detected at runtime (recursive self-lock, a Guarded
// destructed with outstanding tokens, use of a moved-from token, wrong-
// goroutine access under the OneThread policy, semaphore token overflow).
// Everything ContractViolation reports is undefined behavior in a release
// build compiled with the synx_noassert tag; see assertFails in assert.go.
type ContractViolation struct {
	Kind  ViolationKind
	Msg   string
	Stack []byte
}

func (e *ContractViolation) Error() string {
	if len(e.Stack) == 0 {
		return fmt.Sprintf("synx: contract violation (%s): %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("synx: contract violation (%s): %s\n\n%s", e.Kind, e.Msg, e.Stack)
}

func newContractViolation(kind ViolationKind, format string, args ...any) *ContractViolation {
	stack := debug.Stack()
	if line := bytes.IndexByte(stack, '\n'); line >= 0 {
		stack = stack[line+1:]
	}
	return &ContractViolation{
		Kind:  kind,
		Msg:   fmt.Sprintf(format, args...),
		Stack: stack,
	}
}
