package synx

import "sync/atomic"

// NonRecursiveMutex is a primitive mutex that stores the identity of its
// owning goroutine atomically, so that is_self_locked can be answered
// without acquiring any lock. Unlike sync.Mutex, locking it twice from the
// same goroutine is a programming error (a ContractViolation), not
// convenient recursion.
//
// The owner field doubles as the lock bit: zero means unlocked, any other
// value is (goroutineID+1) of the current owner. This is a CAS-bit-lock
// that packs identity into the lock word itself instead of a separate flag,
// which is what lets is_self_locked avoid taking the lock.
//
// Size: 8 bytes.
type NonRecursiveMutex struct {
	_     noCopy
	owner atomic.Int64
}

// Lock acquires the mutex. It panics with a ContractViolation if the
// calling goroutine already owns it.
func (m *NonRecursiveMutex) Lock() {
	id := goroutineID() + 1
	if m.owner.Load() == id {
		assertFails(SelfLock, "NonRecursiveMutex: goroutine %d already holds this lock", id-1)
		return
	}
	if m.owner.CompareAndSwap(0, id) {
		return
	}
	var spins int
	for !m.owner.CompareAndSwap(0, id) {
		delay(&spins)
	}
}

// TryLock attempts to acquire the mutex without blocking. It panics with a
// ContractViolation under the same self-lock precondition as Lock.
func (m *NonRecursiveMutex) TryLock() bool {
	id := goroutineID() + 1
	if m.owner.Load() == id {
		assertFails(SelfLock, "NonRecursiveMutex: goroutine %d already holds this lock", id-1)
		return false
	}
	return m.owner.CompareAndSwap(0, id)
}

// Unlock releases the mutex. The identity is cleared before the primitive
// is considered free, since the owner field is both at once; the caller
// must hold the lock.
func (m *NonRecursiveMutex) Unlock() {
	m.owner.Store(0)
}

// IsSelfLocked reports whether the calling goroutine currently owns the
// mutex. It is wait-free: a relaxed load suffices, because a goroutine
// that observes its own id previously wrote it and has not since observed
// a clearing Unlock of its own doing.
//
//go:nosplit
func (m *NonRecursiveMutex) IsSelfLocked() bool {
	return m.owner.Load() == goroutineID()+1
}
