package synx

import (
	"sync/atomic"
)

// TicketLock is a fair, FIFO spin-lock: goroutines acquire it in the exact
// order they called Lock(), unlike sync.Mutex which lets a newcomer barge
// ahead of an already-waiting goroutine.
//
// It backs the internal slow path shared by BlockingRwMutex and
// PackedRwSpinLock: both hand it to sync.NewCond so their writer/converter
// queues drain in arrival order instead of whichever waiter the runtime
// happens to wake first. Callers only ever reach it through those two
// types' condition variables, never directly, so its critical sections are
// always just a few field reads/writes around a Cond.Wait loop — exactly
// the case strict fairness is worth its spin-then-sleep cost for.
type TicketLock struct {
	_       noCopy
	next    atomic.Uint32
	serving atomic.Uint32
}

// Lock acquires the lock. Blocks until the lock is available.
func (m *TicketLock) Lock() {
	my := m.next.Add(1) - 1
	var spins int
	for {
		if m.serving.Load() == my {
			return
		}
		delay(&spins)
	}
}

// Unlock releases the lock.
func (m *TicketLock) Unlock() {
	m.serving.Add(1)
}
