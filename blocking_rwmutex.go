package synx

import "sync"

// BlockingRwMutex is a condition-variable-based read/write mutex with
// writer priority and read-to-write promotion. It is the blocking sibling
// of PackedRwSpinLock: same external contract (Rdlock/Rdunlock/Wrlock/
// Wrunlock/Rd2wrlock/Rd2wryield/Wr2rdlock), but goroutines that would spin
// here instead park on a sync.Cond.
//
// All state is guarded by a single internal lock (a TicketLock, for the
// same FIFO-under-contention reason it is used elsewhere in this package);
// four condition variables, all backed by that one lock, signal the four
// distinct predicates a waiter can be blocked on:
//
//   - unlocked:     readers == 0                 (wrlock waits here)
//   - noWriterLeft: readers >= 0                 (rdlock waits here)
//   - oneReaderLeft: readers == 1                (rd2wrlock's first converter waits here)
//   - rd2wrSettle:  rd2wrCount == 0               (rd2wryield waits here)
//
// readers encodes state the same way the C original does: -1 means write-
// locked, >=0 is the active reader count.
type BlockingRwMutex struct {
	_    noCopy
	mu   TicketLock
	cond blockingRwCond

	readers        int32
	waitingWriters int32
	rd2wrCount     int32
}

type blockingRwCond struct {
	unlocked      *sync.Cond
	noWriterLeft  *sync.Cond
	oneReaderLeft *sync.Cond
	rd2wrSettle   *sync.Cond
}

// lazyInit wires the four condition variables to the mutex's own lock on
// first use, so BlockingRwMutex remains zero-value usable.
func (m *BlockingRwMutex) lazyInit() {
	if m.cond.unlocked != nil {
		return
	}
	m.cond.unlocked = sync.NewCond(&m.mu)
	m.cond.noWriterLeft = sync.NewCond(&m.mu)
	m.cond.oneReaderLeft = sync.NewCond(&m.mu)
	m.cond.rd2wrSettle = sync.NewCond(&m.mu)
}

// Rdlock acquires a read lock. It blocks while a writer holds the lock or
// is waiting to (writer priority: a waiting writer blocks new readers
// behind it, via waitingWriters).
func (m *BlockingRwMutex) Rdlock() {
	m.mu.Lock()
	m.lazyInit()
	for m.readers < 0 || m.waitingWriters > 0 {
		m.cond.noWriterLeft.Wait()
	}
	m.readers++
	m.mu.Unlock()
}

// Rdunlock releases a read lock.
func (m *BlockingRwMutex) Rdunlock() {
	m.mu.Lock()
	m.lazyInit()
	m.readers--
	switch m.readers {
	case 1:
		m.cond.oneReaderLeft.Signal()
	case 0:
		m.cond.unlocked.Signal()
	}
	m.mu.Unlock()
}

// Wrlock acquires the write lock, announcing itself as a waiting writer so
// that new readers back off behind it.
func (m *BlockingRwMutex) Wrlock() {
	m.mu.Lock()
	m.lazyInit()
	m.waitingWriters++
	for m.readers != 0 {
		m.cond.unlocked.Wait()
	}
	m.readers = -1
	m.waitingWriters--
	m.mu.Unlock()
}

// Wrunlock releases the write lock.
func (m *BlockingRwMutex) Wrunlock() {
	m.mu.Lock()
	m.lazyInit()
	m.readers = 0
	if m.waitingWriters > 0 {
		m.cond.unlocked.Signal()
	} else {
		m.cond.noWriterLeft.Broadcast()
	}
	m.mu.Unlock()
}

// Rd2wrlock converts a held read lock into a write lock. At most one
// goroutine may be converting at a time: a second, concurrent call returns
// ErrDeadlockAvoided. On that error the caller's read-lock is still held;
// per the package's error contract it must call Rdunlock, then
// Rd2wryield, then retry its transaction from the start.
func (m *BlockingRwMutex) Rd2wrlock() error {
	m.mu.Lock()
	m.lazyInit()
	if m.rd2wrCount != 0 {
		m.mu.Unlock()
		return ErrDeadlockAvoided
	}
	m.rd2wrCount = 1
	for m.readers != 1 {
		m.cond.oneReaderLeft.Wait()
	}
	m.readers = -1
	m.rd2wrCount = 0
	m.cond.rd2wrSettle.Broadcast()
	m.mu.Unlock()
	return nil
}

// Rd2wryield waits for an in-flight read-to-write conversion (by another
// goroutine) to settle. Call this only after releasing your own read lock
// in response to ErrDeadlockAvoided, then retry from the top.
func (m *BlockingRwMutex) Rd2wryield() {
	m.mu.Lock()
	m.lazyInit()
	for m.rd2wrCount != 0 {
		m.cond.rd2wrSettle.Wait()
	}
	m.mu.Unlock()
}

// Wr2rdlock downgrades a held write lock to a read lock without ever
// releasing the lock in between.
func (m *BlockingRwMutex) Wr2rdlock() {
	m.mu.Lock()
	m.lazyInit()
	m.readers = 1
	m.cond.noWriterLeft.Broadcast()
	m.mu.Unlock()
}
