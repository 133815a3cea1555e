package synx

import (
	"runtime"
	"sync/atomic"
)

// ReadWriteGuarded protects a value with an RwLocker (PackedRwSpinLock or
// BlockingRwMutex), handing out one of four access tokens depending on what
// the caller needs: Crat (const read, never upgradable), Rat (read,
// upgradable to Wat), Wat (write), and W2rCarry (a downgraded write access
// captured for handoff across a boundary that shouldn't pay for a second
// lock/unlock round trip). Every token is single-use: its Release (or
// Upgrade/Downgrade/IntoRat, which consume it) may only be called once, and
// a second call is a ContractViolation rather than silently double-
// unlocking the mutex.
type ReadWriteGuarded[T any] struct {
	_            noCopy
	value        T
	mu           RwLocker
	activeTokens atomic.Int32
}

// NewReadWriteGuarded wraps value, protected by mu. Pass a fresh
// *PackedRwSpinLock for the spinning implementation or a fresh
// *BlockingRwMutex for the blocking one.
func NewReadWriteGuarded[T any](value T, mu RwLocker) *ReadWriteGuarded[T] {
	g := &ReadWriteGuarded[T]{value: value, mu: mu}
	if assertionsEnabled {
		runtime.SetFinalizer(g, (*ReadWriteGuarded[T]).checkNoOutstandingTokens)
	}
	return g
}

// checkNoOutstandingTokens raises OutstandingTokens if a token is still
// live. Go has no destructors; this is both the body of the explicit Close
// and the finalizer installed by NewReadWriteGuarded, mirroring the
// original's destructor-time assertion.
func (g *ReadWriteGuarded[T]) checkNoOutstandingTokens() {
	if n := g.activeTokens.Load(); n != 0 {
		assertFails(OutstandingTokens, "ReadWriteGuarded destructed with %d outstanding token(s)", n)
	}
}

// Close asserts that no access token is still outstanding. Call it when a
// ReadWriteGuarded's lifetime explicitly ends; a GC finalizer also runs the
// same check as a safety net for values that are simply dropped.
func (g *ReadWriteGuarded[T]) Close() {
	runtime.SetFinalizer(g, nil)
	g.checkNoOutstandingTokens()
}

// ConstReadAccess blocks until a read lock is available and returns a
// token with no upgrade path.
func (g *ReadWriteGuarded[T]) ConstReadAccess() *Crat[T] {
	g.mu.Rdlock()
	g.activeTokens.Add(1)
	return &Crat[T]{g: g}
}

// ReadAccess blocks until a read lock is available and returns a token
// that may later be upgraded to write access via Upgrade.
func (g *ReadWriteGuarded[T]) ReadAccess() *Rat[T] {
	g.mu.Rdlock()
	g.activeTokens.Add(1)
	return &Rat[T]{g: g}
}

// WriteAccess blocks until the write lock is available.
func (g *ReadWriteGuarded[T]) WriteAccess() *Wat[T] {
	g.mu.Wrlock()
	g.activeTokens.Add(1)
	return &Wat[T]{g: g}
}

// Crat is a const read-access token: it can read the guarded value but has
// no path to write access.
type Crat[T any] struct {
	_        noCopy
	g        *ReadWriteGuarded[T]
	released atomic.Bool
}

// Get returns a pointer to the guarded value, valid until Release.
func (r *Crat[T]) Get() *T { return &r.g.value }

// Release relinquishes the read lock.
func (r *Crat[T]) Release() {
	if r.released.Swap(true) {
		assertFails(UseAfterMove, "Crat already released")
		return
	}
	r.g.activeTokens.Add(-1)
	r.g.mu.Rdunlock()
}

// Rat is a read-access token that may be upgraded to write access.
type Rat[T any] struct {
	_        noCopy
	g        *ReadWriteGuarded[T]
	released atomic.Bool
}

// Get returns a pointer to the guarded value, valid until Release or
// Upgrade.
func (r *Rat[T]) Get() *T { return &r.g.value }

// Release relinquishes the read lock.
func (r *Rat[T]) Release() {
	if r.released.Swap(true) {
		assertFails(UseAfterMove, "Rat already released")
		return
	}
	r.g.activeTokens.Add(-1)
	r.g.mu.Rdunlock()
}

// Upgrade converts this read access into write access. At most one
// goroutine across the whole ReadWriteGuarded may have an upgrade in
// flight at a time: a second, concurrent Upgrade call returns
// ErrDeadlockAvoided and leaves its own Rat still valid. On that error the
// caller must Release its Rat, call the guarded value's Yield, and retry
// its transaction from ReadAccess.
func (r *Rat[T]) Upgrade() (*Wat[T], error) {
	if r.released.Load() {
		assertFails(UseAfterMove, "Rat already released")
	}
	if err := r.g.mu.Rd2wrlock(); err != nil {
		return nil, err
	}
	r.released.Store(true)
	return &Wat[T]{g: r.g}, nil
}

// Yield waits for another goroutine's in-flight Upgrade to settle. Call
// this after Release, in response to ErrDeadlockAvoided from Upgrade,
// before retrying ReadAccess.
func (g *ReadWriteGuarded[T]) Yield() { g.mu.Rd2wryield() }

// Wat is a write-access token.
type Wat[T any] struct {
	_        noCopy
	g        *ReadWriteGuarded[T]
	released atomic.Bool
}

// Get returns a pointer to the guarded value, valid until Release,
// Downgrade, or CarryToRead.
func (w *Wat[T]) Get() *T { return &w.g.value }

// Release relinquishes the write lock.
func (w *Wat[T]) Release() {
	if w.released.Swap(true) {
		assertFails(UseAfterMove, "Wat already released")
		return
	}
	w.g.activeTokens.Add(-1)
	w.g.mu.Wrunlock()
}

// Downgrade converts write access directly into read access, atomically:
// there is no window where the lock is fully released.
func (w *Wat[T]) Downgrade() *Rat[T] {
	if w.released.Swap(true) {
		assertFails(UseAfterMove, "Wat already released")
	}
	w.g.mu.Wr2rdlock()
	return &Rat[T]{g: w.g}
}

// CarryToRead downgrades to read access immediately (same as Downgrade)
// but returns a W2rCarry instead of a Rat, so the resulting read access can
// be handed across a function boundary and only turned into a usable Rat
// at the point it's actually needed, without paying for a second lock
// round trip in between.
func (w *Wat[T]) CarryToRead() *W2rCarry[T] {
	if w.released.Swap(true) {
		assertFails(UseAfterMove, "Wat already released")
	}
	w.g.mu.Wr2rdlock()
	return &W2rCarry[T]{g: w.g}
}

// W2rCarry is a write-to-read handoff: read access already acquired, not
// yet materialized into a usable token. It must be consumed exactly once,
// via IntoRat.
type W2rCarry[T any] struct {
	_        noCopy
	g        *ReadWriteGuarded[T]
	consumed atomic.Bool
}

// IntoRat consumes the carry and returns the read-access token it was
// holding open. Calling IntoRat twice on the same W2rCarry is a
// ContractViolation.
func (c *W2rCarry[T]) IntoRat() *Rat[T] {
	if c.consumed.Swap(true) {
		assertFails(UseAfterMove, "W2rCarry already consumed")
	}
	return &Rat[T]{g: c.g}
}
