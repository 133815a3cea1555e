package synx

import (
	"runtime"
	"sync/atomic"
)

// RwLocker is satisfied by both PackedRwSpinLock and BlockingRwMutex. The
// ReadWrite policy is written against this interface so a Guarded value can
// pick either the spinning or the blocking implementation without any
// change to its access-token API.
type RwLocker interface {
	Rdlock()
	Rdunlock()
	Wrlock()
	Wrunlock()
	Rd2wrlock() error
	Rd2wryield()
	Wr2rdlock()
}

var (
	_ RwLocker = (*PackedRwSpinLock)(nil)
	_ RwLocker = (*BlockingRwMutex)(nil)
)

// PrimitiveGuarded protects a value with a single non-recursive mutex: there
// is no separate read access, every access is exclusive. Use this policy
// when readers are as rare as writers, so a real reader/writer lock would
// only add overhead. It has no read-to-write conversion, and therefore no
// w2rCarry token: with only one kind of access there is nothing to convert
// between; callers that would reach for Upgrade under ReadWriteGuarded
// should just take a PrimitiveToken up front instead.
type PrimitiveGuarded[T any] struct {
	_            noCopy
	value        T
	mu           NonRecursiveMutex
	activeTokens atomic.Int32
}

// NewPrimitiveGuarded returns a PrimitiveGuarded wrapping value.
func NewPrimitiveGuarded[T any](value T) *PrimitiveGuarded[T] {
	g := &PrimitiveGuarded[T]{value: value}
	if assertionsEnabled {
		runtime.SetFinalizer(g, (*PrimitiveGuarded[T]).checkNoOutstandingTokens)
	}
	return g
}

func (g *PrimitiveGuarded[T]) checkNoOutstandingTokens() {
	if n := g.activeTokens.Load(); n != 0 {
		assertFails(OutstandingTokens, "PrimitiveGuarded destructed with %d outstanding token(s)", n)
	}
}

// Close asserts that no access token is still outstanding. See
// ReadWriteGuarded.Close.
func (g *PrimitiveGuarded[T]) Close() {
	runtime.SetFinalizer(g, nil)
	g.checkNoOutstandingTokens()
}

// Access blocks until exclusive access is available.
func (g *PrimitiveGuarded[T]) Access() *PrimitiveToken[T] {
	g.mu.Lock()
	g.activeTokens.Add(1)
	return &PrimitiveToken[T]{g: g}
}

// TryAccess attempts to acquire exclusive access without blocking.
func (g *PrimitiveGuarded[T]) TryAccess() (*PrimitiveToken[T], bool) {
	if !g.mu.TryLock() {
		return nil, false
	}
	g.activeTokens.Add(1)
	return &PrimitiveToken[T]{g: g}, true
}

// PrimitiveToken grants exclusive access to a PrimitiveGuarded's value.
type PrimitiveToken[T any] struct {
	_        noCopy
	g        *PrimitiveGuarded[T]
	released atomic.Bool
}

// Get returns a pointer to the guarded value, valid until Release.
func (t *PrimitiveToken[T]) Get() *T { return &t.g.value }

// Release relinquishes access. Calling Release twice on the same token is a
// ContractViolation.
func (t *PrimitiveToken[T]) Release() {
	if t.released.Swap(true) {
		assertFails(UseAfterMove, "PrimitiveToken already released")
		return
	}
	t.g.activeTokens.Add(-1)
	t.g.mu.Unlock()
}

// OneThreadGuarded protects a value with no real lock at all: it only
// asserts, in debug builds, that every access comes from the same
// goroutine that first accessed it. Use this policy for values that
// genuinely never cross a goroutine boundary but that you want the
// contract checked rather than assumed. Under the synx_noassert build tag
// the check compiles away entirely, leaving Access as a free type-safe
// accessor.
type OneThreadGuarded[T any] struct {
	_            noCopy
	value        T
	owner        atomic.Int64 // 0 = unclaimed, else goroutineID()+1
	activeTokens atomic.Int32
}

// NewOneThreadGuarded returns an OneThreadGuarded wrapping value. The
// creating goroutine is not special: the first Access call, from whichever
// goroutine makes it, claims ownership.
func NewOneThreadGuarded[T any](value T) *OneThreadGuarded[T] {
	g := &OneThreadGuarded[T]{value: value}
	if assertionsEnabled {
		runtime.SetFinalizer(g, (*OneThreadGuarded[T]).checkNoOutstandingTokens)
	}
	return g
}

func (g *OneThreadGuarded[T]) checkNoOutstandingTokens() {
	if n := g.activeTokens.Load(); n != 0 {
		assertFails(OutstandingTokens, "OneThreadGuarded destructed with %d outstanding token(s)", n)
	}
}

// Close asserts that no access token is still outstanding. See
// ReadWriteGuarded.Close.
func (g *OneThreadGuarded[T]) Close() {
	runtime.SetFinalizer(g, nil)
	g.checkNoOutstandingTokens()
}

// Access returns a token granting access, asserting (in debug builds) that
// the calling goroutine either claims an unclaimed guard or matches the
// one that already claimed it.
func (g *OneThreadGuarded[T]) Access() *OneThreadToken[T] {
	if assertionsEnabled {
		gid := goroutineID() + 1
		if !g.owner.CompareAndSwap(0, gid) && g.owner.Load() != gid {
			assertFails(WrongGoroutine, "OneThreadGuarded accessed from goroutine %d, previously claimed by a different goroutine", gid-1)
		}
	}
	g.activeTokens.Add(1)
	return &OneThreadToken[T]{g: g}
}

// OneThreadToken grants access to an OneThreadGuarded's value.
type OneThreadToken[T any] struct {
	_        noCopy
	g        *OneThreadGuarded[T]
	released atomic.Bool
}

// Get returns a pointer to the guarded value.
func (t *OneThreadToken[T]) Get() *T { return &t.g.value }

// Release relinquishes the token. OneThreadGuarded holds no real lock, but
// Release still retires the token's slot in the active-token count so
// Close/the finalizer can tell a live token from a dropped one.
func (t *OneThreadToken[T]) Release() {
	if t.released.Swap(true) {
		assertFails(UseAfterMove, "OneThreadToken already released")
		return
	}
	t.g.activeTokens.Add(-1)
}
