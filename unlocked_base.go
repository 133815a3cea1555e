package synx

import "sync/atomic"

// UnlockedBase is a reference-style view onto a projection B of some value
// guarded elsewhere: it carries the RwLocker that guards the underlying
// value together with a pointer to the B sub-object, so code that only
// needs B can take access tokens against the same mutex without knowing
// the concrete owning type. It optionally shares an active-token counter
// with the Guarded that owns the underlying value, so tokens taken through
// the view still count against that Guarded's lifetime contract.
//
// Tracker's ReadAccess/WriteAccess/ConstReadAccess all resolve through an
// UnlockedBase rather than calling the target ReadWriteGuarded's own
// accessors directly, so there is exactly one place the data mutex is
// acquired once the tracker's own lock has already been taken and
// released — the tracker-lock-then-data-lock ordering lives here, not
// duplicated at every call site that wants it.
type UnlockedBase[B any] struct {
	mu           RwLocker
	base         *B
	activeTokens *atomic.Int32
}

// NewUnlockedBase returns a view of base guarded by mu. activeTokens may be
// nil, opting the view out of lifetime accounting (e.g. a view with no
// backing Guarded to assert against).
func NewUnlockedBase[B any](mu RwLocker, base *B, activeTokens *atomic.Int32) *UnlockedBase[B] {
	return &UnlockedBase[B]{mu: mu, base: base, activeTokens: activeTokens}
}

func (u *UnlockedBase[B]) track(delta int32) {
	if u.activeTokens != nil {
		u.activeTokens.Add(delta)
	}
}

// ConstReadAccess blocks until a read lock is available and returns a
// token with no upgrade path.
func (u *UnlockedBase[B]) ConstReadAccess() *BaseCrat[B] {
	u.mu.Rdlock()
	u.track(1)
	return &BaseCrat[B]{u: u}
}

// ReadAccess blocks until a read lock is available and returns a token
// that may later be upgraded to write access via Upgrade.
func (u *UnlockedBase[B]) ReadAccess() *BaseRat[B] {
	u.mu.Rdlock()
	u.track(1)
	return &BaseRat[B]{u: u}
}

// WriteAccess blocks until the write lock is available.
func (u *UnlockedBase[B]) WriteAccess() *BaseWat[B] {
	u.mu.Wrlock()
	u.track(1)
	return &BaseWat[B]{u: u}
}

// BaseCrat is an UnlockedBase's const-read token. See Crat.
type BaseCrat[B any] struct {
	_        noCopy
	u        *UnlockedBase[B]
	released atomic.Bool
}

// Get returns a pointer to the projected sub-object, valid until Release.
func (r *BaseCrat[B]) Get() *B { return r.u.base }

// Release relinquishes the read lock.
func (r *BaseCrat[B]) Release() {
	if r.released.Swap(true) {
		assertFails(UseAfterMove, "BaseCrat already released")
		return
	}
	r.u.track(-1)
	r.u.mu.Rdunlock()
}

// BaseRat is an UnlockedBase's upgradable read token. See Rat.
type BaseRat[B any] struct {
	_        noCopy
	u        *UnlockedBase[B]
	released atomic.Bool
}

// Get returns a pointer to the projected sub-object, valid until Release
// or Upgrade.
func (r *BaseRat[B]) Get() *B { return r.u.base }

// Release relinquishes the read lock.
func (r *BaseRat[B]) Release() {
	if r.released.Swap(true) {
		assertFails(UseAfterMove, "BaseRat already released")
		return
	}
	r.u.track(-1)
	r.u.mu.Rdunlock()
}

// Upgrade converts this read access into write access, subject to the same
// single-converter rule as Rat.Upgrade.
func (r *BaseRat[B]) Upgrade() (*BaseWat[B], error) {
	if r.released.Load() {
		assertFails(UseAfterMove, "BaseRat already released")
	}
	if err := r.u.mu.Rd2wrlock(); err != nil {
		return nil, err
	}
	r.released.Store(true)
	return &BaseWat[B]{u: r.u}, nil
}

// BaseWat is an UnlockedBase's write token. See Wat.
type BaseWat[B any] struct {
	_        noCopy
	u        *UnlockedBase[B]
	released atomic.Bool
}

// Get returns a pointer to the projected sub-object, valid until Release
// or Downgrade.
func (w *BaseWat[B]) Get() *B { return w.u.base }

// Release relinquishes the write lock.
func (w *BaseWat[B]) Release() {
	if w.released.Swap(true) {
		assertFails(UseAfterMove, "BaseWat already released")
		return
	}
	w.u.track(-1)
	w.u.mu.Wrunlock()
}

// Downgrade converts write access directly into read access, atomically.
func (w *BaseWat[B]) Downgrade() *BaseRat[B] {
	if w.released.Swap(true) {
		assertFails(UseAfterMove, "BaseWat already released")
	}
	w.u.mu.Wr2rdlock()
	return &BaseRat[B]{u: w.u}
}
