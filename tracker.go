package synx

import "sync/atomic"

// Tracker is a stable indirection to a ReadWriteGuarded value that can
// itself be replaced. Other code can hold a *Tracker forever without
// caring that the value it currently points at was swapped out from under
// it — e.g. because the value was relocated, rebuilt, or replaced wholesale
// — as long as it always resolves the current target through the tracker
// rather than caching a *ReadWriteGuarded directly.
//
// The tracker's own lock is always acquired, and released, strictly before
// the resolved target's lock: Retarget takes the tracker's write lock only
// long enough to swap the pointer, and ReadAccess/WriteAccess take the
// tracker's read lock only long enough to resolve it, well before either
// touches the target's own lock. This ordering — tracker lock, then data
// lock, never the reverse — is what makes a concurrent Retarget safe: a
// reader either sees the old target and locks it normally, or sees the new
// one, never a half-updated pointer.
type Tracker[T any] struct {
	_           noCopy
	trackerLock PackedRwSpinLock
	target      atomic.Pointer[ReadWriteGuarded[T]]
}

// NewTracker returns a Tracker initially pointing at initial.
func NewTracker[T any](initial *ReadWriteGuarded[T]) *Tracker[T] {
	t := &Tracker[T]{}
	t.target.Store(initial)
	return t
}

// Retarget swaps in next as the tracker's current target and returns the
// previous one.
func (t *Tracker[T]) Retarget(next *ReadWriteGuarded[T]) *ReadWriteGuarded[T] {
	t.trackerLock.Wrlock()
	defer t.trackerLock.Wrunlock()
	return t.target.Swap(next)
}

func (t *Tracker[T]) resolve() *ReadWriteGuarded[T] {
	t.trackerLock.Rdlock()
	target := t.target.Load()
	t.trackerLock.Rdunlock()
	return target
}

// base resolves the current target, then builds the {T*, Mutex*}-style
// UnlockedBase view tracked_rat/tracked_wat operate through: the tracker's
// own lock is acquired and released before this ever touches the target's
// mutex, so the two locks are never held at once.
func (t *Tracker[T]) base() *UnlockedBase[T] {
	target := t.resolve()
	return NewUnlockedBase(target.mu, &target.value, &target.activeTokens)
}

// ReadAccess resolves the current target and takes a read lock on it via
// an UnlockedBase view, returning a token upgradable to write access.
func (t *Tracker[T]) ReadAccess() *BaseRat[T] { return t.base().ReadAccess() }

// ConstReadAccess resolves the current target and takes a non-upgradable
// read lock on it via an UnlockedBase view.
func (t *Tracker[T]) ConstReadAccess() *BaseCrat[T] { return t.base().ConstReadAccess() }

// WriteAccess resolves the current target and takes a write lock on it via
// an UnlockedBase view.
func (t *Tracker[T]) WriteAccess() *BaseWat[T] { return t.base().WriteAccess() }

// TrackedObject owns a guarded value together with the Tracker that points
// at it. Code that owns a TrackedObject can Replace its value; code that
// only needs to reach the current value, without owning it or caring about
// replacement, should hold the lightweight Handle instead.
type TrackedObject[T any] struct {
	_       noCopy
	tracker *Tracker[T]
}

// NewTrackedObject wraps value behind mu and creates its Tracker.
func NewTrackedObject[T any](value T, mu RwLocker) *TrackedObject[T] {
	g := NewReadWriteGuarded(value, mu)
	return &TrackedObject[T]{tracker: NewTracker(g)}
}

// Tracker returns the stable tracker for this object.
func (o *TrackedObject[T]) Tracker() *Tracker[T] { return o.tracker }

// Handle returns a lightweight, copyable reference to this object that
// other code can hold onto; it survives a later Replace.
func (o *TrackedObject[T]) Handle() UnlockedTrackedObject[T] {
	return UnlockedTrackedObject[T]{tracker: o.tracker}
}

// ReadAccess resolves the current value through the tracker and takes a
// read lock on it. Like every other data accessor in this package, it
// never touches the data mutex before the tracker's own lock has already
// been taken and released.
func (o *TrackedObject[T]) ReadAccess() *BaseRat[T] { return o.tracker.ReadAccess() }

// WriteAccess resolves the current value through the tracker and takes a
// write lock on it.
func (o *TrackedObject[T]) WriteAccess() *BaseWat[T] { return o.tracker.WriteAccess() }

// Replace atomically retargets this object's tracker at a freshly guarded
// copy of next, so every existing Handle and every holder of the Tracker
// observes the replacement on their next access. mu supplies a fresh lock
// for the replacement value; it need not be the same RwLocker
// implementation the original value used.
func (o *TrackedObject[T]) Replace(next T, mu RwLocker) {
	g := NewReadWriteGuarded(next, mu)
	o.tracker.Retarget(g)
}

// UnlockedTrackedObject is a stable, copyable handle to a TrackedObject's
// current value. Holding one does not pin any particular value in place:
// after the owning TrackedObject calls Replace, every UnlockedTrackedObject
// handle transparently starts resolving to the new value.
type UnlockedTrackedObject[T any] struct {
	tracker *Tracker[T]
}

// Tracker returns the underlying Tracker.
func (h UnlockedTrackedObject[T]) Tracker() *Tracker[T] { return h.tracker }

// ReadAccess resolves the current value and takes a read lock on it.
func (h UnlockedTrackedObject[T]) ReadAccess() *BaseRat[T] { return h.tracker.ReadAccess() }

// ConstReadAccess resolves the current value and takes a non-upgradable
// read lock on it.
func (h UnlockedTrackedObject[T]) ConstReadAccess() *BaseCrat[T] { return h.tracker.ConstReadAccess() }

// WriteAccess resolves the current value and takes a write lock on it.
func (h UnlockedTrackedObject[T]) WriteAccess() *BaseWat[T] { return h.tracker.WriteAccess() }
