package synx

import (
	"sync/atomic"
	"unsafe"
)

const growFactorNum, growFactorDen = 1414, 1000 // 1.414, as in the original's memory_grow_factor

const freeIndexEmpty = ^uint32(0)

// indexStack is a lock-free stack of free slot indices for PointerStorage.
// It substitutes for the original's boost::lockfree::stack: since multiple
// goroutines may pop/push concurrently while each holds only a *read* lock
// on the enclosing PackedRwSpinLock, this stack needs its own lock-freedom
// rather than borrowing the RW lock's exclusion. top packs a generation
// counter together with the head index so that concurrent pop/push cycles
// on the same index (very common here: erase immediately frees an index
// that the next insert immediately reuses) can't be mistaken for no change
// at all — the classic ABA problem for Treiber-style stacks.
type indexStack struct {
	top  atomic.Uint64 // (generation<<32) | headIndex
	next []atomic.Uint32
}

func packStackTop(gen, idx uint32) uint64 { return uint64(gen)<<32 | uint64(idx) }
func unpackStackTop(v uint64) (gen, idx uint32) {
	return uint32(v >> 32), uint32(v)
}

func newIndexStack(capacity int) *indexStack {
	s := &indexStack{next: make([]atomic.Uint32, capacity)}
	s.top.Store(packStackTop(0, freeIndexEmpty))
	return s
}

func (s *indexStack) push(idx uint32) {
	for {
		old := s.top.Load()
		gen, head := unpackStackTop(old)
		s.next[idx].Store(head)
		if s.top.CompareAndSwap(old, packStackTop(gen+1, idx)) {
			return
		}
	}
}

func (s *indexStack) pop() (uint32, bool) {
	for {
		old := s.top.Load()
		gen, head := unpackStackTop(old)
		if head == freeIndexEmpty {
			return 0, false
		}
		next := s.next[head].Load()
		if s.top.CompareAndSwap(old, packStackTop(gen+1, next)) {
			return head, true
		}
	}
}

func (s *indexStack) grow(newCapacity int) {
	grown := make([]atomic.Uint32, newCapacity)
	copy(grown, s.next)
	s.next = grown
}

// PointerStorage is a thread-safe set of *T pointers supporting O(1)
// Insert/Erase and an O(n) ForEach snapshot, modeled on the original's
// VoidPointerStorage/PointerStorage<T>. Indices, not pointers, are handed
// back to callers because growth can relocate the backing storage; a
// lock-free free-index stack (above) tracks reusable slots so Insert/Erase
// only need the storage's *read* lock, and only the rare grow path needs
// to become a writer.
type PointerStorage[T any] struct {
	_       noCopy
	lock    PackedRwSpinLock
	size    uint32
	storage []unsafe.Pointer
	free    *indexStack
}

// NewPointerStorage returns a PointerStorage pre-sized for at least
// initialCapacity concurrent entries.
func NewPointerStorage[T any](initialCapacity uint32) *PointerStorage[T] {
	ps := &PointerStorage[T]{free: newIndexStack(0)}
	ps.growLocked(initialCapacity)
	return ps
}

// Insert stores value and returns the index it was stored at.
func (ps *PointerStorage[T]) Insert(value *T) uint32 {
	ps.lock.Rdlock()
	for {
		idx, ok := ps.free.pop()
		if ok {
			storePtr(&ps.storage[idx], unsafe.Pointer(value))
			ps.lock.Rdunlock()
			return idx
		}
		if ps.growFromReadLock() {
			continue
		}
		ps.lock.Rdlock()
	}
}

// Erase removes the pointer previously stored at index, making the index
// available for reuse.
func (ps *PointerStorage[T]) Erase(index uint32) {
	ps.lock.Rdlock()
	storePtr(&ps.storage[index], nil)
	ps.free.push(index)
	ps.lock.Rdunlock()
}

// Get returns the pointer stored at index, or nil if that slot is
// currently free. It takes its own read lock around the slice access, so a
// concurrent Insert-triggered grow can never be observed mid-resize.
func (ps *PointerStorage[T]) Get(index uint32) *T {
	ps.lock.Rdlock()
	defer ps.lock.Rdunlock()
	return (*T)(loadPtr(&ps.storage[index]))
}

// ForEach write-locks the storage, drains the free-index stack into a
// scratch buffer, invokes cb on every non-nil slot, then restores the free
// list before releasing the write lock. Draining does not touch the slots:
// a free slot is already nil, because Erase clears it before pushing its
// index.
func (ps *PointerStorage[T]) ForEach(cb func(*T)) {
	ps.lock.Wrlock()
	defer ps.lock.Wrunlock()

	drained := ps.drainFree()
	for i := range ps.storage {
		if p := loadPtr(&ps.storage[i]); p != nil {
			cb((*T)(p))
		}
	}
	ps.restoreFree(drained)
}

// growFromReadLock is called while holding the read lock, with the free
// list observed empty. It converts to a write lock (Rd2wrlock), grows, and
// converts back down to a read lock (Wr2rdlock) — the read-lock fast path,
// rd2wr-convert-to-grow, wr2rdlock-back-down algorithm of the original.
// On ErrDeadlockAvoided it releases the read lock, waits out the other
// converter via Rd2wryield, and reports false so the caller re-acquires
// the read lock and retries the whole insert loop.
func (ps *PointerStorage[T]) growFromReadLock() bool {
	if err := ps.lock.Rd2wrlock(); err != nil {
		ps.lock.Rdunlock()
		ps.lock.Rd2wryield()
		return false
	}
	ps.growLocked(0)
	ps.lock.Wr2rdlock()
	return true
}

// growLocked must be called while holding the write lock (or, for the
// constructor, before the storage is shared at all).
func (ps *PointerStorage[T]) growLocked(requested uint32) {
	size := ps.size
	newSize := uint32(uint64(growFactorNum) * uint64(size) / growFactorDen)
	if requested > newSize {
		newSize = requested
	}
	if newSize == size {
		newSize++
	}

	drained := ps.drainFree()

	grown := make([]unsafe.Pointer, newSize)
	copy(grown, ps.storage)
	ps.storage = grown
	ps.free.grow(int(newSize))
	ps.size = newSize

	for i := newSize; i > size; i-- {
		ps.free.push(i - 1)
	}
	ps.restoreFree(drained)
}

// drainFree pops every currently-free index off the stack, in pop order.
func (ps *PointerStorage[T]) drainFree() []uint32 {
	var drained []uint32
	for {
		idx, ok := ps.free.pop()
		if !ok {
			break
		}
		drained = append(drained, idx)
	}
	return drained
}

// restoreFree pushes back indices drained by drainFree, preserving their
// original relative order at the top of the stack (the first-drained index
// was the original top, so it must be the last one pushed back).
func (ps *PointerStorage[T]) restoreFree(drained []uint32) {
	for i := len(drained) - 1; i >= 0; i-- {
		ps.free.push(drained[i])
	}
}
