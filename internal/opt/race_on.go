//go:build race

package opt

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// Race_ mirrors the build tag: true here, false in race_off.go.
const Race_ = true

// Sema is a counting semaphore satisfying the same Acquire/Release contract
// race_off.go gets for free from the runtime semaphore, implemented here
// with sync.Mutex+sync.Cond (the same lazy-sync.Once-init shape
// PackedRwSpinLock uses for its own condition variables) instead of a
// linknamed runtime call, so the race detector can instrument every wait
// and wake through ordinary, supported synchronization rather than a
// runtime primitive it can't see into.
type Sema struct {
	once  sync.Once
	mu    sync.Mutex
	cond  *sync.Cond
	count uint32
}

func (s *Sema) lazyInit() {
	s.once.Do(func() {
		s.cond = sync.NewCond(&s.mu)
	})
}

// Acquire blocks until a token is available, then takes it.
func (s *Sema) Acquire() {
	s.lazyInit()
	s.mu.Lock()
	for s.count == 0 {
		s.cond.Wait()
	}
	s.count--
	s.mu.Unlock()
}

// Release posts one token, waking a blocked Acquire if one is waiting.
func (s *Sema) Release() {
	s.lazyInit()
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	s.cond.Signal()
}

// IsTSO_ under race detector, disable TSO optimizations and use conservative
// atomic loads/stores
const IsTSO_ = false

// LoadPtr conservative: atomic pointer load to satisfy race detector
//
//go:nosplit
func LoadPtr(addr *unsafe.Pointer) unsafe.Pointer {
	return atomic.LoadPointer(addr)
}

// StorePtr conservative: atomic pointer store to satisfy race detector
//
//go:nosplit
func StorePtr(addr *unsafe.Pointer, val unsafe.Pointer) {
	atomic.StorePointer(addr, val)
}

// LoadInt conservative: atomic integer load to satisfy race detector
//
//go:nosplit
func LoadInt[T ~uint32 | ~uint64 | ~uintptr](addr *T) T {
	if unsafe.Sizeof(T(0)) == 4 {
		return T(atomic.LoadUint32((*uint32)(unsafe.Pointer(addr))))
	} else {
		return T(atomic.LoadUint64((*uint64)(unsafe.Pointer(addr))))
	}
}

// StoreInt conservative: atomic integer store to satisfy race detector
//
//go:nosplit
func StoreInt[T ~uint32 | ~uint64 | ~uintptr](addr *T, val T) {
	if unsafe.Sizeof(T(0)) == 4 {
		atomic.StoreUint32((*uint32)(unsafe.Pointer(addr)), uint32(val))
	} else {
		atomic.StoreUint64((*uint64)(unsafe.Pointer(addr)), uint64(val))
	}
}

// LoadIntFast conservative: atomic integer load to satisfy race detector
//
//go:nosplit
func LoadIntFast[T ~uint32 | ~uint64 | ~uintptr](addr *T) T {
	return LoadInt(addr)
}

// StoreIntFast conservative: atomic integer store to satisfy race detector
//
//go:nosplit
func StoreIntFast[T ~uint32 | ~uint64 | ~uintptr](addr *T, val T) {
	StoreInt(addr, val)
}
