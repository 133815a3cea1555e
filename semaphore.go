package synx

import (
	"sync/atomic"

	"github.com/gosynx/synx/internal/opt"
)

const (
	semaWaiterShift = 32
	semaOneWaiter   = uint64(1) << semaWaiterShift
	semaTokensMask  = semaOneWaiter - 1
)

// Semaphore is a counting semaphore: a token counter that can be posted to
// and waited on. A goroutine that tries to take a token that isn't there
// blocks until one becomes available.
//
// The counter is packed into a single 64-bit atomic word exactly as the
// futex-based original does: the low 32 bits hold the available token
// count, the high 32 bits hold the number of blocked waiters. Go has no
// futex syscall to compare the word against before blocking, so waiting
// goroutines park on opt.Sema (the runtime's internal semaphore, reached
// via the same //go:linkname path the rest of this package's slow paths
// use) instead of FUTEX_WAIT; the word itself still carries both counts so
// Post can always tell, from a single load, whether a wake is owed.
//
// Size: 16 bytes (8 byte word + 4 byte futex-like wake word, padded).
type Semaphore struct {
	_    noCopy
	word atomic.Uint64
	sema opt.Sema
}

// NewSemaphore returns a Semaphore initialized with n tokens.
func NewSemaphore(n uint32) *Semaphore {
	s := &Semaphore{}
	s.word.Store(uint64(n))
	return s
}

// Post adds n tokens to the semaphore. If there are waiting goroutines,
// up to n of them are woken to race for the newly available tokens.
// Panics with a ContractViolation if n would overflow the 32-bit token
// field.
func (s *Semaphore) Post(n uint32) {
	if n == 0 {
		return
	}
	prev := s.word.Add(uint64(n)) - uint64(n)
	prevTokens := prev & semaTokensMask
	if assertionsEnabled && prevTokens+uint64(n) > semaTokensMask {
		assertFails(SemaphoreOverflow, "Semaphore.Post(%d): token count would overflow (currently %d)", n, prevTokens)
	}
	nwaiters := prev >> semaWaiterShift
	if nwaiters > 0 {
		toWake := n
		if uint64(toWake) > nwaiters {
			toWake = uint32(nwaiters)
		}
		for range toWake {
			s.sema.Release()
		}
	}
}

// Wait removes one token from the semaphore, blocking until one is
// available. Because Wait increments the waiter count before its blocking
// wait, any Post that follows is guaranteed to observe waiters>0 and issue
// a wake — no lost-wakeup window exists between the two.
func (s *Semaphore) Wait() {
	word := s.word.Load()
	for {
		tokens := word & semaTokensMask
		if tokens == 0 {
			break
		}
		if s.word.CompareAndSwap(word, word-1) {
			return
		}
		word = s.word.Load()
	}

	word = s.word.Add(semaOneWaiter)
	for {
		tokens := word & semaTokensMask
		if tokens == 0 {
			s.sema.Acquire()
			word = s.word.Load()
			continue
		}
		if s.word.CompareAndSwap(word, word-semaOneWaiter-1) {
			return
		}
		word = s.word.Load()
	}
}

// TryWait attempts to remove one token without blocking. Returns true on
// success.
func (s *Semaphore) TryWait() bool {
	word := s.word.Load()
	for {
		if word&semaTokensMask == 0 {
			return false
		}
		if s.word.CompareAndSwap(word, word-1) {
			return true
		}
		word = s.word.Load()
	}
}

// Tokens returns the current number of available tokens. For diagnostics
// and tests only; the value may be stale the instant it is returned.
func (s *Semaphore) Tokens() uint32 {
	return uint32(s.word.Load() & semaTokensMask)
}

// Waiters returns the current number of blocked waiters. For diagnostics
// and tests only.
func (s *Semaphore) Waiters() uint32 {
	return uint32(s.word.Load() >> semaWaiterShift)
}
