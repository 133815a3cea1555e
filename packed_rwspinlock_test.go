package synx

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

func TestPackedRwSpinLock_Basic(t *testing.T) {
	var l PackedRwSpinLock
	var a int
	l.Wrlock()
	a = 1
	l.Wrunlock()
	l.Rdlock()
	_ = a
	l.Rdunlock()
}

func TestPackedRwSpinLock_ReadersAndWriters(t *testing.T) {
	var l PackedRwSpinLock
	var readers, writers int32

	const loops = 2000
	readerN := runtime.GOMAXPROCS(0)
	writerN := 2

	var wg sync.WaitGroup
	wg.Add(readerN + writerN)

	for range readerN {
		go func() {
			defer wg.Done()
			for range loops {
				l.Rdlock()
				n := atomic.AddInt32(&readers, 1)
				if atomic.LoadInt32(&writers) != 0 {
					t.Errorf("reader observed active writer")
				}
				if n <= 0 {
					t.Errorf("invalid reader count")
				}
				atomic.AddInt32(&readers, -1)
				l.Rdunlock()
			}
		}()
	}

	for range writerN {
		go func() {
			defer wg.Done()
			for range loops {
				l.Wrlock()
				if atomic.AddInt32(&writers, 1) != 1 {
					t.Errorf("multiple writers active")
				}
				if atomic.LoadInt32(&readers) != 0 {
					t.Errorf("writer observed active readers")
				}
				atomic.AddInt32(&writers, -1)
				l.Wrunlock()
			}
		}()
	}

	wg.Wait()
	if s := l.debugState(); s != 0 {
		t.Fatalf("state not fully drained: %#x", s)
	}
}

func TestPackedRwSpinLock_Wr2rdlock(t *testing.T) {
	var l PackedRwSpinLock
	l.Wrlock()
	l.Wr2rdlock()
	if !rwReaderPresent(l.debugState()) {
		t.Fatalf("expected reader present after Wr2rdlock")
	}
	if rwWriterPresent(l.debugState()) {
		t.Fatalf("expected no writer present after Wr2rdlock")
	}
	l.Rdunlock()
}

func TestPackedRwSpinLock_Rd2wrlock(t *testing.T) {
	var l PackedRwSpinLock
	l.Rdlock()
	if err := l.Rd2wrlock(); err != nil {
		t.Fatalf("Rd2wrlock: %v", err)
	}
	if !rwActualWriterPresent(l.debugState()) {
		t.Fatalf("expected writer present after Rd2wrlock")
	}
	l.Wrunlock()
}

func TestPackedRwSpinLock_Rd2wrlockConflict(t *testing.T) {
	var l PackedRwSpinLock
	// Two independent readers, each about to try converting.
	l.Rdlock()
	l.Rdlock()

	results := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for range 2 {
		go func() {
			defer wg.Done()
			err := l.Rd2wrlock()
			if err == ErrDeadlockAvoided {
				// Per the package's error contract: release the read
				// lock, wait out the winner, then this reader's
				// transaction would retry from the top.
				l.Rdunlock()
				l.Rd2wryield()
			} else {
				l.Wrunlock()
			}
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var nilCount, errCount int
	for err := range results {
		if err == nil {
			nilCount++
		} else if err == ErrDeadlockAvoided {
			errCount++
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if nilCount != 1 || errCount != 1 {
		t.Fatalf("expected exactly one winner and one ErrDeadlockAvoided, got %d winners, %d errors", nilCount, errCount)
	}
	if s := l.debugState(); s != 0 {
		t.Fatalf("state not fully drained: %#x", s)
	}
}
