package synx

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

func TestBlockingRwMutex_Basic(t *testing.T) {
	var m BlockingRwMutex
	var a int
	m.Wrlock()
	a = 1
	m.Wrunlock()
	m.Rdlock()
	_ = a
	m.Rdunlock()
}

func TestBlockingRwMutex_ReadersAndWriters(t *testing.T) {
	var m BlockingRwMutex
	var readers, writers int32

	const loops = 1000
	readerN := runtime.GOMAXPROCS(0)
	writerN := 2

	var wg sync.WaitGroup
	wg.Add(readerN + writerN)

	for range readerN {
		go func() {
			defer wg.Done()
			for range loops {
				m.Rdlock()
				n := atomic.AddInt32(&readers, 1)
				if atomic.LoadInt32(&writers) != 0 {
					t.Errorf("reader observed active writer")
				}
				if n <= 0 {
					t.Errorf("invalid reader count")
				}
				atomic.AddInt32(&readers, -1)
				m.Rdunlock()
			}
		}()
	}

	for range writerN {
		go func() {
			defer wg.Done()
			for range loops {
				m.Wrlock()
				if atomic.AddInt32(&writers, 1) != 1 {
					t.Errorf("multiple writers active")
				}
				if atomic.LoadInt32(&readers) != 0 {
					t.Errorf("writer observed active readers")
				}
				atomic.AddInt32(&writers, -1)
				m.Wrunlock()
			}
		}()
	}

	wg.Wait()
	m.mu.Lock()
	if m.readers != 0 || m.waitingWriters != 0 || m.rd2wrCount != 0 {
		t.Fatalf("state not fully drained: readers=%d waitingWriters=%d rd2wrCount=%d", m.readers, m.waitingWriters, m.rd2wrCount)
	}
	m.mu.Unlock()
}

func TestBlockingRwMutex_WriterPriority(t *testing.T) {
	var m BlockingRwMutex
	m.Rdlock()

	writerDone := make(chan struct{})
	go func() {
		m.Wrlock()
		close(writerDone)
		m.Wrunlock()
	}()

	// Give the writer time to register as waiting.
	runtime.Gosched()
	for {
		m.mu.Lock()
		waiting := m.waitingWriters
		m.mu.Unlock()
		if waiting > 0 {
			break
		}
		runtime.Gosched()
	}

	blocked := make(chan struct{})
	go func() {
		m.Rdlock()
		close(blocked)
		m.Rdunlock()
	}()

	select {
	case <-blocked:
		t.Fatalf("new reader acquired the lock ahead of the waiting writer")
	default:
	}

	m.Rdunlock()
	<-writerDone
	<-blocked
}

func TestBlockingRwMutex_Rd2wrlockConflict(t *testing.T) {
	var m BlockingRwMutex
	m.Rdlock()
	m.Rdlock()

	results := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for range 2 {
		go func() {
			defer wg.Done()
			err := m.Rd2wrlock()
			if err == ErrDeadlockAvoided {
				m.Rdunlock()
				m.Rd2wryield()
			} else {
				m.Wrunlock()
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
}
