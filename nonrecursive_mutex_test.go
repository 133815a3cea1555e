package synx

import (
	"sync"
	"testing"
)

func TestNonRecursiveMutex_Basic(t *testing.T) {
	var mu NonRecursiveMutex
	var a int
	mu.Lock()
	a = 1
	mu.Unlock()
	if !mu.TryLock() {
		t.Fatalf("expected TryLock to succeed on an unlocked mutex")
	}
	_ = a
	mu.Unlock()
}

func TestNonRecursiveMutex_TryLockFails(t *testing.T) {
	var mu NonRecursiveMutex
	mu.Lock()
	defer mu.Unlock()

	done := make(chan bool, 1)
	go func() {
		done <- mu.TryLock()
	}()
	if ok := <-done; ok {
		t.Fatalf("expected TryLock to fail while already locked")
	}
}

func TestNonRecursiveMutex_Contended(t *testing.T) {
	var mu NonRecursiveMutex
	var counter int
	const n, loops = 8, 2000

	var wg sync.WaitGroup
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			for range loops {
				mu.Lock()
				counter++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if counter != n*loops {
		t.Fatalf("counter = %d, want %d", counter, n*loops)
	}
}

func TestNonRecursiveMutex_SelfLockPanics(t *testing.T) {
	if !assertionsEnabled {
		t.Skip("assertions disabled under synx_noassert")
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic on self-lock")
		}
	}()
	var mu NonRecursiveMutex
	mu.Lock()
	mu.Lock()
}
