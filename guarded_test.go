package synx

import (
	"sync"
	"testing"
)

func TestReadWriteGuarded_Basic(t *testing.T) {
	g := NewReadWriteGuarded(0, &PackedRwSpinLock{})

	w := g.WriteAccess()
	*w.Get() = 42
	w.Release()

	r := g.ReadAccess()
	if got := *r.Get(); got != 42 {
		t.Fatalf("Get() = %d, want 42", got)
	}
	r.Release()
}

func TestReadWriteGuarded_Upgrade(t *testing.T) {
	g := NewReadWriteGuarded(1, &PackedRwSpinLock{})

	r := g.ReadAccess()
	w, err := r.Upgrade()
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	*w.Get() *= 2
	w.Release()

	r2 := g.ReadAccess()
	if got := *r2.Get(); got != 2 {
		t.Fatalf("Get() = %d, want 2", got)
	}
	r2.Release()
}

func TestReadWriteGuarded_DowngradeAndCarry(t *testing.T) {
	g := NewReadWriteGuarded(0, &PackedRwSpinLock{})

	w := g.WriteAccess()
	*w.Get() = 7
	r := w.Downgrade()
	if got := *r.Get(); got != 7 {
		t.Fatalf("Get() = %d, want 7", got)
	}
	r.Release()

	w2 := g.WriteAccess()
	*w2.Get() = 9
	carry := w2.CarryToRead()
	r2 := carry.IntoRat()
	if got := *r2.Get(); got != 9 {
		t.Fatalf("Get() = %d, want 9", got)
	}
	r2.Release()
}

func TestReadWriteGuarded_DoubleReleasePanics(t *testing.T) {
	if !assertionsEnabled {
		t.Skip("assertions disabled under synx_noassert")
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic on double release")
		}
	}()
	g := NewReadWriteGuarded(0, &PackedRwSpinLock{})
	r := g.ReadAccess()
	r.Release()
	r.Release()
}

func TestReadWriteGuarded_Concurrent(t *testing.T) {
	g := NewReadWriteGuarded(0, &PackedRwSpinLock{})
	const writers, loops = 8, 500

	var wg sync.WaitGroup
	wg.Add(writers)
	for range writers {
		go func() {
			defer wg.Done()
			for range loops {
				w := g.WriteAccess()
				*w.Get()++
				w.Release()
			}
		}()
	}
	wg.Wait()

	r := g.ReadAccess()
	defer r.Release()
	if got := *r.Get(); got != writers*loops {
		t.Fatalf("Get() = %d, want %d", got, writers*loops)
	}
}

func TestReadWriteGuarded_CloseClean(t *testing.T) {
	g := NewReadWriteGuarded(0, &PackedRwSpinLock{})
	r := g.ReadAccess()
	r.Release()
	g.Close()
}

func TestReadWriteGuarded_CloseWithOutstandingTokenPanics(t *testing.T) {
	if !assertionsEnabled {
		t.Skip("assertions disabled under synx_noassert")
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic on Close with an outstanding token")
		}
	}()
	g := NewReadWriteGuarded(0, &PackedRwSpinLock{})
	_ = g.ReadAccess()
	g.Close()
}

func TestPrimitiveGuarded_Basic(t *testing.T) {
	g := NewPrimitiveGuarded(0)

	tok := g.Access()
	*tok.Get() = 5
	tok.Release()

	tok2, ok := g.TryAccess()
	if !ok {
		t.Fatalf("TryAccess failed on an unlocked guard")
	}
	if got := *tok2.Get(); got != 5 {
		t.Fatalf("Get() = %d, want 5", got)
	}
	tok2.Release()
}

func TestOneThreadGuarded_SameGoroutine(t *testing.T) {
	g := NewOneThreadGuarded(0)
	tok := g.Access()
	*tok.Get() = 3
	tok.Release()

	tok2 := g.Access()
	if got := *tok2.Get(); got != 3 {
		t.Fatalf("Get() = %d, want 3", got)
	}
	tok2.Release()
}

func TestOneThreadGuarded_CloseWithOutstandingTokenPanics(t *testing.T) {
	if !assertionsEnabled {
		t.Skip("assertions disabled under synx_noassert")
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic on Close with an outstanding token")
		}
	}()
	g := NewOneThreadGuarded(0)
	g.Access()
	g.Close()
}

func TestOneThreadGuarded_DifferentGoroutinePanics(t *testing.T) {
	if !assertionsEnabled {
		t.Skip("assertions disabled under synx_noassert")
	}
	g := NewOneThreadGuarded(0)
	g.Access()

	done := make(chan bool, 1)
	go func() {
		defer func() {
			done <- recover() != nil
		}()
		g.Access()
	}()
	if panicked := <-done; !panicked {
		t.Fatalf("expected a panic when accessed from a different goroutine")
	}
}
