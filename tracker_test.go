package synx

import (
	"sync"
	"testing"
)

func TestTrackedObject_Basic(t *testing.T) {
	obj := NewTrackedObject("hello", &PackedRwSpinLock{})

	r := obj.ReadAccess()
	if got := *r.Get(); got != "hello" {
		t.Fatalf("Get() = %q, want %q", got, "hello")
	}
	r.Release()

	w := obj.WriteAccess()
	*w.Get() = "updated"
	w.Release()

	r2 := obj.ReadAccess()
	if got := *r2.Get(); got != "updated" {
		t.Fatalf("Get() = %q, want %q", got, "updated")
	}
	r2.Release()
}

func TestTrackedObject_HandleSurvivesReplace(t *testing.T) {
	obj := NewTrackedObject("first", &PackedRwSpinLock{})
	handle := obj.Handle()

	r := handle.ReadAccess()
	if got := *r.Get(); got != "first" {
		t.Fatalf("Get() = %q, want %q", got, "first")
	}
	r.Release()

	obj.Replace("second", &PackedRwSpinLock{})

	r2 := handle.ReadAccess()
	if got := *r2.Get(); got != "second" {
		t.Fatalf("Get() = %q, want %q (handle should follow Replace)", got, "second")
	}
	r2.Release()
}

func TestTracker_ConcurrentRetarget(t *testing.T) {
	g1 := NewReadWriteGuarded(1, &PackedRwSpinLock{})
	tracker := NewTracker(g1)

	var wg sync.WaitGroup
	const readers = 16
	wg.Add(readers)
	for range readers {
		go func() {
			defer wg.Done()
			for range 200 {
				r := tracker.ReadAccess()
				_ = *r.Get()
				r.Release()
			}
		}()
	}

	g2 := NewReadWriteGuarded(2, &PackedRwSpinLock{})
	prev := tracker.Retarget(g2)
	if prev != g1 {
		t.Fatalf("Retarget did not return the previous target")
	}

	wg.Wait()

	r := tracker.ReadAccess()
	if got := *r.Get(); got != 2 {
		t.Fatalf("Get() = %d, want 2 after Retarget", got)
	}
	r.Release()
}
