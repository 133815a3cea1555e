package synx

import (
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/gosynx/synx/internal/opt"
)

// noCopy may be embedded in structs which must not be copied after first
// use. Every lock and token type in this package embeds one so `go vet`'s
// -copylocks check catches an accidental pass-by-value.
//
// See https://golang.org/issues/8005#issuecomment-190753527 for details.
// It must not be embedded directly (rather than as a named field), since
// that would export its Lock/Unlock methods.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// delay backs off a spin loop: a few rounds of the runtime's own adaptive
// spin (the same one sync.Mutex uses, reached via linkname since it isn't
// exported), then a short sleep once spinning stops paying off. The 500µs
// figure is the same order of magnitude folly's Sleeper backoff uses for
// this same purpose.
func delay(spins *int) {
	if trySpin(spins) {
		return
	}
	*spins = 0
	time.Sleep(500 * time.Microsecond)
}

func trySpin(spins *int) bool {
	if runtime_canSpin(*spins) {
		*spins++
		runtime_doSpin()
		return true
	}
	return false
}

//go:linkname runtime_canSpin sync.runtime_canSpin
func runtime_canSpin(i int) bool

//go:linkname runtime_doSpin sync.runtime_doSpin
func runtime_doSpin()

// isTSO reports whether the target architecture's memory model makes plain
// pointer-sized loads/stores safe substitutes for atomic ones (x86/s390x are
// TSO; everything else needs the real atomic op). Disabled under the race
// detector, which wants every shared access to go through atomic.* so it can
// instrument it.
const isTSO = !opt.Race_ &&
	(runtime.GOARCH == "amd64" || runtime.GOARCH == "386" || runtime.GOARCH == "s390x")

// loadPtr loads addr, atomically where the architecture requires it.
// PointerStorage's slots are written by Insert under only a read lock, so a
// concurrent Get on another goroutine needs this to observe either the old
// or the new value, never a torn one.
//
//go:nosplit
func loadPtr(addr *unsafe.Pointer) unsafe.Pointer {
	if isTSO {
		return *addr
	}
	return atomic.LoadPointer(addr)
}

// storePtr stores val into addr, atomically where the architecture requires
// it. See loadPtr.
//
//go:nosplit
func storePtr(addr *unsafe.Pointer, val unsafe.Pointer) {
	if isTSO {
		*addr = val
		return
	}
	atomic.StorePointer(addr, val)
}
