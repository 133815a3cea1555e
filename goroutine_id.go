package synx

import "runtime"

// goroutineID returns an identifier for the calling goroutine, unique among
// currently-live goroutines, used by NonRecursiveMutex to detect self-lock
// without holding any lock.
//
// There is no supported way to read the runtime's internal goroutine id
// without parsing runtime.Stack's output; this is the portable fallback
// every platform has, at the cost of an allocation-free but non-trivial
// parse on every call. NonRecursiveMutex only pays this cost on lock/
// try_lock/is_self_locked, never on a hot read/write-lock fast path, so the
// cost is acceptable here even though it would not be on C5's fast paths.
//
//go:nosplit
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGoroutineID(buf[:n])
}

// parseGoroutineID parses the leading "goroutine 123 [running]:" line
// produced by runtime.Stack into the numeric id, or 0 if the format is
// unrecognized.
func parseGoroutineID(buf []byte) int64 {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}
	var id int64
	for _, c := range buf[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
