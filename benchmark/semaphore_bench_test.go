package benchmark

import (
	"context"
	"runtime"
	"testing"

	"github.com/gosynx/synx"
	"golang.org/x/sync/semaphore"
)

const semaPermits = 64

func BenchmarkSemaphore_synx(b *testing.B) {
	b.ReportAllocs()
	s := synx.NewSemaphore(semaPermits)
	runtime.GC()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			s.Wait()
			s.Post(1)
		}
	})
}

func BenchmarkSemaphore_xsync_Weighted(b *testing.B) {
	b.ReportAllocs()
	s := semaphore.NewWeighted(semaPermits)
	ctx := context.Background()
	runtime.GC()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = s.Acquire(ctx, 1)
			s.Release(1)
		}
	})
}
