package lock

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTryAcquireExcludesSecondCaller(t *testing.T) {
	m := NewMemoryManager()
	ctx := context.Background()

	if !m.TryAcquire(ctx, StudentKey("52300001"), time.Minute) {
		t.Fatal("first acquire should succeed")
	}
	if m.TryAcquire(ctx, StudentKey("52300001"), time.Minute) {
		t.Fatal("second acquire for the same key should fail while the lease is live")
	}
	if !m.TryAcquire(ctx, StudentKey("52300002"), time.Minute) {
		t.Fatal("acquire for a different key should succeed")
	}
}

func TestTryAcquireTakesOverExpiredLease(t *testing.T) {
	m := NewMemoryManager()
	ctx := context.Background()

	if !m.TryAcquire(ctx, "k", time.Millisecond) {
		t.Fatal("first acquire should succeed")
	}
	time.Sleep(5 * time.Millisecond)
	if !m.TryAcquire(ctx, "k", time.Minute) {
		t.Fatal("acquire should take over an expired lease")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := NewMemoryManager()
	ctx := context.Background()

	m.Release(ctx, "absent")

	if !m.TryAcquire(ctx, "k", time.Minute) {
		t.Fatal("acquire should succeed")
	}
	m.Release(ctx, "k")
	m.Release(ctx, "k")
	if !m.TryAcquire(ctx, "k", time.Minute) {
		t.Fatal("acquire should succeed after release")
	}
}

func TestTryAcquireSingleWinnerUnderContention(t *testing.T) {
	m := NewMemoryManager()
	ctx := context.Background()

	const n = 64
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if m.TryAcquire(ctx, "contended", time.Minute) {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if winners != 1 {
		t.Fatalf("want exactly 1 winner, got %d", winners)
	}
}
