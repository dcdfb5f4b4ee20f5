package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestWaitEnforcesSpacing(t *testing.T) {
	interval := 50 * time.Millisecond
	lim := NewInterval(interval)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := lim.Wait(ctx); err != nil {
			t.Fatalf("Wait() error: %v", err)
		}
	}
	// First slot is immediate; the next two wait one interval each.
	if elapsed := time.Since(start); elapsed < 2*interval-5*time.Millisecond {
		t.Errorf("three grants took %v, want at least %v", elapsed, 2*interval)
	}
}

func TestWaitConcurrentCallers(t *testing.T) {
	interval := 30 * time.Millisecond
	lim := NewInterval(interval)

	const callers = 4
	grants := make([]time.Time, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := lim.Wait(context.Background()); err != nil {
				t.Errorf("Wait() error: %v", err)
				return
			}
			grants[i] = time.Now()
		}(i)
	}
	wg.Wait()

	sort.Slice(grants, func(a, b int) bool { return grants[a].Before(grants[b]) })
	for i := 1; i < callers; i++ {
		if gap := grants[i].Sub(grants[i-1]); gap < interval-5*time.Millisecond {
			t.Errorf("grants %d and %d only %v apart, want at least %v", i-1, i, gap, interval)
		}
	}
}

func TestWaitCancellation(t *testing.T) {
	lim := NewInterval(time.Minute)
	ctx := context.Background()
	if err := lim.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	cancelled, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := lim.Wait(cancelled); err == nil {
		t.Error("Wait() should fail when the context expires before the slot")
	}
}

func TestDisabledInterval(t *testing.T) {
	lim := NewInterval(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := lim.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("disabled limiter should not block, took %v", elapsed)
	}
}
