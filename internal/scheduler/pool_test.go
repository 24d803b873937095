package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"longimage/internal/scheduler"
	"longimage/internal/services"
)

func TestTasksRunInSubmitOrder(t *testing.T) {
	pool := scheduler.New(scheduler.Config{Workers: 1, QueueDepth: 16}, nil)
	ctx := context.Background()
	pool.Start(ctx)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		if err := pool.Submit(ctx, func(context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	pool.Stop()

	if len(order) != 5 {
		t.Fatalf("expected 5 tasks, got %d", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("task order violated: %v", order)
		}
	}
}

func TestConcurrencyNeverExceedsWorkerCap(t *testing.T) {
	pool := scheduler.New(scheduler.Config{Workers: 2, QueueDepth: 32}, nil)
	ctx := context.Background()
	pool.Start(ctx)

	var current, peak int64
	for i := 0; i < 10; i++ {
		if err := pool.Submit(ctx, func(context.Context) {
			now := atomic.AddInt64(&current, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if now <= old || atomic.CompareAndSwapInt64(&peak, old, now) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt64(&current, -1)
		}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	pool.Stop()

	if got := atomic.LoadInt64(&peak); got > 2 {
		t.Fatalf("concurrency exceeded cap: peak %d", got)
	}
}

func TestMemoryGateLimitsConcurrency(t *testing.T) {
	// Probe reports room for exactly one 1 GiB job.
	probe := func() (int64, bool) { return 1 << 30, true }
	pool := scheduler.New(scheduler.Config{
		Workers:           4,
		QueueDepth:        32,
		JobMemoryEstimate: 1 << 30,
	}, nil, scheduler.WithMemoryProbe(probe))
	ctx := context.Background()
	pool.Start(ctx)

	var current, peak int64
	for i := 0; i < 4; i++ {
		if err := pool.Submit(ctx, func(context.Context) {
			now := atomic.AddInt64(&current, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if now <= old || atomic.CompareAndSwapInt64(&peak, old, now) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt64(&current, -1)
		}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	pool.Stop()

	if got := atomic.LoadInt64(&peak); got != 1 {
		t.Fatalf("memory gate should cap concurrency at 1, peak %d", got)
	}
}

func TestRejectPolicyReturnsBusy(t *testing.T) {
	pool := scheduler.New(scheduler.Config{
		Workers:    1,
		QueueDepth: 1,
		Policy:     scheduler.PolicyReject,
	}, nil)
	ctx := context.Background()
	pool.Start(ctx)

	release := make(chan struct{})
	started := make(chan struct{})
	if err := pool.Submit(ctx, func(context.Context) {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	<-started

	// Worker busy; fill the single queue slot.
	if err := pool.Submit(ctx, func(context.Context) {}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	err := pool.Submit(ctx, func(context.Context) {})
	if !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(release)
	pool.Stop()
}

func TestBlockPolicyTimesOut(t *testing.T) {
	pool := scheduler.New(scheduler.Config{
		Workers:    1,
		QueueDepth: 1,
		Policy:     scheduler.PolicyBlock,
		SubmitWait: 50 * time.Millisecond,
	}, nil)
	ctx := context.Background()
	pool.Start(ctx)

	release := make(chan struct{})
	started := make(chan struct{})
	if err := pool.Submit(ctx, func(context.Context) {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	<-started
	if err := pool.Submit(ctx, func(context.Context) {}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	start := time.Now()
	err := pool.Submit(ctx, func(context.Context) {})
	if !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected ErrBusy after bounded wait, got %v", err)
	}
	if time.Since(start) < 40*time.Millisecond {
		t.Fatal("blocking submit returned before the bounded wait elapsed")
	}

	close(release)
	pool.Stop()
}

func TestStopRejectsBlockedSubmit(t *testing.T) {
	pool := scheduler.New(scheduler.Config{
		Workers:    1,
		QueueDepth: 1,
		Policy:     scheduler.PolicyBlock,
		SubmitWait: 30 * time.Second,
	}, nil)
	ctx := context.Background()
	pool.Start(ctx)

	release := make(chan struct{})
	started := make(chan struct{})
	if err := pool.Submit(ctx, func(context.Context) {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	<-started

	// One task held at the capacity gate, one filling the queue slot,
	// so the next blocking Submit has nowhere to go.
	for i := 0; i < 2; i++ {
		if err := pool.Submit(ctx, func(context.Context) {}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	blocked := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				blocked <- fmt.Errorf("Submit panicked: %v", r)
			}
		}()
		blocked <- pool.Submit(ctx, func(context.Context) {})
	}()
	time.Sleep(50 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopped)
	}()

	select {
	case err := <-blocked:
		if !errors.Is(err, services.ErrBusy) {
			t.Fatalf("expected ErrBusy from blocked submit, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("blocked submit did not return during Stop")
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not drain the pool")
	}
}

func TestSubmitAfterStopFails(t *testing.T) {
	pool := scheduler.New(scheduler.Config{Workers: 1, QueueDepth: 1}, nil)
	pool.Start(context.Background())
	pool.Stop()

	if err := pool.Submit(context.Background(), func(context.Context) {}); err == nil {
		t.Fatal("expected error after Stop")
	}
}
