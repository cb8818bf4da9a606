package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestConfig() RouterConfig {
	return RouterConfig{
		DefaultMaxAttempts: 3,
		InitialBackoff:     5 * time.Millisecond,
		MaxBackoff:         10 * time.Millisecond,
		IdempotencyTTL:     100 * time.Millisecond,
		GroupBuffer:        8,
		GroupIdleTTL:       200 * time.Millisecond,
		CleanupInterval:    20 * time.Millisecond,
	}
}

func TestDispatchExecutesHandler(t *testing.T) {
	router := NewRouter(newTestConfig())
	t.Cleanup(router.Close)

	done := make(chan string, 1)
	router.RegisterHandler("config.publish_change", func(ctx context.Context, payload any) error {
		done <- payload.(string)
		return nil
	})

	if err := router.Dispatch(context.Background(), Task{Type: "config.publish_change", Payload: "g1"}); err != nil {
		t.Fatalf("dispatch returned error: %v", err)
	}

	select {
	case val := <-done:
		if val != "g1" {
			t.Fatalf("unexpected payload: %s", val)
		}
	case <-time.After(time.Second):
		t.Fatalf("handler did not run in time")
	}
}

func TestDispatchUnknownTypeAndClosed(t *testing.T) {
	router := NewRouter(newTestConfig())
	if err := router.Dispatch(context.Background(), Task{Type: "nope"}); !errors.Is(err, ErrUnknownTaskType) {
		t.Fatalf("expected unknown type error, got %v", err)
	}
	router.RegisterHandler("x", func(context.Context, any) error { return nil })
	router.Close()
	if err := router.Dispatch(context.Background(), Task{Type: "x"}); !errors.Is(err, ErrRouterClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
	if !router.Stats().RouterClosed {
		t.Fatalf("expected stats to report closed router")
	}
}

func TestDispatchIdempotency(t *testing.T) {
	router := NewRouter(newTestConfig())
	t.Cleanup(router.Close)

	var calls int32
	ready := make(chan struct{}, 1)
	router.RegisterHandler("once", func(ctx context.Context, payload any) error {
		atomic.AddInt32(&calls, 1)
		ready <- struct{}{}
		return nil
	})

	task := Task{Type: "once", Options: TaskOptions{IdempotencyKey: "dup", IdempotencyTTL: 500 * time.Millisecond}}
	if err := router.Dispatch(context.Background(), task); err != nil {
		t.Fatalf("first dispatch failed: %v", err)
	}
	if err := router.Dispatch(context.Background(), task); !errors.Is(err, ErrDuplicateTask) {
		t.Fatalf("expected duplicate error, got: %v", err)
	}

	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatalf("handler did not run for first dispatch")
	}

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected handler called once, got %d", calls)
	}
}

func TestDispatchRetriesOnError(t *testing.T) {
	router := NewRouter(newTestConfig())
	t.Cleanup(router.Close)

	var attempts int32
	done := make(chan struct{})
	router.RegisterHandler("flaky", func(ctx context.Context, payload any) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			return errors.New("fail")
		}
		close(done)
		return nil
	})

	if err := router.Dispatch(context.Background(), Task{Type: "flaky"}); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("handler did not succeed after retries")
	}

	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestGroupPreservesOrderAcrossRetries(t *testing.T) {
	router := NewRouter(newTestConfig())
	t.Cleanup(router.Close)

	var (
		mu    sync.Mutex
		seen  []int
		fails = map[int]int{0: 1}
	)
	done := make(chan struct{})
	router.RegisterHandler("ordered", func(ctx context.Context, payload any) error {
		n := payload.(int)
		mu.Lock()
		defer mu.Unlock()
		if fails[n] > 0 {
			fails[n]--
			return errors.New("transient")
		}
		seen = append(seen, n)
		if len(seen) == 3 {
			close(done)
		}
		return nil
	})

	for i := range 3 {
		if err := router.Dispatch(context.Background(), Task{Type: "ordered", Payload: i, Options: TaskOptions{GroupKey: "g1"}}); err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("tasks did not finish")
	}
	mu.Lock()
	defer mu.Unlock()
	for i, v := range seen {
		if v != i {
			t.Fatalf("expected in-order execution, got %v", seen)
		}
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	cfg := newTestConfig()
	cfg.DefaultMaxAttempts = 1
	router := NewRouter(cfg)
	t.Cleanup(router.Close)

	done := make(chan struct{})
	router.RegisterHandler("panics", func(ctx context.Context, payload any) error { panic("boom") })
	router.RegisterHandler("after", func(ctx context.Context, payload any) error { close(done); return nil })

	_ = router.Dispatch(context.Background(), Task{Type: "panics"})
	_ = router.Dispatch(context.Background(), Task{Type: "after"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("worker did not survive a panicking handler")
	}
}

func TestScheduleEveryRunsAndCancels(t *testing.T) {
	router := NewRouter(newTestConfig())
	t.Cleanup(router.Close)

	var count int32
	router.RegisterHandler("panel.sweep_sessions", func(ctx context.Context, payload any) error {
		atomic.AddInt32(&count, 1)
		return nil
	})

	cancel := router.ScheduleEvery(15*time.Millisecond, Task{Type: "panel.sweep_sessions"})
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&count) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	afterCancel := atomic.LoadInt32(&count)
	time.Sleep(60 * time.Millisecond)

	if afterCancel < 2 {
		t.Fatalf("expected scheduled task to run repeatedly, got %d", afterCancel)
	}
	if atomic.LoadInt32(&count) > afterCancel+1 {
		t.Fatalf("scheduled task continued running after cancel")
	}
}

func TestCloseRunsQueuedTasks(t *testing.T) {
	router := NewRouter(newTestConfig())

	var ran int32
	router.RegisterHandler("config.publish", func(ctx context.Context, payload any) error {
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&ran, 1)
		return nil
	})
	for i := 0; i < 5; i++ {
		if err := router.Dispatch(context.Background(), Task{Type: "config.publish", Options: TaskOptions{GroupKey: "g1"}}); err != nil {
			t.Fatalf("dispatch %d returned error: %v", i, err)
		}
	}
	router.Close()

	if got := atomic.LoadInt32(&ran); got != 5 {
		t.Fatalf("expected all 5 queued tasks to run before close returned, got %d", got)
	}
	if err := router.Dispatch(context.Background(), Task{Type: "config.publish"}); !errors.Is(err, ErrRouterClosed) {
		t.Fatalf("expected closed error after close, got %v", err)
	}
}

func TestShutdownDeadlineCancelsRemainingWork(t *testing.T) {
	router := NewRouter(newTestConfig())

	started := make(chan struct{}, 1)
	var cancelled int32
	router.RegisterHandler("slow", func(ctx context.Context, payload any) error {
		started <- struct{}{}
		<-ctx.Done()
		atomic.AddInt32(&cancelled, 1)
		return ctx.Err()
	})
	for i := 0; i < 3; i++ {
		if err := router.Dispatch(context.Background(), Task{Type: "slow", Options: TaskOptions{GroupKey: "g1", MaxAttempts: 1}}); err != nil {
			t.Fatalf("dispatch returned error: %v", err)
		}
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := router.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if got := atomic.LoadInt32(&cancelled); got != 1 {
		t.Fatalf("expected only the running task to be cancelled, got %d", got)
	}
}
