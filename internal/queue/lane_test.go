package queue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewLaneQueue_ShouldStartWithZeroLanes(t *testing.T) {
	q := NewLaneQueue()
	if q.LaneCount() != 0 {
		t.Errorf("expected 0 lanes, got %d", q.LaneCount())
	}
}

func TestDo_WhenWorkReturnsError_ShouldPropagateError(t *testing.T) {
	q := NewLaneQueue()
	expected := errors.New("write failed")
	err := q.Do(context.Background(), "prod-1", func(context.Context) error {
		return expected
	})
	if !errors.Is(err, expected) {
		t.Errorf("want %v, got %v", expected, err)
	}
}

func TestDo_WhenEmptyLaneID_ShouldNotExecuteWork(t *testing.T) {
	q := NewLaneQueue()
	executed := false
	err := q.Do(context.Background(), "", func(context.Context) error {
		executed = true
		return nil
	})
	if !errors.Is(err, ErrEmptyLaneID) {
		t.Errorf("want ErrEmptyLaneID, got %v", err)
	}
	if executed {
		t.Error("work must not run for an empty lane ID")
	}
}

func TestDo_WhenSameLane_ShouldSerializeExecution(t *testing.T) {
	// Given: many writers on one product
	q := NewLaneQueue()
	var inFlight, maxInFlight int32
	var wg sync.WaitGroup

	// When: they all run at once
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(context.Background(), "prod-1", func(context.Context) error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					m := atomic.LoadInt32(&maxInFlight)
					if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	// Then: never more than one ran at a time
	if maxInFlight != 1 {
		t.Errorf("expected max 1 concurrent execution, got %d", maxInFlight)
	}
}

func TestDo_WhenDifferentLanes_ShouldAllowConcurrentExecution(t *testing.T) {
	q := NewLaneQueue()
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	var wg sync.WaitGroup

	for _, id := range []string{"prod-a", "prod-b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = q.Do(context.Background(), id, func(context.Context) error {
				started <- struct{}{}
				<-release
				return nil
			})
		}(id)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("different lanes should run concurrently")
		}
	}
	if q.LaneCount() != 2 {
		t.Errorf("expected 2 active lanes, got %d", q.LaneCount())
	}
	close(release)
	wg.Wait()
}

func TestDo_WhenContextCancelledWhileWaiting_ShouldReturnContextError(t *testing.T) {
	// Given: a lane held by a slow writer
	q := NewLaneQueue()
	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = q.Do(context.Background(), "prod-1", func(context.Context) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	// When: a second writer gives up while waiting
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ran := false
	err := q.Do(ctx, "prod-1", func(context.Context) error {
		ran = true
		return nil
	})

	// Then: it returns the context error without running
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("want DeadlineExceeded, got %v", err)
	}
	if ran {
		t.Error("work must not run after cancellation")
	}
	close(release)
}

func TestDo_WhenContextAlreadyCancelled_ShouldNotRunWork(t *testing.T) {
	q := NewLaneQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.Do(ctx, "prod-1", func(context.Context) error {
		t.Error("work must not run")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want Canceled, got %v", err)
	}
}

func TestDo_WhenWorkDone_ShouldReleaseLane(t *testing.T) {
	q := NewLaneQueue()
	for i := 0; i < 5; i++ {
		_ = q.Do(context.Background(), "prod-x", func(context.Context) error { return nil })
	}
	if q.LaneCount() != 0 {
		t.Errorf("expected lanes to be released, got %d", q.LaneCount())
	}
}

func TestDo_WhenWorkPanics_ShouldRecoverAndReturnError(t *testing.T) {
	q := NewLaneQueue()
	err := q.Do(context.Background(), "prod-1", func(context.Context) error {
		panic("boom")
	})
	if err == nil || !strings.Contains(err.Error(), "panic: boom") {
		t.Errorf("expected recovered panic error, got %v", err)
	}
	// The lane must be usable afterwards.
	if err := q.Do(context.Background(), "prod-1", func(context.Context) error { return nil }); err != nil {
		t.Errorf("lane should recover after panic: %v", err)
	}
}
