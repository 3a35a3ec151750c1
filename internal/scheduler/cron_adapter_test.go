package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// RobfigCronEngine Tests
// =============================================================================

func TestRobfigCronEngine_ShouldImplementCronEngineInterface(t *testing.T) {
	var _ CronEngine = NewRobfigCronEngine(nil)
}

func TestRobfigCronEngine_AddFunc_WhenInvalidCron_ShouldReturnError(t *testing.T) {
	engine := NewRobfigCronEngine(nil)
	defer engine.Stop()

	if _, err := engine.AddFunc("not-a-cron-expression", func() {}); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestRobfigCronEngine_Remove_ShouldNotPanic(t *testing.T) {
	engine := NewRobfigCronEngine(nil)
	defer engine.Stop()

	id, err := engine.AddFunc("@every 1h", func() {})
	if err != nil {
		t.Fatalf("AddFunc: %v", err)
	}
	engine.Remove(id)
}

func TestRobfigCronEngine_WhenJobPanics_ShouldRecoverAndKeepFiring(t *testing.T) {
	// Given: a job that panics on its first run
	engine := NewRobfigCronEngine(nil)
	var runs atomic.Int32
	_, err := engine.AddFunc("@every 1s", func() {
		if runs.Add(1) == 1 {
			panic("first run")
		}
	})
	if err != nil {
		t.Fatalf("AddFunc: %v", err)
	}

	// When
	engine.Start()
	defer engine.Stop()

	// Then: the engine survives and fires again
	deadline := time.Now().Add(4 * time.Second)
	for time.Now().Before(deadline) {
		if runs.Load() >= 2 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("expected at least 2 runs, got %d", runs.Load())
}

func TestValidateSpec(t *testing.T) {
	for _, spec := range []string{"@hourly", "0 */6 * * *", "@every 30m"} {
		if err := ValidateSpec(spec); err != nil {
			t.Errorf("ValidateSpec(%q) = %v", spec, err)
		}
	}
	if err := ValidateSpec("61 * * * *"); err == nil {
		t.Error("expected error for out-of-range minute")
	}
}
