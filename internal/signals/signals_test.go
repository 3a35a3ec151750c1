package signals

import (
	"context"
	"os"
	"slices"
	"testing"
)

func TestShutdownSignals_ShouldIncludeInterrupt(t *testing.T) {
	if !slices.Contains(ShutdownSignals(), os.Interrupt) {
		t.Error("ShutdownSignals() should include os.Interrupt")
	}
}

func TestNotifyContext_ShouldRegisterEveryShutdownSignal(t *testing.T) {
	orig := notifyContext
	t.Cleanup(func() { notifyContext = orig })
	var got []os.Signal
	notifyContext = func(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
		got = sigs
		return context.WithCancel(parent)
	}

	ctx, stop := NotifyContext(context.Background())
	defer stop()

	if !slices.Equal(got, ShutdownSignals()) {
		t.Errorf("registered %v, want %v", got, ShutdownSignals())
	}
	if ctx.Err() != nil {
		t.Error("context should not be done before a signal")
	}
}

func TestNotifyContext_WhenParentCancelled_ShouldBeDone(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := NotifyContext(parent)
	defer stop()

	cancel()

	<-ctx.Done()
}
