// Package signals turns shutdown signals into context cancellation.
package signals

import (
	"context"
	"os/signal"
)

// notifyContext is signal.NotifyContext; tests may replace it.
var notifyContext = signal.NotifyContext

// NotifyContext returns a context cancelled on the first shutdown signal.
// The returned stop releases the signal registration.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return notifyContext(parent, ShutdownSignals()...)
}
