package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"inventrack/internal/domain"
)

// =============================================================================
// Backoff policy
// =============================================================================

// Config is the backoff policy applied to a model's stream start.
// MaxRetries counts attempts after the first; zero disables retrying.
type Config struct {
	MaxRetries     int           `json:"maxRetries"`
	InitialBackoff time.Duration `json:"initialBackoff"`
	MaxBackoff     time.Duration `json:"maxBackoff"`
	Multiplier     float64       `json:"multiplier"`
}

// DefaultConfig waits 500ms, 1s, 2s between up to three retries.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// Validate reports every out-of-range field at once.
func (c Config) Validate() error {
	var errs []error
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("retry: MaxRetries must be >= 0"))
	}
	if c.InitialBackoff <= 0 {
		errs = append(errs, errors.New("retry: InitialBackoff must be > 0"))
	}
	if c.MaxBackoff <= 0 {
		errs = append(errs, errors.New("retry: MaxBackoff must be > 0"))
	}
	if c.Multiplier < 1.0 {
		errs = append(errs, errors.New("retry: Multiplier must be >= 1.0"))
	}
	return errors.Join(errs...)
}

// next grows d by the multiplier, capped at MaxBackoff.
func (c Config) next(d time.Duration) time.Duration {
	grown := time.Duration(float64(d) * c.Multiplier)
	return min(grown, c.MaxBackoff)
}

// =============================================================================
// Transient failures
// =============================================================================

// transientMarkers are substrings that the provider SDKs put in errors for
// overload, rate limiting and dropped connections.
var transientMarkers = []string{
	"429", "500", "502", "503", "504", "529",
	"connection refused",
	"EOF",
}

// IsRetryable reports whether err looks transient. Cancellation and
// deadlines are the caller's decision and never retry.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	msg := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// =============================================================================
// Stream start
// =============================================================================

var errStreamFailed = errors.New("model stream failed")

// StartStream opens one model turn and waits for its first chunk. A failure
// reported before any output is returned as an error, so callers can retry
// or fail over without the consumer having seen partial text. Otherwise the
// returned channel yields every chunk, the first one included.
func StartStream(ctx context.Context, m domain.ChatModel, req domain.ModelRequest) (<-chan domain.ModelChunk, error) {
	ch, err := m.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	var head domain.ModelChunk
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c, ok := <-ch:
		if !ok {
			return ch, nil
		}
		if c.Kind == domain.ChunkError {
			return nil, cmpErr(c.Err, errStreamFailed)
		}
		head = c
	}

	out := make(chan domain.ModelChunk)
	go relay(ctx, head, ch, out)
	return out, nil
}

func cmpErr(err, fallback error) error {
	if err == nil {
		return fallback
	}
	return err
}

// relay forwards head and then the rest of src until src closes or ctx ends.
func relay(ctx context.Context, head domain.ModelChunk, src <-chan domain.ModelChunk, dst chan<- domain.ModelChunk) {
	defer close(dst)
	pending := &head
	for {
		if pending == nil {
			c, ok := <-src
			if !ok {
				return
			}
			pending = &c
		}
		select {
		case dst <- *pending:
			pending = nil
		case <-ctx.Done():
			return
		}
	}
}

// =============================================================================
// RetryableModel
// =============================================================================

// RetryableModel retries a ChatModel's stream start on transient errors.
// Once a chunk has been delivered the turn is never replayed.
type RetryableModel struct {
	inner     domain.ChatModel
	config    Config
	sleepFunc func(time.Duration)
}

// NewRetryableModel decorates inner with cfg. inner must not be nil.
func NewRetryableModel(inner domain.ChatModel, cfg Config) *RetryableModel {
	if inner == nil {
		panic("retry: inner model must not be nil")
	}
	return &RetryableModel{inner: inner, config: cfg, sleepFunc: time.Sleep}
}

// Stream implements domain.ChatModel.
func (p *RetryableModel) Stream(ctx context.Context, req domain.ModelRequest) (<-chan domain.ModelChunk, error) {
	wait := p.config.InitialBackoff
	attempts := 0
	for {
		attempts++
		ch, err := StartStream(ctx, p.inner, req)
		switch {
		case err == nil:
			return ch, nil
		case !IsRetryable(err):
			return nil, err
		case attempts > p.config.MaxRetries:
			return nil, fmt.Errorf("retries exhausted after %d attempts: %w", attempts, err)
		}

		p.sleepFunc(wait)
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		wait = p.config.next(wait)
	}
}

var _ domain.ChatModel = (*RetryableModel)(nil)
