package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"inventrack/internal/domain"
)

// =============================================================================
// Config Tests
// =============================================================================

func TestDefaultConfig_ShouldHaveReasonableDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxRetries != 3 || cfg.InitialBackoff != 500*time.Millisecond ||
		cfg.MaxBackoff != 30*time.Second || cfg.Multiplier != 2.0 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"max retries zero", func(c *Config) { c.MaxRetries = 0 }, false},
		{"max retries negative", func(c *Config) { c.MaxRetries = -1 }, true},
		{"initial backoff zero", func(c *Config) { c.InitialBackoff = 0 }, true},
		{"max backoff zero", func(c *Config) { c.MaxBackoff = 0 }, true},
		{"multiplier below one", func(c *Config) { c.Multiplier = 0.5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("wantErr=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

// =============================================================================
// IsRetryable Tests
// =============================================================================

// timeoutErr implements net.Error with Timeout() = true.
type timeoutErr struct{}

func (t *timeoutErr) Error() string   { return "i/o timeout" }
func (t *timeoutErr) Timeout() bool   { return true }
func (t *timeoutErr) Temporary() bool { return true }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"500", errors.New("error, status code: 500, message: internal"), true},
		{"502", errors.New("openai: 502 Bad Gateway"), true},
		{"503", errors.New("googleapi: Error 503: overloaded"), true},
		{"429", errors.New("error, status code: 429, message: rate limit"), true},
		{"400", errors.New("error, status code: 400, message: bad request"), false},
		{"401", errors.New("openai: 401 Unauthorized"), false},
		{"timeout", &net.OpError{Op: "dial", Net: "tcp", Err: &timeoutErr{}}, true},
		{"connection refused", errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"), true},
		{"unexpected EOF", fmt.Errorf("stream: %w", errors.New("unexpected EOF")), true},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("model: %w", context.DeadlineExceeded), false},
		{"generic", errors.New("something went wrong"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// =============================================================================
// StartStream / RetryableModel Tests
// =============================================================================

// mockModel fails attempts whose index has a non-nil entry in errs, either
// from Stream itself (early) or as the first chunk.
type mockModel struct {
	calls     int32
	errs      []error
	asChunk   bool
	chunkText string
}

func (m *mockModel) Stream(ctx context.Context, _ domain.ModelRequest) (<-chan domain.ModelChunk, error) {
	idx := int(atomic.AddInt32(&m.calls, 1)) - 1
	var err error
	if idx < len(m.errs) {
		err = m.errs[idx]
	}
	if err != nil && !m.asChunk {
		return nil, err
	}
	ch := make(chan domain.ModelChunk, 2)
	if err != nil {
		ch <- domain.ModelChunk{Kind: domain.ChunkError, Err: err}
	} else {
		ch <- domain.ModelChunk{Kind: domain.ChunkText, Text: m.chunkText}
		ch <- domain.ModelChunk{Kind: domain.ChunkText, Text: "!"}
	}
	close(ch)
	return ch, nil
}

func drain(ch <-chan domain.ModelChunk) string {
	var s string
	for c := range ch {
		s += c.Text
	}
	return s
}

func noopSleep(time.Duration) {}

func TestStartStream_ShouldReplayFirstChunk(t *testing.T) {
	ch, err := StartStream(context.Background(), &mockModel{chunkText: "hello"}, domain.ModelRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := drain(ch); got != "hello!" {
		t.Errorf("want %q, got %q", "hello!", got)
	}
}

func TestStartStream_WhenFirstChunkIsError_ShouldReturnIt(t *testing.T) {
	boom := errors.New("error, status code: 503")
	_, err := StartStream(context.Background(), &mockModel{errs: []error{boom}, asChunk: true}, domain.ModelRequest{})
	if !errors.Is(err, boom) {
		t.Errorf("want %v, got %v", boom, err)
	}
}

func TestNewRetryableModel_WhenInnerIsNil_ShouldPanic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for nil inner model")
		}
	}()
	NewRetryableModel(nil, DefaultConfig())
}

func TestRetryableModel_Stream_WhenRetryableThenSuccess_ShouldRetry(t *testing.T) {
	for _, asChunk := range []bool{false, true} {
		inner := &mockModel{errs: []error{errors.New("status code: 503")}, asChunk: asChunk, chunkText: "ok"}
		p := NewRetryableModel(inner, DefaultConfig())
		p.sleepFunc = noopSleep

		ch, err := p.Stream(context.Background(), domain.ModelRequest{})
		if err != nil {
			t.Fatalf("asChunk=%v: unexpected error: %v", asChunk, err)
		}
		if got := drain(ch); got != "ok!" {
			t.Errorf("asChunk=%v: got %q", asChunk, got)
		}
		if atomic.LoadInt32(&inner.calls) != 2 {
			t.Errorf("asChunk=%v: expected 2 calls, got %d", asChunk, inner.calls)
		}
	}
}

func TestRetryableModel_Stream_WhenNonRetryable_ShouldNotRetry(t *testing.T) {
	inner := &mockModel{errs: []error{errors.New("status code: 401")}}
	p := NewRetryableModel(inner, DefaultConfig())
	p.sleepFunc = noopSleep

	if _, err := p.Stream(context.Background(), domain.ModelRequest{}); err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&inner.calls) != 1 {
		t.Errorf("expected 1 call, got %d", inner.calls)
	}
}

func TestRetryableModel_Stream_WhenExhausted_ShouldUseExponentialBackoff(t *testing.T) {
	serverErr := errors.New("status code: 500")
	inner := &mockModel{errs: []error{serverErr, serverErr, serverErr, serverErr}}
	cfg := Config{MaxRetries: 3, InitialBackoff: 100 * time.Millisecond, MaxBackoff: 250 * time.Millisecond, Multiplier: 2.0}
	p := NewRetryableModel(inner, cfg)
	var sleeps []time.Duration
	p.sleepFunc = func(d time.Duration) { sleeps = append(sleeps, d) }

	_, err := p.Stream(context.Background(), domain.ModelRequest{})
	if !errors.Is(err, serverErr) {
		t.Fatalf("want wrapped server error, got %v", err)
	}
	if atomic.LoadInt32(&inner.calls) != 4 {
		t.Errorf("expected 4 calls, got %d", inner.calls)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 250 * time.Millisecond}
	if len(sleeps) != len(want) {
		t.Fatalf("sleeps: want %v, got %v", want, sleeps)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Errorf("sleep %d: want %v, got %v", i, want[i], sleeps[i])
		}
	}
}

func TestRetryableModel_Stream_WhenCanceledDuringBackoff_ShouldReturnContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := &mockModel{errs: []error{errors.New("status code: 503"), errors.New("status code: 503")}}
	cfg := DefaultConfig()
	cfg.MaxRetries = 5
	p := NewRetryableModel(inner, cfg)
	p.sleepFunc = func(time.Duration) { cancel() }

	_, err := p.Stream(ctx, domain.ModelRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}
