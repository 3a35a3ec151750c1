package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"inventrack/internal/domain"
	"inventrack/internal/retry"
)

var errEmptyPool = errors.New("keypool: at least one key is required")

// KeyPool hands out key slots round-robin. A slot that hit a provider rate
// limit is benched until its cooldown passes. Safe for concurrent use.
type KeyPool struct {
	mu       sync.Mutex
	size     int
	cursor   int
	benched  []time.Time
	cooldown time.Duration
	nowFunc  func() time.Time
}

// NewKeyPool sizes a pool for keys. Only the count matters; each key lives
// in its own model client.
func NewKeyPool(keys []string, cooldown time.Duration) (*KeyPool, error) {
	if len(keys) == 0 {
		return nil, errEmptyPool
	}
	return &KeyPool{
		size:     len(keys),
		benched:  make([]time.Time, len(keys)),
		cooldown: cooldown,
		nowFunc:  time.Now,
	}, nil
}

func (kp *KeyPool) ready(slot int, now time.Time) bool {
	return !now.Before(kp.benched[slot])
}

// Next returns the next slot that is not benched.
func (kp *KeyPool) Next() (int, error) {
	kp.mu.Lock()
	defer kp.mu.Unlock()
	now := kp.nowFunc()
	for step := range kp.size {
		slot := (kp.cursor + step) % kp.size
		if kp.ready(slot, now) {
			kp.cursor = (slot + 1) % kp.size
			return slot, nil
		}
	}
	return -1, fmt.Errorf("keypool: all %d keys are cooling down", kp.size)
}

// MarkCooldown benches slot. Unknown slots are ignored.
func (kp *KeyPool) MarkCooldown(slot int) {
	kp.mu.Lock()
	defer kp.mu.Unlock()
	if slot >= 0 && slot < kp.size {
		kp.benched[slot] = kp.nowFunc().Add(kp.cooldown)
	}
}

func (kp *KeyPool) Len() int { return kp.size }

// Available counts slots that Next could return right now.
func (kp *KeyPool) Available() int {
	kp.mu.Lock()
	defer kp.mu.Unlock()
	now := kp.nowFunc()
	n := 0
	for slot := range kp.size {
		if kp.ready(slot, now) {
			n++
		}
	}
	return n
}

var rateLimitMarkers = []string{"429", "rate limit", "resource_exhausted", "quota"}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range rateLimitMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// =============================================================================
// KeyPoolModel
// =============================================================================

// KeyPoolModel spreads turns over one ChatModel per key. A rate limit before
// the first chunk benches that key and the turn moves to the next one once.
type KeyPoolModel struct {
	pool   *KeyPool
	models []domain.ChatModel
}

func NewKeyPoolModel(pool *KeyPool, models []domain.ChatModel) (*KeyPoolModel, error) {
	switch {
	case pool == nil:
		return nil, errors.New("keypool model: pool must not be nil")
	case len(models) == 0:
		return nil, errors.New("keypool model: at least one model is required")
	case pool.Len() != len(models):
		return nil, fmt.Errorf("keypool model: %d keys but %d models", pool.Len(), len(models))
	}
	return &KeyPoolModel{pool: pool, models: models}, nil
}

// Stream implements domain.ChatModel.
func (k *KeyPoolModel) Stream(ctx context.Context, req domain.ModelRequest) (<-chan domain.ModelChunk, error) {
	slot, err := k.pool.Next()
	if err != nil {
		return nil, err
	}
	ch, err := retry.StartStream(ctx, k.models[slot], req)
	if !isRateLimitError(err) {
		return ch, err
	}
	k.pool.MarkCooldown(slot)
	spare, nextErr := k.pool.Next()
	if nextErr != nil {
		return nil, fmt.Errorf("rate limited on every key: %w", err)
	}
	return retry.StartStream(ctx, k.models[spare], req)
}

var _ domain.ChatModel = (*KeyPoolModel)(nil)
