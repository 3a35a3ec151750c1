package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrEmptyLaneID is returned when Do is called with an empty lane ID.
var ErrEmptyLaneID = errors.New("queue: lane ID must not be empty")

// lane admits one holder at a time. refs counts callers holding or waiting
// for it; the lane is dropped from the queue when refs reaches zero.
type lane struct {
	slot chan struct{}
	refs int
}

// LaneQueue serializes work per key (for example a product ID). Different
// keys run concurrently. Lanes exist only while work for their key is
// pending, so the queue does not grow with the number of keys ever seen.
type LaneQueue struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

// NewLaneQueue creates a new LaneQueue ready for use.
func NewLaneQueue() *LaneQueue {
	return &LaneQueue{lanes: make(map[string]*lane)}
}

// Do runs fn once no other work for laneID is running. It blocks until fn
// returns or ctx is cancelled while waiting for the lane. A panic in fn is
// recovered and returned as an error.
func (q *LaneQueue) Do(ctx context.Context, laneID string, fn func(context.Context) error) error {
	if laneID == "" {
		return ErrEmptyLaneID
	}
	l := q.acquire(laneID)
	defer q.release(laneID)

	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.slot }()

	if err := ctx.Err(); err != nil {
		return err
	}
	return safeExec(ctx, fn)
}

func safeExec(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: panic: %v", r)
		}
	}()
	return fn(ctx)
}

func (q *LaneQueue) acquire(laneID string) *lane {
	q.mu.Lock()
	defer q.mu.Unlock()
	l, ok := q.lanes[laneID]
	if !ok {
		l = &lane{slot: make(chan struct{}, 1)}
		q.lanes[laneID] = l
	}
	l.refs++
	return l
}

func (q *LaneQueue) release(laneID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	l := q.lanes[laneID]
	l.refs--
	if l.refs == 0 {
		delete(q.lanes, laneID)
	}
}

// LaneCount returns the number of lanes with running or waiting work.
func (q *LaneQueue) LaneCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}
