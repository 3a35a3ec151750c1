// Package scheduler runs background inventory jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Job is a named unit of background work fired on Spec.
type Job struct {
	ID   string
	Spec string
	Run  func(ctx context.Context) error
}

// CronEngine is the slice of a cron library the scheduler drives.
type CronEngine interface {
	AddFunc(spec string, cmd func()) (int, error)
	Remove(id int)
	Start()
	Stop()
}

type Option func(*Scheduler)

// WithLogger sets a structured logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithJobTimeout bounds each job run. Values <= 0 keep DefaultJobTimeout.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

const DefaultJobTimeout = 2 * time.Minute

var (
	ErrInvalidJob   = errors.New("scheduler: invalid job")
	ErrDuplicateJob = errors.New("scheduler: duplicate job")
	ErrJobNotFound  = errors.New("scheduler: job not found")
)

type slot struct {
	job     Job
	entry   int
	running bool
}

// Scheduler fires registered jobs through a CronEngine. Runs inherit the
// context given to Start; a job never overlaps with itself.
type Scheduler struct {
	engine     CronEngine
	logger     *slog.Logger
	jobTimeout time.Duration

	mu     sync.Mutex
	slots  map[string]*slot
	base   context.Context
	cancel context.CancelFunc
}

// NewScheduler panics if engine is nil.
func NewScheduler(engine CronEngine, opts ...Option) *Scheduler {
	if engine == nil {
		panic("scheduler: engine must not be nil")
	}
	s := &Scheduler{
		engine:     engine,
		jobTimeout: DefaultJobTimeout,
		slots:      make(map[string]*slot),
		base:       context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (j Job) validate() error {
	switch {
	case j.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidJob)
	case j.Spec == "":
		return fmt.Errorf("%w: %s has no schedule", ErrInvalidJob, j.ID)
	case j.Run == nil:
		return fmt.Errorf("%w: %s has no run func", ErrInvalidJob, j.ID)
	}
	return nil
}

// AddJob registers job with the engine.
func (s *Scheduler) AddJob(job Job) error {
	if err := job.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.slots[job.ID]; taken {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}
	id := job.ID
	entry, err := s.engine.AddFunc(job.Spec, func() { s.fire(id) })
	if err != nil {
		return fmt.Errorf("scheduler: schedule %s: %w", job.ID, err)
	}
	s.slots[job.ID] = &slot{job: job, entry: entry}
	s.log().Info("job scheduled", "job", job.ID, "spec", job.Spec)
	return nil
}

// fire runs the job behind id unless the scheduler is stopped or the
// previous run is still going.
func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	sl, ok := s.slots[id]
	base := s.base
	if !ok || sl.running || base.Err() != nil {
		s.mu.Unlock()
		if ok && sl.running {
			s.log().Debug("job still running, skipping", "job", id)
		}
		return
	}
	sl.running = true
	job := sl.job
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		sl.running = false
		s.mu.Unlock()
	}()
	s.run(base, job)
}

func (s *Scheduler) run(base context.Context, job Job) {
	ctx, cancel := context.WithTimeout(base, s.jobTimeout)
	defer cancel()
	began := time.Now()
	if err := job.Run(ctx); err != nil {
		s.log().Warn("job failed", "job", job.ID, "error", err, "took", time.Since(began))
		return
	}
	s.log().Debug("job done", "job", job.ID, "took", time.Since(began))
}

// Start begins firing jobs. Runs are cancelled when ctx ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.base, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.engine.Start()
}

// Stop cancels in-flight runs and halts the engine.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.engine.Stop()
}

func (s *Scheduler) RemoveJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrJobNotFound, id)
	}
	s.engine.Remove(sl.entry)
	delete(s.slots, id)
	return nil
}

// JobIDs lists registered job IDs in order.
func (s *Scheduler) JobIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.slots))
	for id := range s.slots {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
