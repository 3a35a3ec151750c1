package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// slogCronLogger routes robfig/cron's own logging into slog.
type slogCronLogger struct {
	l *slog.Logger
}

func (s slogCronLogger) Info(msg string, keysAndValues ...any) {
	s.l.Debug("cron: "+msg, keysAndValues...)
}

func (s slogCronLogger) Error(err error, msg string, keysAndValues ...any) {
	s.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

var _ cron.Logger = slogCronLogger{}

// RobfigCronEngine adapts robfig/cron/v3 to CronEngine. Panics in jobs are
// recovered and logged, and a job still running when its next tick arrives
// is skipped for that tick.
type RobfigCronEngine struct {
	c *cron.Cron
}

// NewRobfigCronEngine accepts standard 5-field expressions and descriptors
// such as "@hourly" or "@every 30m". A nil logger uses slog.Default.
func NewRobfigCronEngine(logger *slog.Logger) *RobfigCronEngine {
	if logger == nil {
		logger = slog.Default()
	}
	cl := slogCronLogger{l: logger}
	return &RobfigCronEngine{
		c: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

func (r *RobfigCronEngine) AddFunc(spec string, cmd func()) (int, error) {
	id, err := r.c.AddFunc(spec, cmd)
	return int(id), err
}

func (r *RobfigCronEngine) Remove(id int) {
	r.c.Remove(cron.EntryID(id))
}

func (r *RobfigCronEngine) Start() {
	r.c.Start()
}

// Stop halts scheduling and waits for running jobs to return.
func (r *RobfigCronEngine) Stop() {
	<-r.c.Stop().Done()
}

// ValidateSpec reports whether spec parses as a schedule.
func ValidateSpec(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}
