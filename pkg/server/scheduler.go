package server

import (
	"context"
	"fmt"
	"time"

	applogger "IndiPull/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Job is a named periodic task. Spec uses the standard five-field cron
// syntax or descriptors such as "@every 30m".
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler runs jobs on cron schedules. A job still running when its next
// tick fires is skipped for that tick.
type Scheduler struct {
	cron   *cron.Cron
	logger *applogger.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(l *applogger.Logger) *Scheduler {
	if l == nil {
		l = applogger.Nop()
	}
	cl := cronLogger{l}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger: l,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers j. An empty spec leaves the job disabled.
func (s *Scheduler) Add(j Job) error {
	if j.Spec == "" {
		s.logger.Info("scheduler: job disabled", applogger.String("job", j.Name))
		return nil
	}
	if _, err := s.cron.AddFunc(j.Spec, func() { s.run(j) }); err != nil {
		return fmt.Errorf("schedule %s %q: %w", j.Name, j.Spec, err)
	}
	s.logger.Info("scheduler: job added", applogger.String("job", j.Name), applogger.String("spec", j.Spec))
	return nil
}

func (s *Scheduler) run(j Job) {
	ctx := s.ctx
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	start := time.Now()
	if err := j.Run(ctx); err != nil {
		s.logger.Error("scheduler: job failed", applogger.String("job", j.Name), applogger.Error(err))
		return
	}
	s.logger.Debug("scheduler: job done", applogger.String("job", j.Name), applogger.Duration("elapsed_ms", time.Since(start)))
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int { return len(s.cron.Entries()) }

func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels running jobs and waits for them, or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct{ l *applogger.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(kv)...)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(kv), applogger.Error(err))...)
}

func kvFields(kv []interface{}) []applogger.Field {
	out := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, applogger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
