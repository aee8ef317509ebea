// Package scheduler repeats a scrape run on a cron expression.
package scheduler

import (
	"context"
	"sync"
	"time"

	errs "dscraper/pkg/errors"
	"dscraper/pkg/logger"

	"github.com/robfig/cron/v3"
)

// RunFunc performs one scheduled run
type RunFunc func(ctx context.Context) error

// Scheduler runs a RunFunc on a cron schedule. A run that is still going
// when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	location *time.Location
	runOnce  bool
	logger   logger.Logger

	mu      sync.Mutex
	running bool
	runs    int
}

// Option customises a Scheduler
type Option func(*Scheduler)

// WithLocation evaluates the expression in loc instead of local time
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.location = loc }
}

// WithImmediateRun also runs once as soon as Run is called
func WithImmediateRun() Option {
	return func(s *Scheduler) { s.runOnce = true }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New parses a standard five-field expression or a descriptor such as
// "@daily" or "@every 6h".
func New(spec string, opts ...Option) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, "invalid schedule "+spec, err)
	}
	s := &Scheduler{
		spec:     spec,
		schedule: schedule,
		location: time.Local,
		logger:   logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Next returns the first activation after t
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.location))
}

// Runs returns how many runs have started
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// Run blocks until ctx is cancelled, invoking fn on every activation, then
// waits for an in-flight run to return.
func (s *Scheduler) Run(ctx context.Context, fn RunFunc) error {
	log := s.logger.WithField("component", "scheduler")

	c := cron.New(cron.WithLocation(s.location))
	c.Schedule(s.schedule, cron.FuncJob(func() { s.invoke(ctx, log, fn) }))

	logger.LogComponentStart(log, "scheduler", map[string]interface{}{
		"schedule": s.spec,
		"next_run": s.Next(time.Now()),
	})

	// Stop only waits for jobs cron itself started
	var wg sync.WaitGroup
	if s.runOnce {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.invoke(ctx, log, fn)
		}()
	}
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	wg.Wait()

	logger.LogComponentStop(log, "scheduler", "context done")
	return ctx.Err()
}

func (s *Scheduler) invoke(ctx context.Context, log logger.Logger, fn RunFunc) {
	s.mu.Lock()
	if s.running || ctx.Err() != nil {
		s.mu.Unlock()
		log.Warn("Previous run still in progress, skipping this activation")
		return
	}
	s.running = true
	s.runs++
	run := s.runs
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	log.InfoWithFields("Scheduled run starting", map[string]interface{}{"run": run})
	start := time.Now()
	if err := fn(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("Scheduled run failed")
		return
	}
	log.InfoWithFields("Scheduled run finished", map[string]interface{}{
		"run":      run,
		"duration": time.Since(start),
		"next_run": s.Next(time.Now()),
	})
}
