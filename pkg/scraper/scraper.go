package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dscraper/internal/downloader"
	"dscraper/pkg/checkpoint"
	"dscraper/pkg/classifier"
	"dscraper/pkg/config"
	"dscraper/pkg/dayrange"
	"dscraper/pkg/discord"
	"dscraper/pkg/logger"
	"dscraper/pkg/metrics"
	"dscraper/pkg/ratelimit"
	"dscraper/pkg/resolver"
	"dscraper/pkg/search"
	"dscraper/pkg/snowflake"
	"dscraper/pkg/storage"
	"dscraper/pkg/ui"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const pausePoll = 250 * time.Millisecond

// Scraper orchestrates scans over every configured target
type Scraper struct {
	config      *config.Config
	api         DiscordAPI
	resolver    *resolver.Resolver
	paginator   *search.Paginator
	classifier  classifier.Config
	downloader  *downloader.Downloader
	stores      *storage.Registry
	checkpoints *checkpoint.Manager
	location    *time.Location
	now         func() time.Time
	reporter    ui.Reporter
	logger      logger.Logger

	states map[string]State
	mu     sync.RWMutex
}

// Option customises a Scraper
type Option func(*Scraper)

// WithClient replaces the Discord client built from the configuration
func WithClient(api DiscordAPI) Option {
	return func(s *Scraper) { s.api = api }
}

// WithClock sets the source of "today" for the day range
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) { s.now = now }
}

// WithReporter sends progress events to r
func WithReporter(r ui.Reporter) Option {
	return func(s *Scraper) { s.reporter = r }
}

// WithCheckpoints records a checkpoint for every cleanly finished target.
// When scan.incremental is set the checkpoints also bound the day walk.
func WithCheckpoints(m *checkpoint.Manager) Option {
	return func(s *Scraper) { s.checkpoints = m }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(s *Scraper) { s.logger = l }
}

// New creates a Scraper from a validated configuration
func New(cfg *config.Config, opts ...Option) (*Scraper, error) {
	s := &Scraper{
		config:     cfg,
		classifier: classifier.FromConfig(cfg),
		stores:     storage.NewRegistry(cfg.Download.BufferSize),
		now:        time.Now,
		reporter:   ui.NopReporter{},
		logger:     logger.GetLogger(),
		states:     make(map[string]State),
	}
	for _, opt := range opts {
		opt(s)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	s.location = loc

	if s.api == nil {
		clientOpts := discord.OptionsFromConfig(cfg, s.logger)
		clientOpts.OnRateLimit = func(wait time.Duration) { s.reporter.RateLimited(wait) }
		s.api = discord.NewClient(clientOpts)
	}

	s.resolver, err = resolver.New(s.api, cfg.Output.BaseDirectory, s.logger)
	if err != nil {
		return nil, err
	}

	s.paginator = search.NewPaginator(s.api, search.Options{
		Filter:   s.classifier.QueryFragment(),
		MaxPages: cfg.Scan.MaxPages,
		Timeout:  cfg.Scan.SearchTimeout,
		Logger:   s.logger,
	})

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if rps := cfg.Download.RequestsPerSecond; rps > 0 {
		limiter = ratelimit.NewTokenBucket(rps, time.Second)
	}
	s.downloader = downloader.New(s.api, limiter, s.logger)

	return s, nil
}

// State returns the current state of target
func (s *Scraper) State(target config.Target) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[target.String()]
}

func (s *Scraper) setState(target config.Target, state State) {
	s.mu.Lock()
	s.states[target.String()] = state
	s.mu.Unlock()

	s.logger.DebugWithFields("Target state changed", map[string]interface{}{
		"target": target.String(),
		"state":  state.String(),
	})
}

// Run scans every target and waits for all queued downloads. A cancelled
// ctx returns the partial summary together with ctx.Err().
func (s *Scraper) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString(), StartedAt: start}
	log := s.logger.WithField("run_id", summary.RunID)

	targets := s.config.Targets()
	for _, t := range targets {
		s.setState(t, StateIdle)
	}

	parallel := s.config.Scan.ParallelTargets
	if parallel < 1 {
		parallel = 1
	}
	pool := downloader.NewWorkerPool(s.config.Download.ConcurrentDownloads, s.downloader, log)
	logger.LogComponentStart(log, "scraper", map[string]interface{}{
		"targets":              len(targets),
		"parallel_targets":     parallel,
		"concurrent_downloads": pool.Workers(),
		"root":                 s.resolver.Root(),
	})
	pool.Start(ctx)

	var collector sync.WaitGroup
	collector.Add(1)
	go func() {
		defer collector.Done()
		for r := range pool.Results() {
			summary.recordDownload(r)
			s.reporter.DownloadFinished(jobID(r.Job.Target, r.Filename), r.Status.String(), r.Size, r.Error)
		}
	}()

	var g errgroup.Group
	g.SetLimit(parallel)
	for _, t := range targets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return s.scanTarget(ctx, log, t, pool, summary)
		})
	}
	scanErr := g.Wait()

	pool.Stop()
	collector.Wait()
	summary.Duration = time.Since(start)

	reason := "completed"
	if ctx.Err() != nil {
		reason = "cancelled"
	}
	logger.LogComponentStop(log, "scraper", reason)
	log.InfoWithFields("Scan finished", map[string]interface{}{
		"targets_scanned": summary.TargetsScanned,
		"targets_failed":  summary.TargetsFailed,
		"days_scanned":    summary.DaysScanned,
		"search_failures": summary.SearchFailures,
		"downloaded":      summary.Downloaded,
		"skipped":         summary.Skipped,
		"failed":          summary.Failed,
		"bytes":           summary.Bytes,
		"duration":        summary.Duration,
	})

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, scanErr
}

// scanTarget only returns an error when ctx is cancelled. Every other
// failure is confined to the target or the day it happened on.
func (s *Scraper) scanTarget(ctx context.Context, log logger.Logger, target config.Target, pool *downloader.WorkerPool, summary *Summary) error {
	// g.Go may have waited for a slot past cancellation
	if err := ctx.Err(); err != nil {
		return err
	}
	log = log.WithField("target", target.String())
	result := TargetResult{Target: target}

	s.setState(target, StateResolvingTargets)
	store, err := s.prepare(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Error("Cannot prepare target folder, skipping target")
		s.finish(target, result, StateFailed, err, summary)
		return nil
	}
	result.Folder = store.OutputDir()
	s.reporter.TargetStarted(target.String(), result.Folder)

	previous := s.loadCheckpoint(log, target)

	enum := dayrange.New(s.now().In(s.location),
		dayrange.WithFloorYear(s.config.Scan.FloorYear),
		dayrange.WithMinMonth(s.config.Scan.MinMonth),
		dayrange.WithMinDay(s.config.Scan.MinDay),
	)

	first := ""
	for day := range enum.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if previous.Reached(day.String()) {
			result.Incremental = true
			log.InfoWithFields("Reached previous checkpoint", map[string]interface{}{
				"through": previous.Through,
			})
			break
		}
		if err := s.waitWhilePaused(ctx); err != nil {
			return err
		}
		if first == "" {
			first = day.String()
		}

		s.setState(target, StateScanning)
		if err := s.scanDay(ctx, log, target, day, store, pool, summary, &result); err != nil {
			return err
		}
	}

	s.finish(target, result, StateDone, nil, summary)
	s.saveCheckpoint(log, summary.RunID, first, result)
	log.InfoWithFields("Target scanned", map[string]interface{}{
		"days":   result.Days,
		"queued": result.Queued,
		"stored": store.StoredCount(),
	})
	return nil
}

// loadCheckpoint returns the checkpoint bounding an incremental scan, or nil
func (s *Scraper) loadCheckpoint(log logger.Logger, target config.Target) *checkpoint.Checkpoint {
	if s.checkpoints == nil || !s.config.Scan.Incremental {
		return nil
	}
	cp, err := s.checkpoints.Load(target.String())
	if err != nil {
		log.WithError(err).Warn("Cannot read checkpoint, scanning every day")
		return nil
	}
	return cp
}

// saveCheckpoint records a finished target. A target with a failed search
// keeps its old checkpoint so the missed day is searched again next time.
func (s *Scraper) saveCheckpoint(log logger.Logger, runID, through string, result TargetResult) {
	if s.checkpoints == nil || through == "" || result.SearchFailures > 0 {
		return
	}
	err := s.checkpoints.Save(&checkpoint.Checkpoint{
		Target:  result.Target.String(),
		Through: through,
		RunID:   runID,
		Days:    result.Days,
		Queued:  result.Queued,
	})
	if err != nil {
		log.WithError(err).Warn("Cannot save checkpoint")
	}
}

func (s *Scraper) finish(target config.Target, result TargetResult, state State, err error, summary *Summary) {
	result.State = state
	result.Err = err
	s.setState(target, state)
	summary.recordTarget(result)
	metrics.RecordTarget(state.String())
	s.reporter.TargetFinished(target.String(), err)
}

// prepare resolves display names and opens the folder store of target
func (s *Scraper) prepare(ctx context.Context, target config.Target) (*storage.Manager, error) {
	var (
		folder string
		err    error
	)
	switch target.Kind {
	case config.TargetDirect:
		folder, err = s.resolver.CreateDirectFolder(target.Alias, target.ChannelID)
	default:
		server := s.resolver.ResolveServerName(ctx, target.ServerID)
		channel := s.resolver.ResolveChannelName(ctx, target.ChannelID)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		folder, err = s.resolver.CreateFolder(server, channel)
	}
	if err != nil {
		return nil, err
	}
	return s.stores.Open(folder)
}

// scanDay searches one day and queues its attachments. Only a done ctx is
// returned as an error; search failures are counted in result.
func (s *Scraper) scanDay(ctx context.Context, log logger.Logger, target config.Target, day dayrange.Day, store downloader.Store, pool *downloader.WorkerPool, summary *Summary, result *TargetResult) error {
	window, err := snowflake.DayWindow(day.Day, day.Month, day.Year, s.location)
	if err != nil {
		// 31 April and friends: nothing to search
		metrics.RecordSearch(metrics.OutcomeInvalidDate)
		return nil
	}

	serverID := ""
	if target.Kind == config.TargetServer {
		serverID = target.ServerID
	}

	messages, err := s.paginator.Search(ctx, target.ChannelID, window, serverID)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	summary.recordDay(err != nil)
	metrics.RecordDay()
	result.Days++
	if err != nil {
		result.SearchFailures++
	}

	attachments := s.classifier.Select(messages)
	logger.LogDayScanned(log, target.String(), day.String(), len(attachments))
	if backlog := pool.QueueSize(); backlog > 0 {
		log.DebugWithFields("Downloads waiting", map[string]interface{}{"backlog": backlog})
	}
	s.reporter.DayScanned(target.String(), day.String(), len(attachments))

	for _, att := range attachments {
		if err := ctx.Err(); err != nil {
			return err
		}
		filename := downloader.FilenameFromURL(att.URL)
		s.reporter.DownloadQueued(jobID(target.String(), filename), target.String(), filename)

		job := downloader.Job{URL: att.URL, Store: store, Target: target.String()}
		if err := pool.Submit(ctx, job); err != nil {
			return err
		}
		result.Queued++
	}
	return nil
}

func (s *Scraper) waitWhilePaused(ctx context.Context) error {
	p, ok := s.reporter.(ui.Pauser)
	if !ok {
		return nil
	}
	for p.IsPaused() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pausePoll):
		}
	}
	return nil
}

func jobID(target, filename string) string {
	return fmt.Sprintf("%s/%s", target, filename)
}
