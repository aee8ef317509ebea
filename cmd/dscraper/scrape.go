package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"dscraper/pkg/auth"
	"dscraper/pkg/checkpoint"
	"dscraper/pkg/config"
	"dscraper/pkg/logger"
	"dscraper/pkg/metadata"
	"dscraper/pkg/metrics"
	"dscraper/pkg/resolver"
	"dscraper/pkg/scheduler"
	"dscraper/pkg/scraper"
	"dscraper/pkg/ui"
	"dscraper/pkg/ui/tui"

	"github.com/spf13/cobra"
)

var (
	outputDir       string
	concurrent      int
	parallelTargets int
	rateLimit       int
	accountName     string
	schedule        string
	metricsAddr     string
	useTUI          bool
	notify          bool
	incremental     bool
)

// run reports kept under the state folder
const keepReports = 50

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scan every configured channel and download its attachments",
	Long: `Scan every configured server channel and direct message, one day at a
time from today back to the configured floor year, and download matching
attachments.

The Discord token is taken from, in order: --account, the configuration file
or DSCRAPER_TOKEN, and finally the default stored account.`,
	Example: `  # One pass over everything in dscraper.yaml
  dscraper scrape

  # Save under ./archive with eight download workers
  dscraper scrape --output ./archive --concurrent 8

  # Only search the days since the last clean run
  dscraper scrape --incremental

  # Repeat every night at 03:00 and expose Prometheus metrics
  dscraper scrape --schedule "0 3 * * *" --metrics-addr :9090

  # Interactive dashboard
  dscraper scrape --tui`,
	Args: cobra.NoArgs,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVarP(&outputDir, "output", "o", "", "base directory for \"Discord Scrapes\"")
	scrapeCmd.Flags().IntVar(&concurrent, "concurrent", 0, "number of concurrent downloads")
	scrapeCmd.Flags().IntVar(&parallelTargets, "parallel-targets", 0, "number of channels scanned at once")
	scrapeCmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "API requests per minute")
	scrapeCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	scrapeCmd.Flags().StringVar(&schedule, "schedule", "", "cron expression to repeat the scrape on")
	scrapeCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	scrapeCmd.Flags().BoolVar(&useTUI, "tui", false, "use the interactive terminal dashboard")
	scrapeCmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification when a run finishes")
	scrapeCmd.Flags().BoolVar(&incremental, "incremental", false, "stop each channel at the day its last clean run covered")
}

func scrapeFlags() (map[string]interface{}, error) {
	flags := map[string]interface{}{
		"output":           outputDir,
		"concurrent":       concurrent,
		"parallel-targets": parallelTargets,
		"rate-limit":       rateLimit,
		"log-level":        logLevel,
		"schedule":         schedule,
		"metrics-addr":     metricsAddr,
		"incremental":      incremental,
	}

	manager, err := auth.NewManager()
	if err != nil {
		if accountName != "" {
			return nil, fmt.Errorf("failed to open credential store: %w", err)
		}
		return flags, nil
	}

	if accountName != "" {
		account, err := manager.Retrieve(accountName)
		if err != nil {
			return nil, fmt.Errorf("account %q not found, see 'dscraper auth list'", accountName)
		}
		flags["token"] = account.Token
		return flags, nil
	}
	if account, err := manager.RetrieveDefault(); err == nil {
		flags["stored-token"] = account.Token
	}
	return flags, nil
}

func runScrape(cmd *cobra.Command, args []string) error {
	flags, err := scrapeFlags()
	if err != nil {
		return err
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return err
	}
	log := logger.WithField("version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.ListenAddress != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.ListenAddress, log); err != nil {
				log.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	targets := len(cfg.Targets())
	ui.PrintInfo("Targets", fmt.Sprintf("%d", targets))
	ui.PrintInfo("Output", cfg.Output.BaseDirectory)

	var (
		reporter ui.Reporter
		display  *ui.ProgressDisplay
	)
	if useTUI {
		dashboard := tui.NewTUI(targets, cfg.Download.ConcurrentDownloads)
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := dashboard.Start(); err != nil {
				log.WithError(err).Error("Dashboard failed")
			}
			// quitting the dashboard ends the scrape
			cancel()
		}()
		defer func() {
			dashboard.Stop()
			dashboard.Wait()
		}()
		reporter = dashboard
	} else if !ui.IsQuietMode() {
		display = ui.NewProgressDisplay(targets, cfg.Logging.Level == "debug")
		reporter = display
	}

	stateDir, err := resolver.StateDir(cfg.Output.BaseDirectory)
	if err != nil {
		return err
	}
	checkpoints, err := checkpoint.NewManager(filepath.Join(stateDir, "checkpoints"), log)
	if err != nil {
		return err
	}
	reportsDir := filepath.Join(stateDir, "runs")

	notifier := ui.NewNotifier(notify)

	runOnce := func(ctx context.Context) error {
		opts := []scraper.Option{
			scraper.WithLogger(log),
			scraper.WithCheckpoints(checkpoints),
		}
		if reporter != nil {
			opts = append(opts, scraper.WithReporter(reporter))
		}
		s, err := scraper.New(cfg, opts...)
		if err != nil {
			return err
		}

		summary, err := s.Run(ctx)
		if display != nil {
			display.Complete()
		}
		if summary != nil {
			if !useTUI {
				printSummary(summary)
			}
			saveReport(log, reportsDir, summary, errors.Is(err, context.Canceled))
		}
		if err != nil {
			return err
		}
		notifier.SendSuccess("dscraper", fmt.Sprintf("Downloaded %d files (%s)", summary.Downloaded, ui.FormatBytes(summary.Bytes)))
		return nil
	}

	if cfg.Schedule.Cron == "" {
		err = runOnce(ctx)
	} else {
		loc, lerr := cfg.Location()
		if lerr != nil {
			return lerr
		}
		sched, serr := scheduler.New(cfg.Schedule.Cron,
			scheduler.WithLocation(loc),
			scheduler.WithImmediateRun(),
			scheduler.WithLogger(log),
		)
		if serr != nil {
			return serr
		}
		ui.PrintInfo("Schedule", cfg.Schedule.Cron)
		err = sched.Run(ctx, runOnce)
	}

	if errors.Is(err, context.Canceled) {
		ui.PrintWarning("Interrupted", "partial results kept, no incomplete files left behind")
		return nil
	}
	if err != nil {
		notifier.SendError("dscraper", err.Error())
	}
	return err
}

// saveReport records the run under the state folder. Failures only warn.
func saveReport(log logger.Logger, dir string, summary *scraper.Summary, cancelled bool) {
	path, err := metadata.FromSummary(summary, cancelled).Save(dir)
	if err != nil {
		log.WithError(err).Warn("Cannot save run report")
		return
	}
	log.DebugWithFields("Run report saved", map[string]interface{}{"path": path})

	if removed, err := metadata.Prune(dir, keepReports); err != nil {
		log.WithError(err).Warn("Cannot prune run reports")
	} else if removed > 0 {
		log.DebugWithFields("Pruned run reports", map[string]interface{}{"removed": removed})
	}
}

func printSummary(s *scraper.Summary) {
	ui.PrintHighlight("[RUN SUMMARY]")
	ui.PrintInfo("Run", s.RunID)
	ui.PrintInfo("Targets", fmt.Sprintf("%d scanned, %d failed", s.TargetsScanned, s.TargetsFailed))
	ui.PrintInfo("Days", fmt.Sprintf("%d searched, %d failed searches", s.DaysScanned, s.SearchFailures))
	ui.PrintInfo("Files", fmt.Sprintf("%d downloaded, %d skipped, %d failed", s.Downloaded, s.Skipped, s.Failed))
	ui.PrintInfo("Size", ui.FormatBytes(s.Bytes))
	ui.PrintInfo("Duration", ui.FormatDuration(s.Duration))

	for _, t := range s.Targets {
		if t.Err != nil {
			ui.PrintWarning(t.Target.String(), t.Err.Error())
		}
	}
}
