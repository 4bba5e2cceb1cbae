package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vfrank66/lucas-download/internal/api"
	"github.com/vfrank66/lucas-download/internal/clock/system"
	"github.com/vfrank66/lucas-download/internal/config"
	"github.com/vfrank66/lucas-download/internal/discovery"
	"github.com/vfrank66/lucas-download/internal/fetch"
	iduuid "github.com/vfrank66/lucas-download/internal/id/uuid"
	"github.com/vfrank66/lucas-download/internal/ledger"
	"github.com/vfrank66/lucas-download/internal/ledger/sqlite"
	"github.com/vfrank66/lucas-download/internal/logging"
	"github.com/vfrank66/lucas-download/internal/metrics"
	"github.com/vfrank66/lucas-download/internal/policy/ratelimit"
	"github.com/vfrank66/lucas-download/internal/pool"
	"github.com/vfrank66/lucas-download/internal/progress"
	"github.com/vfrank66/lucas-download/internal/progress/sinks"
	"github.com/vfrank66/lucas-download/internal/runner"
	"github.com/vfrank66/lucas-download/internal/storage/local"
)

func newFetchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download every edition in the configured date range",
		Long: `fetch enumerates the calendar days of the configured range, skips the
dates the progress ledger already accounts for, and downloads the rest
through a bounded worker pool. Ctrl-C stops cleanly: in-flight downloads
finish or abort, progress is flushed, and the next run resumes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, v)
		},
	}

	flags := cmd.Flags()
	flags.Int("years-back", 2, "download from January 1st of (current year - N) through today")
	flags.String("start-date", "", "explicit range start (YYYY-MM-DD, overrides --years-back)")
	flags.String("end-date", "", "explicit range end (YYYY-MM-DD, default today)")
	flags.Int("concurrency", 40, "number of concurrent downloads")
	flags.String("granularity", "month", "directory layout granularity: month or day")
	flags.Bool("discover", false, "scrape the archive calendar for published dates instead of probing every day")
	flags.String("download-dir", "downloads", "root directory for downloaded PDFs")
	flags.String("ledger", "download_progress.json", "progress ledger path")
	flags.String("ledger-backend", "file", "progress ledger backend: file or sqlite")
	flags.String("status-addr", "", "serve /healthz, /metrics and /progress on this address (empty = off)")

	bindings := map[string]string{
		"download.years_back":  "years-back",
		"download.start_date":  "start-date",
		"download.end_date":    "end-date",
		"download.concurrency": "concurrency",
		"download.granularity": "granularity",
		"download.dir":         "download-dir",
		"ledger.path":          "ledger",
		"ledger.backend":       "ledger-backend",
		"status.addr":          "status-addr",
	}
	for key, name := range bindings {
		cobra.CheckErr(v.BindPFlag(key, flags.Lookup(name)))
	}

	return cmd
}

// runFetch wires the whole pipeline together. It returns an error only for
// setup and ledger failures; individual download failures land in the
// summary and keep the exit status at zero.
func runFetch(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}

	logger, cleanup, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		File:        cfg.Logging.File,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	metrics.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// Restore default handling after the first signal so a second
		// Ctrl-C kills the process immediately.
		<-ctx.Done()
		stop()
	}()

	led, err := openLedger(cfg)
	if err != nil {
		return err
	}

	store, err := local.New(local.Config{BaseDir: cfg.Download.Dir})
	if err != nil {
		return err
	}

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.RateLimit.RPS,
		DefaultBurst: cfg.RateLimit.Burst,
	})
	fetcher := fetch.New(fetch.Config{
		UserAgent:        cfg.Fetch.UserAgent,
		Timeout:          cfg.FetchTimeout(),
		NotFoundStatuses: cfg.Fetch.NotFoundStatuses,
		RetryAttempts:    cfg.Fetch.RetryAttempts,
		RetryDelay:       cfg.RetryDelay(),
		Granularity:      cfg.Granularity(),
		RecordNotFound:   cfg.Fetch.RecordNotFound,
	}, store, led, limiter, logger)

	stats := sinks.NewStatsSink()
	hubSinks := []progress.Sink{sinks.NewLogSink(logger), stats}
	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Warn("prometheus sink disabled", zap.Error(err))
	} else {
		hubSinks = append(hubSinks, promSink)
	}
	hub := progress.NewHub(progress.Config{Logger: logger}, hubSinks...)

	if cfg.Status.Addr != "" {
		srv := api.NewServer(cfg.Status.Addr, stats, logger)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("status server shutdown", zap.Error(err))
			}
		}()
	}

	p := pool.New(pool.Config{Workers: cfg.Download.Concurrency}, fetcher, hub, logger)
	run := runner.New(led, p, hub, iduuid.NewUUIDGenerator(), system.New(), logger)

	src, err := editionSource(ctx, cmd, cfg, logger)
	if err != nil {
		return err
	}

	sum, runErr := run.Run(ctx, src)
	if err := hub.Close(context.Background()); err != nil {
		logger.Warn("progress hub close", zap.Error(err))
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintln(cmd.OutOrStdout(), sum.String())
	return nil
}

// openLedger selects the configured ledger backend.
func openLedger(cfg config.Config) (ledger.Ledger, error) {
	switch cfg.Ledger.Backend {
	case "sqlite":
		return sqlite.Open(cfg.Ledger.Path)
	default:
		return ledger.OpenFile(ledger.FileConfig{
			Path:       cfg.Ledger.Path,
			FlushEvery: cfg.Ledger.FlushEvery,
		})
	}
}

// editionSource either enumerates every calendar day of the range or, with
// --discover, scrapes the archive calendar so only published dates are
// dispatched.
func editionSource(ctx context.Context, cmd *cobra.Command, cfg config.Config, logger *zap.Logger) (pool.Source, error) {
	rng, err := cfg.Range(time.Now())
	if err != nil {
		return nil, err
	}

	discover, err := cmd.Flags().GetBool("discover")
	if err != nil {
		return nil, err
	}
	if !discover {
		return rng.Editions(), nil
	}

	scraper := discovery.New(discovery.Config{
		BaseURL:   cfg.Discovery.BaseURL,
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	}, logger)
	editions, err := scraper.Editions(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("discover published editions: %w", err)
	}
	logger.Info("discovery finished",
		zap.Int("published_editions", len(editions)),
		zap.Int("range_days", rng.Days()))
	return pool.NewSliceSource(editions), nil
}
