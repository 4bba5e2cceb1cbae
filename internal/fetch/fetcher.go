package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vfrank66/lucas-download/internal/diario"
	"github.com/vfrank66/lucas-download/internal/ledger"
	"github.com/vfrank66/lucas-download/internal/metrics"
	"github.com/vfrank66/lucas-download/internal/policy/ratelimit"
	"github.com/vfrank66/lucas-download/internal/storage/local"
)

// Defaults for the fetcher knobs.
const (
	DefaultTimeout       = 15 * time.Second
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
	DefaultUserAgent     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

// DefaultNotFoundStatuses are the HTTP statuses treated as "the archive has
// no edition for this date" unless configured otherwise.
var DefaultNotFoundStatuses = []int{http.StatusNotFound, http.StatusGone}

// Config captures the fetcher behavior knobs.
type Config struct {
	// UserAgent is sent on every request.
	UserAgent string
	// Timeout bounds a single request attempt.
	Timeout time.Duration
	// NotFoundStatuses are classified as NotFound rather than failures.
	NotFoundStatuses []int
	// RetryAttempts bounds attempts per edition, first try included.
	RetryAttempts int
	// RetryDelay scales the linear inter-attempt delay.
	RetryDelay time.Duration
	// Granularity selects the directory layout for persisted editions.
	Granularity diario.Granularity
	// RecordNotFound writes missing dates to the ledger so later runs skip
	// probing them.
	RecordNotFound bool
}

// Fetcher downloads editions through a shared HTTP client, persists them via
// the atomic store, and records outcomes in the ledger.
type Fetcher struct {
	cfg      Config
	client   *http.Client
	store    *local.Store
	ledger   ledger.Ledger
	limiter  *ratelimit.Limiter
	policy   *LinearRetryPolicy
	notFound map[int]struct{}
	logger   *zap.Logger
}

// New builds a Fetcher. The HTTP transport keeps a generous idle pool since
// all requests target the two archive hosts.
func New(cfg Config, store *local.Store, led ledger.Ledger, limiter *ratelimit.Limiter, logger *zap.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if len(cfg.NotFoundStatuses) == 0 {
		cfg.NotFoundStatuses = DefaultNotFoundStatuses
	}
	if cfg.Granularity == "" {
		cfg.Granularity = diario.GranularityMonth
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	notFound := make(map[int]struct{}, len(cfg.NotFoundStatuses))
	for _, code := range cfg.NotFoundStatuses {
		notFound[code] = struct{}{}
	}

	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 75,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		store:    store,
		ledger:   led,
		limiter:  limiter,
		policy:   NewLinearRetryPolicy(cfg.RetryAttempts, cfg.RetryDelay),
		notFound: notFound,
		logger:   logger,
	}
}

// Do fetches one edition, persists it, and records the outcome in the
// ledger. Transient failures are retried per the policy before being
// demoted to fatal.
func (f *Fetcher) Do(ctx context.Context, ed diario.Edition) Result {
	start := time.Now()
	res := f.fetchWithRetry(ctx, ed)
	res.Duration = time.Since(start)
	f.record(ctx, res)
	return res
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, ed diario.Edition) Result {
	for attempt := 1; ; attempt++ {
		res := f.attempt(ctx, ed)
		res.Attempts = attempt
		if res.Outcome != OutcomeTransient {
			return res
		}
		if !f.policy.ShouldRetry(res.Outcome, attempt) {
			res.Outcome = OutcomeFatal
			res.Err = fmt.Errorf("retries exhausted after %d attempts: %w", attempt, res.Err)
			return res
		}
		metrics.ObserveRetry()
		f.logger.Warn("transient failure, retrying",
			zap.String("edition", ed.Key()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", f.policy.Backoff(attempt)),
			zap.Error(res.Err))
		if err := sleep(ctx, f.policy.Backoff(attempt)); err != nil {
			res.Outcome = OutcomeCanceled
			res.Err = err
			return res
		}
	}
}

func (f *Fetcher) attempt(ctx context.Context, ed diario.Edition) Result {
	res := Result{Edition: ed}
	url := ed.URL()

	if err := f.limiter.Wait(ctx, url); err != nil {
		res.Outcome = OutcomeCanceled
		res.Err = err
		return res
	}

	reqCtx := ctx
	cancel := context.CancelFunc(func() {})
	if f.cfg.Timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
	}
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		res.Outcome = OutcomeFatal
		res.Err = fmt.Errorf("build request: %w", err)
		return res
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			res.Outcome = OutcomeCanceled
			res.Err = ctx.Err()
			return res
		}
		// Connection errors and per-attempt deadline hits land here.
		res.Outcome = OutcomeTransient
		res.Err = fmt.Errorf("get %s: %w", url, err)
		return res
	}
	defer resp.Body.Close()

	switch {
	case f.isNotFound(resp.StatusCode):
		_, _ = io.Copy(io.Discard, resp.Body)
		res.Outcome = OutcomeNotFound
		return res

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			if ctx.Err() != nil {
				res.Outcome = OutcomeCanceled
				res.Err = ctx.Err()
				return res
			}
			res.Outcome = OutcomeTransient
			res.Err = fmt.Errorf("read body of %s: %w", url, readErr)
			return res
		}
		if len(body) == 0 {
			res.Outcome = OutcomeFatal
			res.Err = ErrEmptyDocument
			return res
		}
		relPath := ed.LocalPath("", f.cfg.Granularity)
		finalPath, putErr := f.store.Put(ctx, relPath, body)
		if putErr != nil {
			res.Outcome = OutcomeFatal
			res.Err = fmt.Errorf("persist %s: %w", relPath, putErr)
			return res
		}
		res.Outcome = OutcomeSuccess
		res.Path = finalPath
		res.Bytes = int64(len(body))
		return res

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		res.Outcome = OutcomeTransient
		res.Err = fmt.Errorf("status %d from %s", resp.StatusCode, url)
		return res

	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		res.Outcome = OutcomeFatal
		res.Err = fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
		return res
	}
}

func (f *Fetcher) isNotFound(status int) bool {
	_, ok := f.notFound[status]
	return ok
}

// record mirrors the outcome into the ledger. Ledger write failures are
// logged, not escalated: the worst case is one extra download next run.
func (f *Fetcher) record(ctx context.Context, res Result) {
	key := res.Edition.Key()
	switch res.Outcome {
	case OutcomeSuccess:
		if err := f.ledger.MarkDone(ctx, key); err != nil {
			f.logger.Error("failed to record completion",
				zap.String("edition", key), zap.Error(err))
		}
		f.ledger.AddStat(ledger.StatDownloadsCompleted, 1)
	case OutcomeNotFound:
		if !f.cfg.RecordNotFound {
			return
		}
		if err := f.ledger.MarkMissing(ctx, key); err != nil {
			f.logger.Warn("failed to record missing date",
				zap.String("edition", key), zap.Error(err))
		}
	case OutcomeFatal:
		if err := f.ledger.RecordFailure(ctx, key, res.Edition.URL(), res.Err); err != nil {
			f.logger.Warn("failed to record fatal failure",
				zap.String("edition", key), zap.Error(err))
		}
		f.ledger.AddStat(ledger.StatDownloadsFailed, 1)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
