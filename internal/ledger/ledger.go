// Package ledger persists which editions have already been downloaded so
// interrupted runs resume instead of starting over.
package ledger

import (
	"context"
	"time"
)

// Stat keys accumulated across runs.
const (
	StatDownloadsCompleted = "downloads_completed"
	StatDownloadsFailed    = "downloads_failed"
)

// FailureRecord captures a download that exhausted its retries, kept for
// manual follow-up.
type FailureRecord struct {
	Date      string `json:"date,omitempty"`
	URL       string `json:"url"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// Ledger is the durable set of completed edition keys, plus the dates the
// archive is known to have no edition for. Implementations must be safe for
// concurrent use by the worker pool; completions accepted by MarkDone
// survive a clean Close.
//
// Completed and missing are disjoint sets: a completed key implies the file
// exists on disk, a missing key only means the archive returned "no such
// document" once and need not be probed again.
type Ledger interface {
	// Contains reports whether the edition key is already recorded done.
	Contains(key string) bool
	// Len returns the number of completed keys currently recorded.
	Len() int
	// MarkDone records a completed edition. Marking a key twice is a no-op.
	MarkDone(ctx context.Context, key string) error
	// MarkMissing records a date the archive has no edition for.
	MarkMissing(ctx context.Context, key string) error
	// IsMissing reports whether the date is recorded as having no edition.
	IsMissing(key string) bool
	// RecordFailure notes an edition whose download failed for good.
	RecordFailure(ctx context.Context, key, url string, cause error) error
	// AddStat accumulates a named counter persisted alongside completions.
	AddStat(name string, delta int64)
	// Stats returns a snapshot of the accumulated counters.
	Stats() map[string]int64
	// Close flushes any batched state. The ledger is unusable afterwards.
	Close(ctx context.Context) error
}

func timestamp(now func() time.Time) string {
	if now == nil {
		now = time.Now
	}
	return now().UTC().Format(time.RFC3339)
}
