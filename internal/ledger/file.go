package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vfrank66/lucas-download/internal/storage/local"
)

// DefaultFilePath is where progress has historically been recorded.
const DefaultFilePath = "download_progress.json"

// FileConfig captures the parameters for the JSON file ledger.
type FileConfig struct {
	// Path is the progress file location.
	Path string `mapstructure:"path" yaml:"path"`
	// FlushEvery batches that many MarkDone/RecordFailure calls per rewrite.
	// 1 persists on every call.
	FlushEvery int `mapstructure:"flush_every" yaml:"flush_every"`
}

// progressFile is the on-disk shape. It matches the files historic runs
// wrote, so existing progress keeps counting; not_found_dates is a newer
// addition old files simply lack.
type progressFile struct {
	CompletedDates  []string         `json:"completed_dates"`
	NotFoundDates   []string         `json:"not_found_dates,omitempty"`
	FailedDownloads []FailureRecord  `json:"failed_downloads"`
	Stats           map[string]int64 `json:"stats"`
}

// File is a Ledger backed by a single JSON file, rewritten atomically on
// flush.
type File struct {
	mu         sync.Mutex
	path       string
	flushEvery int
	now        func() time.Time

	completed    map[string]struct{}
	order        []string
	missing      map[string]struct{}
	missingOrder []string
	failures     []FailureRecord
	stats        map[string]int64
	dirty        int
	closed       bool
}

// OpenFile loads the progress file at cfg.Path. A missing file yields an
// empty ledger; a file that exists but cannot be parsed is a hard error, so
// a corrupt ledger never silently restarts the whole archive.
func OpenFile(cfg FileConfig) (*File, error) {
	path := cfg.Path
	if path == "" {
		path = DefaultFilePath
	}
	flushEvery := cfg.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 1
	}

	f := &File{
		path:       path,
		flushEvery: flushEvery,
		now:        time.Now,
		completed:  make(map[string]struct{}),
		missing:    make(map[string]struct{}),
		stats:      make(map[string]int64),
	}

	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied ledger path.
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("read progress file %s: %w", path, err)
	}

	var pf progressFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse progress file %s: %w", path, err)
	}
	for _, key := range pf.CompletedDates {
		if _, ok := f.completed[key]; ok {
			continue
		}
		f.completed[key] = struct{}{}
		f.order = append(f.order, key)
	}
	for _, key := range pf.NotFoundDates {
		if _, ok := f.missing[key]; ok {
			continue
		}
		f.missing[key] = struct{}{}
		f.missingOrder = append(f.missingOrder, key)
	}
	f.failures = pf.FailedDownloads
	if pf.Stats != nil {
		f.stats = pf.Stats
	}
	return f, nil
}

// Path returns the backing file location.
func (f *File) Path() string {
	return f.path
}

// Contains reports whether the edition key is already recorded done.
func (f *File) Contains(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.completed[key]
	return ok
}

// Len returns the number of completed keys currently recorded.
func (f *File) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completed)
}

// MarkDone records a completed edition and flushes once the batch threshold
// is reached. The flush ignores cancellation: a finished download is worth
// recording even while the run shuts down.
func (f *File) MarkDone(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("ledger %s is closed", f.path)
	}
	if _, ok := f.completed[key]; ok {
		return nil
	}
	f.completed[key] = struct{}{}
	f.order = append(f.order, key)
	f.dirty++
	return f.maybeFlushLocked()
}

// MarkMissing records a date the archive has no edition for, so later runs
// skip probing it.
func (f *File) MarkMissing(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("ledger %s is closed", f.path)
	}
	if _, ok := f.missing[key]; ok {
		return nil
	}
	f.missing[key] = struct{}{}
	f.missingOrder = append(f.missingOrder, key)
	f.dirty++
	return f.maybeFlushLocked()
}

// IsMissing reports whether the date is recorded as having no edition.
func (f *File) IsMissing(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.missing[key]
	return ok
}

// RecordFailure appends a failure record for manual follow-up.
func (f *File) RecordFailure(_ context.Context, key, url string, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("ledger %s is closed", f.path)
	}
	rec := FailureRecord{
		Date:      key,
		URL:       url,
		Timestamp: timestamp(f.now),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	f.failures = append(f.failures, rec)
	f.dirty++
	return f.maybeFlushLocked()
}

// AddStat accumulates a named counter; it is persisted with the next flush.
func (f *File) AddStat(name string, delta int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats[name] += delta
}

// Stats returns a snapshot of the accumulated counters.
func (f *File) Stats() map[string]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int64, len(f.stats))
	for k, v := range f.stats {
		out[k] = v
	}
	return out
}

// Flush forces any batched state to disk.
func (f *File) Flush(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dirty == 0 {
		return nil
	}
	return f.flushLocked()
}

// Close flushes pending state and marks the ledger unusable.
func (f *File) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if f.dirty == 0 {
		return nil
	}
	return f.flushLocked()
}

func (f *File) maybeFlushLocked() error {
	if f.dirty < f.flushEvery {
		return nil
	}
	return f.flushLocked()
}

func (f *File) flushLocked() error {
	pf := progressFile{
		CompletedDates:  f.order,
		NotFoundDates:   f.missingOrder,
		FailedDownloads: f.failures,
		Stats:           f.stats,
	}
	if pf.CompletedDates == nil {
		pf.CompletedDates = []string{}
	}
	if pf.FailedDownloads == nil {
		pf.FailedDownloads = []FailureRecord{}
	}
	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return fmt.Errorf("encode progress file: %w", err)
	}
	if err := local.WriteFileAtomic(f.path, data); err != nil {
		return fmt.Errorf("write progress file %s: %w", f.path, err)
	}
	f.dirty = 0
	return nil
}
