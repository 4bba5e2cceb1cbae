// Package pool implements the bounded worker pool that drains the edition
// stream through the fetcher.
package pool

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vfrank66/lucas-download/internal/diario"
	"github.com/vfrank66/lucas-download/internal/fetch"
	"github.com/vfrank66/lucas-download/internal/metrics"
	"github.com/vfrank66/lucas-download/internal/progress"
)

// DefaultWorkers bounds concurrency when no level is configured.
const DefaultWorkers = 40

// Source yields editions to download, one at a time. Only the pool's feeder
// goroutine calls Next, so implementations need not be concurrency safe.
type Source interface {
	Next() (diario.Edition, bool)
}

// Fetcher performs one edition download. *fetch.Fetcher satisfies this.
type Fetcher interface {
	Do(ctx context.Context, ed diario.Edition) fetch.Result
}

// Config controls pool behavior.
type Config struct {
	// Workers is the concurrency bound (default DefaultWorkers).
	Workers int
}

// Pool dispatches editions to up to Workers concurrent fetches. Items are
// pulled on demand, so memory stays bounded regardless of range size.
type Pool struct {
	cfg     Config
	fetcher Fetcher
	emitter progress.Emitter
	logger  *zap.Logger
}

// New builds a Pool.
func New(cfg Config, fetcher Fetcher, emitter progress.Emitter, logger *zap.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{cfg: cfg, fetcher: fetcher, emitter: emitter, logger: logger}
}

// Run drains the source and returns once every dispatched edition has an
// outcome. Per-item failures never abort the run. When ctx is canceled the
// feeder stops dispatching; in-flight fetches wind down through their own
// context and are counted as canceled.
func (p *Pool) Run(ctx context.Context, runID [16]byte, src Source) Summary {
	start := time.Now()
	items := make(chan diario.Edition)

	go func() {
		defer close(items)
		for {
			ed, ok := src.Next()
			if !ok {
				return
			}
			select {
			case items <- ed:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sum Summary
	)
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ed := range items {
				res := p.process(ctx, runID, ed)
				mu.Lock()
				sum.observe(res)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sum.Elapsed = time.Since(start)
	return sum
}

func (p *Pool) process(ctx context.Context, runID [16]byte, ed diario.Edition) fetch.Result {
	p.emitter.Emit(progress.Event{
		RunID:   runID,
		TS:      time.Now().UTC(),
		Stage:   progress.StageFetchStart,
		Edition: ed.Key(),
		URL:     ed.URL(),
	})
	metrics.IncActiveWorkers()

	res := p.fetcher.Do(ctx, ed)

	metrics.DecActiveWorkers()
	metrics.ObserveEdition(string(res.Outcome), res.Bytes)

	evt := progress.Event{
		RunID:   runID,
		TS:      time.Now().UTC(),
		Stage:   progress.StageFetchDone,
		Edition: ed.Key(),
		URL:     ed.URL(),
		Outcome: progress.Outcome(res.Outcome),
		Bytes:   res.Bytes,
		Dur:     res.Duration,
	}
	if res.Err != nil {
		evt.Note = res.Err.Error()
	}
	p.emitter.Emit(evt)
	return res
}

// SliceSource adapts a fixed edition list (e.g. a discovery result) to the
// Source interface.
type SliceSource struct {
	items []diario.Edition
	idx   int
}

// NewSliceSource wraps items without copying.
func NewSliceSource(items []diario.Edition) *SliceSource {
	return &SliceSource{items: items}
}

// Next returns the next edition; ok is false once the list is exhausted.
func (s *SliceSource) Next() (diario.Edition, bool) {
	if s.idx >= len(s.items) {
		return diario.Edition{}, false
	}
	ed := s.items[s.idx]
	s.idx++
	return ed, true
}

type nopEmitter struct{}

func (nopEmitter) Emit(progress.Event) {}
