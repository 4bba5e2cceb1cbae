package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/vfrank66/lucas-download/internal/progress"
)

// Snapshot is a point-in-time view of the current run, served by the
// status endpoint.
type Snapshot struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	Success     int64     `json:"success"`
	NotFound    int64     `json:"not_found"`
	Failed      int64     `json:"failed"`
	Canceled    int64     `json:"canceled"`
	Bytes       int64     `json:"bytes"`
	InFlight    int64     `json:"in_flight"`
	ElapsedSecs float64   `json:"elapsed_seconds"`
}

// StatsSink accumulates live run counters from the event stream. It is the
// in-memory source behind the /progress endpoint.
type StatsSink struct {
	mu        sync.Mutex
	runID     string
	startedAt time.Time
	counts    map[progress.Outcome]int64
	bytes     int64
	inFlight  int64
}

// NewStatsSink builds an empty StatsSink.
func NewStatsSink() *StatsSink {
	return &StatsSink{counts: make(map[progress.Outcome]int64)}
}

// Consume folds the batch into the live counters.
func (s *StatsSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.runID = evt.RunUUID().String()
			s.startedAt = evt.TS
		case progress.StageFetchStart:
			s.inFlight++
		case progress.StageFetchDone:
			if s.inFlight > 0 {
				s.inFlight--
			}
			s.counts[evt.Outcome]++
			s.bytes += evt.Bytes
		}
	}
	return nil
}

// Snapshot returns the current counters.
func (s *StatsSink) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		RunID:     s.runID,
		StartedAt: s.startedAt,
		Success:   s.counts[progress.OutcomeSuccess],
		NotFound:  s.counts[progress.OutcomeNotFound],
		Failed:    s.counts[progress.OutcomeFatal],
		Canceled:  s.counts[progress.OutcomeCanceled],
		Bytes:     s.bytes,
		InFlight:  s.inFlight,
	}
	if !s.startedAt.IsZero() {
		snap.ElapsedSecs = time.Since(s.startedAt).Seconds()
	}
	return snap
}

// Close implements the Sink interface; it performs no action.
func (s *StatsSink) Close(context.Context) error {
	return nil
}
