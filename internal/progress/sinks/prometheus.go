package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vfrank66/lucas-download/internal/progress"
)

// PrometheusSink exports download progress via Prometheus. It owns the
// collectors for runs started/completed and per-outcome edition counters.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runRuntime    prometheus.Histogram

	editions      *prometheus.CounterVec
	editionBytes  prometheus.Counter
	fetchDuration *prometheus.HistogramVec
	inFlight      prometheus.Gauge
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "download_runs_started_total",
			Help: "Total download runs that have started.",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "download_runs_completed_total",
			Help: "Total download runs that have completed.",
		}),
		runRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "download_run_runtime_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 3600, 14400},
		}),
		editions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "download_editions_processed_total",
			Help: "Edition fetch completions partitioned by outcome.",
		}, []string{"outcome"}),
		editionBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "download_edition_bytes_total",
			Help: "PDF bytes written to disk.",
		}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "download_fetch_duration_seconds",
			Help:    "Fetch duration partitioned by outcome.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "download_fetches_in_flight",
			Help: "Editions currently being fetched.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runRuntime,
		s.editions,
		s.editionBytes,
		s.fetchDuration,
		s.inFlight,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.runsCompleted.Inc()
		if evt.Dur > 0 {
			s.runRuntime.Observe(evt.Dur.Seconds())
		}
	case progress.StageFetchStart:
		s.inFlight.Inc()
	case progress.StageFetchDone:
		s.inFlight.Dec()
		s.editions.WithLabelValues(string(evt.Outcome)).Inc()
		if evt.Bytes > 0 {
			s.editionBytes.Add(float64(evt.Bytes))
		}
		if evt.Dur > 0 {
			s.fetchDuration.WithLabelValues(string(evt.Outcome)).Observe(evt.Dur.Seconds())
		}
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
