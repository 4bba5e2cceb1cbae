package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vfrank66/lucas-download/internal/progress"
)

func TestLogSinkOneLinePerOutcome(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))

	runID := progress.UUIDToBytes(uuid.New())
	batch := []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StageFetchStart, Edition: "a"},
		{
			RunID: runID, TS: time.Now(), Stage: progress.StageFetchDone,
			Edition: "a", Outcome: progress.OutcomeSuccess, Bytes: 10,
		},
		{
			RunID: runID, TS: time.Now(), Stage: progress.StageFetchDone,
			Edition: "b", Outcome: progress.OutcomeFatal, Note: "status 500",
		},
		{
			RunID: runID, TS: time.Now(), Stage: progress.StageFetchDone,
			Edition: "c", Outcome: progress.OutcomeNotFound,
		},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.NoError(t, sink.Close(context.Background()))

	// Fetch starts are not logged; the three completions are.
	require.Equal(t, 3, logs.Len())
	require.Equal(t, 1, logs.FilterMessage("downloaded").Len())
	require.Equal(t, 1, logs.FilterMessage("no edition published").Len())

	failed := logs.FilterMessage("download failed")
	require.Equal(t, 1, failed.Len())
	require.Equal(t, zapcore.ErrorLevel, failed.All()[0].Level)
	require.Equal(t, "status 500", failed.All()[0].ContextMap()["cause"])
}
