package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart   Stage = "RUN_START"
	StageRunDone    Stage = "RUN_DONE"
	StageFetchStart Stage = "FETCH_START"
	StageFetchDone  Stage = "FETCH_DONE"
)

// Outcome mirrors the fetcher's terminal classification of one edition.
type Outcome string

// Supported fetch outcomes.
const (
	OutcomeSuccess     Outcome = "success"
	OutcomeAlreadyDone Outcome = "already_done"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeFatal       Outcome = "fatal_failure"
	OutcomeCanceled    Outcome = "canceled"
)

// Event captures a single milestone of a download run.
type Event struct {
	// RunID uniquely identifies a run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or fetch milestone occurred.
	Stage Stage
	// Edition is the ledger key of the edition a fetch event concerns.
	Edition string
	// URL is the remote document location for fetch events.
	URL string
	// Outcome classifies a completed fetch.
	Outcome Outcome
	// Bytes carries the document size written to disk, when any.
	Bytes int64
	// Dur captures execution latency for fetch completions and whole runs.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageFetchStart:
		if e.Edition == "" {
			return errors.New("fetch start requires an edition key")
		}
	case StageFetchDone:
		if e.Edition == "" {
			return errors.New("fetch done requires an edition key")
		}
		if err := e.Outcome.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

func (o Outcome) validate() error {
	switch o {
	case OutcomeSuccess, OutcomeAlreadyDone, OutcomeNotFound, OutcomeFatal, OutcomeCanceled:
		return nil
	case "":
		return errors.New("fetch done requires an outcome")
	default:
		return fmt.Errorf("unknown outcome %q", o)
	}
}

// RunUUID converts the binary run ID to uuid.UUID for display.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
