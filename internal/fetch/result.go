// Package fetch retrieves single editions from the archive and persists
// them atomically, classifying every outcome.
package fetch

import (
	"errors"
	"time"

	"github.com/vfrank66/lucas-download/internal/diario"
)

// Outcome is the terminal classification of one edition fetch.
type Outcome string

// Outcome values reported per edition.
const (
	OutcomeSuccess     Outcome = "success"
	OutcomeAlreadyDone Outcome = "already_done"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeTransient   Outcome = "transient_failure"
	OutcomeFatal       Outcome = "fatal_failure"
	OutcomeCanceled    Outcome = "canceled"
)

// ErrEmptyDocument marks a 200 response carrying no bytes; writing it would
// violate the non-empty guarantee completed files carry.
var ErrEmptyDocument = errors.New("empty document body")

// Result reports what happened to a single edition.
type Result struct {
	Edition  diario.Edition
	Outcome  Outcome
	Path     string
	Bytes    int64
	Attempts int
	Duration time.Duration
	Err      error
}
