package pool

import (
	"fmt"
	"time"

	"github.com/vfrank66/lucas-download/internal/fetch"
)

// Summary aggregates per-outcome counts for one run. AlreadyDone covers
// editions the run controller skipped before dispatch; the other counts come
// from fetch outcomes.
type Summary struct {
	Success     int
	AlreadyDone int
	NotFound    int
	Failed      int
	Canceled    int
	Bytes       int64
	Elapsed     time.Duration
}

func (s *Summary) observe(res fetch.Result) {
	switch res.Outcome {
	case fetch.OutcomeSuccess:
		s.Success++
		s.Bytes += res.Bytes
	case fetch.OutcomeAlreadyDone:
		s.AlreadyDone++
	case fetch.OutcomeNotFound:
		s.NotFound++
	case fetch.OutcomeCanceled:
		s.Canceled++
	default:
		s.Failed++
	}
}

// Total returns the number of editions accounted for.
func (s Summary) Total() int {
	return s.Success + s.AlreadyDone + s.NotFound + s.Failed + s.Canceled
}

// String renders the one-line form used in the final log message.
func (s Summary) String() string {
	return fmt.Sprintf(
		"success=%d already_done=%d not_found=%d failed=%d canceled=%d bytes=%d elapsed=%s",
		s.Success, s.AlreadyDone, s.NotFound, s.Failed, s.Canceled, s.Bytes, s.Elapsed.Round(time.Millisecond),
	)
}
