package source

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoData marks a source that cannot serve the request at all
// (unsupported granularity, empty payload). It is an attempt failure,
// distinct from a legitimately empty series returned without error.
var ErrNoData = errors.New("source: no data")

// BadResponseError covers non-2xx statuses and unparsable bodies.
type BadResponseError struct {
	Source string
	Status int
	Reason string
}

func (e *BadResponseError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: bad response: status %d: %s", e.Source, e.Status, e.Reason)
	}
	return fmt.Sprintf("%s: bad response: %s", e.Source, e.Reason)
}

// ExhaustedError is the Chain's terminal failure: every source spent
// all of its attempts. Callers above the fetchers never see it; the
// synthesizer consumes it.
type ExhaustedError struct {
	Symbol   string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all sources exhausted for %s after %d attempts: %v", e.Symbol, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// IsExhausted reports whether err is a total Chain failure.
func IsExhausted(err error) bool {
	var e *ExhaustedError
	return errors.As(err, &e)
}

// outcome buckets an attempt error for logs and metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrNoData):
		return "no_data"
	default:
		var bad *BadResponseError
		if errors.As(err, &bad) {
			return "bad_response"
		}
		return "error"
	}
}
