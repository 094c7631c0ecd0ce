package httpclient

import (
	"fmt"
	"strings"
	"time"
)

// AttemptInfo records the outcome of a single network attempt, so a failed
// call carries its full attempt history.
type AttemptInfo struct {
	Attempt int           `json:"attempt"`
	Status  int           `json:"status,omitempty"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsedNs"`
}

func describeAttempts(attempts []AttemptInfo) string {
	var parts []string
	for _, a := range attempts {
		if a.Error != "" {
			parts = append(parts, fmt.Sprintf("#%d: %s", a.Attempt, a.Error))
		} else {
			parts = append(parts, fmt.Sprintf("#%d: HTTP %d", a.Attempt, a.Status))
		}
	}
	return strings.Join(parts, "; ")
}

// CallFailure means a call failed for a reason retrying cannot fix: a
// non-transient transport fault (DNS resolution, malformed response), a
// cancelled context, or an unbuildable request.
type CallFailure struct {
	CorrelationID string
	Attempts      []AttemptInfo
	Err           error
}

func (e *CallFailure) Error() string {
	return fmt.Sprintf("call failed (correlation id %s): %s [attempts: %s]",
		e.CorrelationID, e.Err, describeAttempts(e.Attempts))
}

func (e *CallFailure) Unwrap() error { return e.Err }

// TransientCallFailure means every permitted retry of a transient fault was
// used up. LastRecord is non-nil when the final attempt produced an HTTP
// response (for example a persistent 503); it is nil when the final attempt
// failed at the transport level.
type TransientCallFailure struct {
	CorrelationID string
	Attempts      []AttemptInfo
	LastRecord    *ResponseRecord
	Err           error
}

func (e *TransientCallFailure) Error() string {
	return fmt.Sprintf("transient fault persisted after %d attempts (correlation id %s): %s [attempts: %s]",
		len(e.Attempts), e.CorrelationID, e.Err, describeAttempts(e.Attempts))
}

func (e *TransientCallFailure) Unwrap() error { return e.Err }
