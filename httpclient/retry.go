package httpclient

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"syscall"
	"time"
)

// The retry loop is an explicit state machine rather than a sleep-and-hope
// loop: each attempt's classified outcome drives the transition, and the
// wall-clock budget is checked before every transition into backoff.
type retryState int

const (
	stateAttempting retryState = iota
	stateBackoff
	stateSucceeded
	stateExhausted
)

type outcomeClass int

const (
	// outcomeSettled covers every HTTP response that is not a transient
	// status, including 4xx/5xx: those are valid results, not faults.
	outcomeSettled outcomeClass = iota
	outcomeTransient
	outcomeFatal
)

func classifyStatus(status int) outcomeClass {
	switch status {
	case 502, 503, 504:
		return outcomeTransient
	default:
		return outcomeSettled
	}
}

func classifyTransportError(err error) outcomeClass {
	if errors.Is(err, context.Canceled) {
		return outcomeFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return outcomeTransient
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return outcomeFatal
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return outcomeTransient
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return outcomeTransient
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return outcomeTransient
	}
	return outcomeFatal
}

// backoffDelay computes the wait before the given (1-based) retry, doubling
// the base each time with half-jitter so concurrent callers spread out.
func backoffDelay(base time.Duration, retry int) time.Duration {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	delay := base
	for i := 1; i < retry; i++ {
		delay *= 2
	}
	half := int64(delay / 2)
	return time.Duration(half + rand.Int63n(half+1))
}
