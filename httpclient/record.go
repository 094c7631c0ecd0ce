package httpclient

import (
	"encoding/json"
	"net/http"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// ResponseRecord is the immutable capture of one completed logical call: the
// final response plus how the call got there. 4xx/5xx statuses are valid
// records, not errors.
type ResponseRecord struct {
	Status        int
	Headers       http.Header
	Body          []byte
	Elapsed       time.Duration
	RetryCount    int
	CorrelationID string
}

// JSON parses the body as a dynamic JSON value. The raw body stays the source
// of truth; parsing on demand keeps the record itself immutable.
func (r *ResponseRecord) JSON() (ldvalue.Value, error) {
	var v ldvalue.Value
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return ldvalue.Null(), err
	}
	return v, nil
}

// Snapshot is the renderer-friendly form of a record, attached to failing
// tests so failures can be reproduced without re-running.
type Snapshot struct {
	Status        int               `json:"status"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          string            `json:"body,omitempty"`
	ElapsedMS     int64             `json:"elapsedMs"`
	RetryCount    int               `json:"retryCount"`
	CorrelationID string            `json:"correlationId"`
}

// Snapshot flattens the record for attachment to a test result.
func (r *ResponseRecord) Snapshot() Snapshot {
	headers := make(map[string]string, len(r.Headers))
	for name := range r.Headers {
		headers[name] = r.Headers.Get(name)
	}
	return Snapshot{
		Status:        r.Status,
		Headers:       headers,
		Body:          string(r.Body),
		ElapsedMS:     r.Elapsed.Milliseconds(),
		RetryCount:    r.RetryCount,
		CorrelationID: r.CorrelationID,
	}
}
