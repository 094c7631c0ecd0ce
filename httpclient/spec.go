package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// RequestSpec describes one logical HTTP call. The caller owns the value; the
// client never mutates it.
//
// Path is resolved against the environment's base URL unless it is already an
// absolute URL (mock endpoints hand out absolute URLs). Headers override the
// environment's default headers key-for-key.
type RequestSpec struct {
	Method  string
	Path    string
	Headers http.Header
	Query   url.Values

	Body        []byte
	ContentType string

	// Timeout overrides the environment's per-attempt timeout when nonzero.
	Timeout time.Duration

	// MaxAttempts overrides the environment's retry attempt limit when nonzero.
	MaxAttempts int

	// RetryNonIdempotent opts a POST/PATCH/DELETE call into retries. Without
	// it such calls get exactly one network attempt, to avoid duplicate side
	// effects.
	RetryNonIdempotent bool
}

// WithJSONBody returns a copy of the spec carrying v marshalled as JSON.
// It panics if v cannot be marshalled; request bodies are built from test
// code, so that is a programming error rather than a runtime condition.
func (s RequestSpec) WithJSONBody(v interface{}) RequestSpec {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("unserializable request body: %s", err))
	}
	s.Body = data
	s.ContentType = "application/json"
	return s
}

// WithFormBody returns a copy of the spec carrying values form-encoded, the
// way the application under test expects its endpoint parameters.
func (s RequestSpec) WithFormBody(values url.Values) RequestSpec {
	s.Body = []byte(values.Encode())
	s.ContentType = "application/x-www-form-urlencoded"
	return s
}

var nonIdempotentMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

func (s RequestSpec) retryableMethod() bool {
	return !nonIdempotentMethods[s.Method] || s.RetryNonIdempotent
}
