// Package mockctl drives the service-virtualization layer: it registers
// request-matching rules on a WireMock-compatible mock service through its
// HTTP administration API, clears them between tests, and verifies call
// counts through the call-log query API.
package mockctl

import (
	"time"

	"github.com/google/uuid"
)

// MockMapping pairs a request matcher with a response template. Key is the
// mapping's stable identity: registering the same key again replaces the
// previous mapping instead of accumulating a duplicate.
type MockMapping struct {
	Key      string
	Request  RequestMatcher
	Response ResponseTemplate
}

// RequestMatcher describes which inbound calls the mapping should answer.
// URLPath matches exactly; URLPathPattern is a regex alternative. Headers
// are matched by equality; BodyContains substrings must all appear in the
// request body.
type RequestMatcher struct {
	Method         string
	URLPath        string
	URLPathPattern string
	Headers        map[string]string
	BodyContains   []string
}

// ResponseTemplate is what the mock service answers with, optionally after a
// fixed delay.
type ResponseTemplate struct {
	Status  int
	Headers map[string]string
	Body    string
	Delay   time.Duration
}

// MappingID derives the mock service's stub id deterministically from the
// mapping key, which is what makes registration an idempotent upsert.
func MappingID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mock-mapping:"+key)).String()
}

// Wire types below mirror the WireMock admin API's JSON format. They are
// shared with the in-process mockservice double.

// WireStub is the admin-API form of one stub mapping.
type WireStub struct {
	ID       string       `json:"id"`
	Name     string       `json:"name,omitempty"`
	Request  WireRequest  `json:"request"`
	Response WireResponse `json:"response"`
}

// WireRequest is the admin-API form of a request matcher; it doubles as the
// criteria body for the call-count query.
type WireRequest struct {
	Method         string                 `json:"method"`
	URLPath        string                 `json:"urlPath,omitempty"`
	URLPathPattern string                 `json:"urlPathPattern,omitempty"`
	Headers        map[string]WireMatcher `json:"headers,omitempty"`
	BodyPatterns   []WireBodyPattern      `json:"bodyPatterns,omitempty"`
}

// WireMatcher is a single header matcher.
type WireMatcher struct {
	EqualTo string `json:"equalTo"`
}

// WireBodyPattern is a single body matcher.
type WireBodyPattern struct {
	Contains string `json:"contains"`
}

// WireResponse is the admin-API form of a response template.
type WireResponse struct {
	Status                 int               `json:"status"`
	Headers                map[string]string `json:"headers,omitempty"`
	Body                   string            `json:"body,omitempty"`
	FixedDelayMilliseconds int               `json:"fixedDelayMilliseconds,omitempty"`
}

// WireCountResponse is the call-count query's response body.
type WireCountResponse struct {
	Count int `json:"count"`
}

// ToWire converts a mapping to its admin-API representation.
func (m MockMapping) ToWire() WireStub {
	req := WireRequest{
		Method:         m.Request.Method,
		URLPath:        m.Request.URLPath,
		URLPathPattern: m.Request.URLPathPattern,
	}
	if len(m.Request.Headers) > 0 {
		req.Headers = make(map[string]WireMatcher, len(m.Request.Headers))
		for name, value := range m.Request.Headers {
			req.Headers[name] = WireMatcher{EqualTo: value}
		}
	}
	for _, substr := range m.Request.BodyContains {
		req.BodyPatterns = append(req.BodyPatterns, WireBodyPattern{Contains: substr})
	}

	return WireStub{
		ID:      MappingID(m.Key),
		Name:    m.Key,
		Request: req,
		Response: WireResponse{
			Status:                 m.Response.Status,
			Headers:                m.Response.Headers,
			Body:                   m.Response.Body,
			FixedDelayMilliseconds: int(m.Response.Delay / time.Millisecond),
		},
	}
}
