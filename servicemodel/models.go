// Package servicemodel describes the wire surface of the Spring Boot
// application under test: the form-encoded /endpoint operation and its JSON
// response payloads.
package servicemodel

import (
	"net/url"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// EndpointPath is the application's single business endpoint.
const EndpointPath = "/endpoint"

// Actions accepted by the endpoint.
const (
	ActionLogin  = "LOGIN"
	ActionAction = "ACTION"
	ActionLogout = "LOGOUT"
)

// Paths of the external collaborator the application calls through the mock
// service.
const (
	AuthPath     = "/auth"
	DoActionPath = "/doAction"
)

// Values of the "result" field in endpoint responses.
const (
	ResultOK    = "OK"
	ResultError = "ERROR"
)

// Names of the contract schemas the endpoint's responses are validated
// against.
const (
	SchemaSuccessResponse = "success-response"
	SchemaErrorResponse   = "error-response"
)

// EndpointRequest is one call to the endpoint. The application expects it
// form-encoded.
type EndpointRequest struct {
	Token  string
	Action string
}

// FormValues returns the request as the form parameters the endpoint expects.
func (r EndpointRequest) FormValues() url.Values {
	return url.Values{
		"token":  []string{r.Token},
		"action": []string{r.Action},
	}
}

// SuccessResponse is the endpoint's payload when the action succeeded.
type SuccessResponse struct {
	Result string `json:"result"`
}

// ErrorResponse is the endpoint's payload when the action failed. The
// message is optional in older application versions.
type ErrorResponse struct {
	Result  string                 `json:"result"`
	Message ldvalue.OptionalString `json:"message,omitempty"`
}
