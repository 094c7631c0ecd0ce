// Package assertions provides the domain-specific checks tests run against
// response records. Each check is pure: it inspects the record and either
// passes or describes exactly how it failed, as data a report renderer can
// format. Nothing here mutates the record or talks to the network.
package assertions

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/apiharness/service-contract-tests/contract"
	"github.com/apiharness/service-contract-tests/httpclient"
)

// AssertionFailure carries a structured expected/actual diff plus enough
// context (correlation id, response snapshot) to reproduce the failure
// without re-running the test.
type AssertionFailure struct {
	Check    string                 `json:"check"`
	Expected string                 `json:"expected"`
	Actual   string                 `json:"actual"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

func (e *AssertionFailure) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Check, e.Expected, e.Actual)
}

func failure(check, expected, actual string, record *httpclient.ResponseRecord) *AssertionFailure {
	f := &AssertionFailure{Check: check, Expected: expected, Actual: actual}
	if record != nil {
		f.Context = map[string]interface{}{
			"correlationId": record.CorrelationID,
			"status":        record.Status,
			"retryCount":    record.RetryCount,
		}
	}
	return f
}

// StatusClass checks that the status code is in the given class: class 2
// accepts any 2xx, class 4 any 4xx, and so on.
func StatusClass(record *httpclient.ResponseRecord, class int) *AssertionFailure {
	if record.Status/100 == class {
		return nil
	}
	return failure("status-class",
		fmt.Sprintf("%dxx status", class),
		fmt.Sprintf("%d", record.Status),
		record)
}

// Status checks for one exact status code.
func Status(record *httpclient.ResponseRecord, want int) *AssertionFailure {
	if record.Status == want {
		return nil
	}
	return failure("status",
		fmt.Sprintf("%d", want),
		fmt.Sprintf("%d", record.Status),
		record)
}

// LatencyUnder checks the call's total elapsed time (including retries)
// against a bound.
func LatencyUnder(record *httpclient.ResponseRecord, bound time.Duration) *AssertionFailure {
	if record.Elapsed <= bound {
		return nil
	}
	return failure("latency",
		fmt.Sprintf("at most %s", bound),
		record.Elapsed.String(),
		record)
}

// HeaderPresent checks that a response header exists with any value.
func HeaderPresent(record *httpclient.ResponseRecord, name string) *AssertionFailure {
	if record.Headers.Get(name) != "" {
		return nil
	}
	return failure("header-present",
		fmt.Sprintf("header %q present", name),
		"absent",
		record)
}

// HeaderEquals checks a response header's exact value.
func HeaderEquals(record *httpclient.ResponseRecord, name, want string) *AssertionFailure {
	got := record.Headers.Get(name)
	if got == want {
		return nil
	}
	actual := fmt.Sprintf("%q", got)
	if got == "" {
		actual = "absent"
	}
	return failure("header-value",
		fmt.Sprintf("header %q = %q", name, want),
		actual,
		record)
}

// MatchesContract checks the response body against a named contract schema.
// Error-severity violations fail the assertion, with the violation list in
// the failure context; warnings alone pass. An undecodable body is also a
// failure, reported as such rather than as a violation.
func MatchesContract(record *httpclient.ResponseRecord, schema *contract.Schema) *AssertionFailure {
	violations, err := contract.Validate(record, schema)
	if err != nil {
		f := failure("contract", fmt.Sprintf("body decodable for schema %q", schema.Name), err.Error(), record)
		return f
	}
	errors := contract.Errors(violations)
	if len(errors) == 0 {
		return nil
	}
	f := failure("contract",
		fmt.Sprintf("body conforming to schema %q", schema.Name),
		fmt.Sprintf("%d violations", len(errors)),
		record)
	if data, err := json.Marshal(errors); err == nil {
		f.Context["violations"] = json.RawMessage(data)
	}
	return f
}
