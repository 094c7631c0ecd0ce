package framework

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

// TestID identifies a test in the tree as the path of subtest names leading
// to it.
type TestID struct {
	Path []string
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}

// Attachment is a piece of structured failure context (a request/response
// snapshot, a list of contract violations) recorded by a test for the report
// renderer. Data is always JSON.
type Attachment struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// TestResult is the outcome of a single test.
type TestResult struct {
	TestID      TestID
	Errors      []error
	Skipped     bool
	SkipReason  string
	Attachments []Attachment
	Elapsed     time.Duration
}

// Results is the outcome of an entire run.
type Results struct {
	Tests    []TestResult
	Failures []TestResult
	Skips    []TestResult
}

// OK returns true if no test failed. Skipped tests do not count as failures.
func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// TestFailure pairs a test ID with one of its errors, for callers that want a
// flat error list.
type TestFailure struct {
	ID  TestID
	Err error
}

func (f TestFailure) Error() string {
	return fmt.Sprintf("[%s]: %s", f.ID, f.Err)
}

type jsonTestResult struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	Errors      []string     `json:"errors,omitempty"`
	SkipReason  string       `json:"skipReason,omitempty"`
	ElapsedMS   int64        `json:"elapsedMs"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type jsonResults struct {
	Passed  int              `json:"passed"`
	Failed  int              `json:"failed"`
	Skipped int              `json:"skipped"`
	Tests   []jsonTestResult `json:"tests"`
}

func (r TestResult) status() string {
	switch {
	case r.Skipped:
		return "skipped"
	case len(r.Errors) > 0:
		return "failed"
	default:
		return "passed"
	}
}

// WriteJSON writes the full run outcome as JSON. This is the machine-readable
// interface consumed by external report renderers; the shape is deliberately
// independent of how the tests were implemented.
func (r Results) WriteJSON(w io.Writer) error {
	out := jsonResults{
		Passed:  len(r.Tests) - len(r.Failures) - len(r.Skips),
		Failed:  len(r.Failures),
		Skipped: len(r.Skips),
	}
	for _, t := range r.Tests {
		jt := jsonTestResult{
			ID:          t.TestID.String(),
			Status:      t.status(),
			SkipReason:  t.SkipReason,
			ElapsedMS:   t.Elapsed.Milliseconds(),
			Attachments: t.Attachments,
		}
		for _, e := range t.Errors {
			jt.Errors = append(jt.Errors, e.Error())
		}
		out.Tests = append(out.Tests, jt)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// PrintResults writes a human-readable run summary to w.
func PrintResults(w io.Writer, results Results) {
	if results.OK() {
		color.New(color.FgGreen).Fprintf(w, "All tests passed (%d tests, %d skipped)\n",
			len(results.Tests), len(results.Skips))
		return
	}

	color.New(color.FgRed).Fprintf(w, "FAILED: %d tests out of %d (%d skipped)\n",
		len(results.Failures), len(results.Tests), len(results.Skips))
	fmt.Fprintln(w)
	for _, f := range results.Failures {
		color.New(color.FgRed).Fprintf(w, "* %s\n", f.TestID)
		for _, err := range f.Errors {
			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
}
