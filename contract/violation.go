package contract

import "fmt"

// Severity classifies a violation. Structural problems are errors; a
// deprecated field that is still present is only a warning.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Violation is one point where a payload diverges from its contract. An empty
// violation list means the payload conforms.
type Violation struct {
	Path     string   `json:"path"`
	Expected string   `json:"expected"`
	Actual   string   `json:"actual"`
	Severity Severity `json:"severity"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s at %s: expected %s, got %s", v.Severity, v.Path, v.Expected, v.Actual)
}

// Errors filters the list down to error-severity violations, for assertions
// that tolerate warnings.
func Errors(violations []Violation) []Violation {
	var out []Violation
	for _, v := range violations {
		if v.Severity == SeverityError {
			out = append(out, v)
		}
	}
	return out
}
