package mockctl

import "fmt"

// UnexpectedCallCount means the mock service's call log did not settle on the
// expected number of matching calls within the verification wait.
type UnexpectedCallCount struct {
	Key      string
	Expected int
	Observed int
}

func (e *UnexpectedCallCount) Error() string {
	return fmt.Sprintf("mapping %q: expected %d matching calls, observed %d",
		e.Key, e.Expected, e.Observed)
}

// AdminError means the mock service's administration API itself failed.
type AdminError struct {
	Operation string
	Status    int
	Err       error
}

func (e *AdminError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mock admin %s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("mock admin %s failed with HTTP %d", e.Operation, e.Status)
}

func (e *AdminError) Unwrap() error { return e.Err }
