package fixtures

import (
	"fmt"
	"strings"
)

// FixtureCycleError means fixture dependency declarations form a cycle. It is
// detected at resolution time, before any acquire in the cycle runs, and
// aborts only the affected test.
type FixtureCycleError struct {
	Cycle []string
}

func (e *FixtureCycleError) Error() string {
	return fmt.Sprintf("fixture dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// UnknownFixtureError means a test (or a fixture's dependency list) named a
// fixture that was never defined.
type UnknownFixtureError struct {
	Name string
}

func (e *UnknownFixtureError) Error() string {
	return fmt.Sprintf("no fixture named %q is defined", e.Name)
}
