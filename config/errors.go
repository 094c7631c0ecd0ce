package config

import "fmt"

// ConfigurationError means an environment definition is missing or unusable.
// It is fatal to the run: the harness surfaces it before any test executes.
type ConfigurationError struct {
	Environment string
	Reason      string
	Err         error
}

func (e *ConfigurationError) Error() string {
	if e.Environment == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("configuration error for environment %q: %s: %v", e.Environment, e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration error for environment %q: %s", e.Environment, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
