// Package config resolves named environment definitions into the immutable
// configuration shared by every component of the harness.
//
// Merge order, lowest to highest precedence: built-in defaults, then the named
// environment file (environments/<name>.yaml), then process environment
// variables prefixed with APP_ (APP_BASE_URL overrides base_url), then any
// explicit override map supplied by the caller. A key absent at every layer
// stays absent; it is not defaulted to an empty value.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envVarPrefix = "APP_"

// DefaultDir is where environment definition files live unless the caller
// says otherwise.
const DefaultDir = "environments"

const (
	defaultTimeout          = 10 * time.Second
	defaultRetryMaxAttempts = 3
	defaultRetryBackoffBase = 250 * time.Millisecond
	defaultRetryBudget      = 10 * time.Second
)

// Environment is the resolved, immutable configuration for one test session.
// It is constructed exactly once and shared read-only by all components.
type Environment struct {
	Name             string
	BaseURL          string
	MockAdminURL     string
	APIKey           string
	DefaultHeaders   map[string]string
	Timeout          time.Duration
	RetryMaxAttempts int
	RetryBackoffBase time.Duration
	RetryBudget      time.Duration
	Features         []string
}

// HasFeature reports whether the environment declares a feature flag. Suites
// use this to skip tests an environment cannot support (for example, mock
// call-count verification when no virtualization service is deployed).
func (e Environment) HasFeature(name string) bool {
	for _, f := range e.Features {
		if f == name {
			return true
		}
	}
	return false
}

type environmentFile struct {
	BaseURL          string            `koanf:"base_url"`
	MockAdminURL     string            `koanf:"mock_admin_url"`
	APIKey           string            `koanf:"api_key"`
	DefaultHeaders   map[string]string `koanf:"default_headers"`
	Timeout          time.Duration     `koanf:"timeout"`
	RetryMaxAttempts int               `koanf:"retry_max_attempts"`
	RetryBackoffBase time.Duration     `koanf:"retry_backoff_base"`
	RetryBudget      time.Duration     `koanf:"retry_budget"`
	Features         []string          `koanf:"features"`
}

// Resolve loads the named environment from dir and layers process env vars and
// the explicit override map on top. It is a pure function over those sources:
// no side effects, and the same inputs always produce the same Environment.
func Resolve(dir, name string, overrides map[string]string) (Environment, error) {
	if name == "" {
		return Environment{}, &ConfigurationError{Reason: "no environment name given"}
	}
	if dir == "" {
		dir = DefaultDir
	}

	k := koanf.New(".")

	// built-in defaults, overridden by everything that follows
	_ = k.Set("timeout", defaultTimeout.String())
	_ = k.Set("retry_max_attempts", defaultRetryMaxAttempts)
	_ = k.Set("retry_backoff_base", defaultRetryBackoffBase.String())
	_ = k.Set("retry_budget", defaultRetryBudget.String())

	path := filepath.Join(dir, name+".yaml")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			return Environment{}, &ConfigurationError{
				Environment: name,
				Reason:      fmt.Sprintf("no such environment definition (%s)", path),
			}
		}
		return Environment{}, &ConfigurationError{
			Environment: name,
			Reason:      "environment definition could not be parsed",
			Err:         err,
		}
	}

	if err := k.Load(env.Provider(envVarPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envVarPrefix))
	}), nil); err != nil {
		return Environment{}, &ConfigurationError{
			Environment: name,
			Reason:      "could not read environment variable overrides",
			Err:         err,
		}
	}

	for key, value := range overrides {
		_ = k.Set(strings.ToLower(key), value)
	}

	var ef environmentFile
	if err := k.Unmarshal("", &ef); err != nil {
		return Environment{}, &ConfigurationError{
			Environment: name,
			Reason:      "environment definition has wrong field types",
			Err:         err,
		}
	}
	if ef.BaseURL == "" {
		return Environment{}, &ConfigurationError{
			Environment: name,
			Reason:      "required field base_url is missing after merge",
		}
	}

	resolved := Environment{
		Name:             name,
		BaseURL:          strings.TrimRight(ef.BaseURL, "/"),
		MockAdminURL:     strings.TrimRight(ef.MockAdminURL, "/"),
		APIKey:           ef.APIKey,
		DefaultHeaders:   ef.DefaultHeaders,
		Timeout:          ef.Timeout,
		RetryMaxAttempts: ef.RetryMaxAttempts,
		RetryBackoffBase: ef.RetryBackoffBase,
		RetryBudget:      ef.RetryBudget,
		Features:         ef.Features,
	}
	return resolved, nil
}
