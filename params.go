package main

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/alessio/shellescape"

	"github.com/apiharness/service-contract-tests/config"
	"github.com/apiharness/service-contract-tests/contract"
	"github.com/apiharness/service-contract-tests/framework"
)

type commandParams struct {
	envName          string
	configDir        string
	contractsDir     string
	overrides        overrideList
	filters          framework.RegexFilters
	outputPath       string
	embeddedMockPort int
	startupTimeout   time.Duration
	debug            bool
	debugAll         bool
}

func (c *commandParams) Read(args []string) bool {
	fs := flag.NewFlagSet("", flag.ExitOnError)
	fs.StringVar(&c.envName, "env", "local", "name of the target environment")
	fs.StringVar(&c.configDir, "config-dir", config.DefaultDir, "directory containing environment definition files")
	fs.StringVar(&c.contractsDir, "contracts-dir", contract.DefaultDir, "directory containing contract schema files")
	fs.Var(&c.overrides, "set", "environment override as key=value (may be repeated)")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.StringVar(&c.outputPath, "output", "", "file path for machine-readable JSON results")
	fs.IntVar(&c.embeddedMockPort, "embedded-mock-port", 0, "run the built-in mock service on this port (0 = use the environment's own)")
	fs.DurationVar(&c.startupTimeout, "startup-timeout", 10*time.Second, "how long to wait for the service under test to answer")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return false
	}
	if c.envName == "" {
		fmt.Fprintln(os.Stderr, "-env is required")
		fs.Usage()
		return false
	}
	return true
}

// rerunHint builds a shell command that re-runs exactly the tests that
// failed.
func (c commandParams) rerunHint(failed []framework.TestID) string {
	var b commandBuilder
	b.add(os.Args[0], "-env", c.envName)
	if c.configDir != config.DefaultDir {
		b.add("-config-dir", c.configDir)
	}
	if c.contractsDir != contract.DefaultDir {
		b.add("-contracts-dir", c.contractsDir)
	}
	for _, o := range c.overrides {
		b.add("-set", o)
	}
	b.add("-debug")
	for _, id := range failed {
		b.add("-run", "^"+regexp.QuoteMeta(id.String())+"$")
	}
	return b.String()
}

// overrideList accumulates repeated -set flags (it implements flag.Value).
type overrideList []string

func (o overrideList) String() string {
	return strings.Join(o, " ")
}

func (o *overrideList) Set(value string) error {
	if !strings.Contains(value, "=") {
		return fmt.Errorf("override %q is not in key=value form", value)
	}
	*o = append(*o, value)
	return nil
}

// AsMap splits the accumulated key=value pairs for the environment resolver.
func (o overrideList) AsMap() map[string]string {
	if len(o) == 0 {
		return nil
	}
	m := make(map[string]string, len(o))
	for _, pair := range o {
		kv := strings.SplitN(pair, "=", 2)
		m[kv[0]] = kv[1]
	}
	return m
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}
