package framework

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

type environment struct {
	results    Results
	testLogger TestLogger
	filter     Filter
}

// Context represents a running test or subtest. It implements the subset of
// testing.T that the assert/require packages need (Errorf, FailNow), plus
// subtests, skipping, deferred cleanup, debug logging, and result attachments.
type Context struct {
	env         *environment
	id          TestID
	debugLogger CapturingLogger
	failed      bool
	skipped     bool
	skipReason  string
	errors      []error
	attachments []Attachment
	cleanups    []func()
}

// Run executes a top-level test action and returns the accumulated results of
// every test it (transitively) ran.
func Run(
	filter Filter,
	testLogger TestLogger,
	action func(*Context),
) Results {
	if testLogger == nil {
		testLogger = nullTestLogger{}
	}
	env := &environment{
		filter:     filter,
		testLogger: testLogger,
	}
	c := &Context{env: env}
	c.run(action, false)
	return env.results
}

func (c *Context) run(action func(*Context), record bool) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			if !c.skipped {
				c.failed = true
				var addError error
				if _, ok := r.(*Context); ok {
					// a panic with the Context itself is how FailNow unwinds
					if len(c.errors) == 0 {
						addError = errors.New("test failed with no failure message")
					}
				} else {
					addError = fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack()))
				}
				if addError != nil {
					c.errors = append(c.errors, addError)
					c.env.testLogger.TestError(c.id, addError)
				}
			}
		}
		c.runCleanups()
		if !record {
			return
		}
		result := TestResult{
			TestID:      c.id,
			Errors:      c.errors,
			Skipped:     c.skipped,
			SkipReason:  c.skipReason,
			Attachments: c.attachments,
			Elapsed:     time.Since(started),
		}
		c.env.results.Tests = append(c.env.results.Tests, result)
		if c.skipped {
			c.env.results.Skips = append(c.env.results.Skips, result)
		} else if c.failed {
			c.env.results.Failures = append(c.env.results.Failures, result)
		}
	}()

	action(c)
}

func (c *Context) runCleanups() {
	// reverse registration order, same discipline as testing.T.Cleanup
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		fn := c.cleanups[i]
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.failed = true
					err := fmt.Errorf("panic during test cleanup: %+v", r)
					c.errors = append(c.errors, err)
					c.env.testLogger.TestError(c.id, err)
				}
			}()
			fn()
		}()
	}
	c.cleanups = nil
}

// ID returns the full path identifying this test.
func (c *Context) ID() TestID {
	return c.id
}

// Run executes a named subtest. The subtest gets its own Context and its own
// captured debug output; a failure in the subtest does not abort the parent.
func (c *Context) Run(name string, action func(*Context)) {
	id := TestID{Path: append(append([]string(nil), c.id.Path...), name)}

	c.env.testLogger.TestStarted(id)
	if c.env.filter != nil && !c.env.filter(id) {
		c.env.testLogger.TestSkipped(id, "excluded by filter parameters")
		return
	}
	c1 := &Context{
		id:  id,
		env: c.env,
	}
	c1.run(action, true)
	if c1.skipped {
		c.env.testLogger.TestSkipped(id, c1.skipReason)
	} else {
		c.env.testLogger.TestFinished(id, c1.failed, c1.debugLogger.Output())
	}
}

// Errorf records a test failure without stopping the test. The assert package
// calls this.
func (c *Context) Errorf(format string, args ...interface{}) {
	c.failed = true
	err := fmt.Errorf(format, args...)
	c.errors = append(c.errors, err)
	c.env.testLogger.TestError(c.id, reformatError(err))
}

// FailNow stops the test immediately. The require package calls this after
// Errorf. Deferred cleanups still run.
func (c *Context) FailNow() {
	panic(c)
}

// Skip marks the test as skipped and stops it immediately.
func (c *Context) Skip() {
	c.skipped = true
	panic(c)
}

// SkipWithReason is Skip with an explanation that ends up in the results.
func (c *Context) SkipWithReason(reason string) {
	c.skipReason = reason
	c.Skip()
}

// Defer registers a function to run when this test (or subtest) ends,
// regardless of outcome. Functions run in reverse registration order.
func (c *Context) Defer(cleanup func()) {
	c.cleanups = append(c.cleanups, cleanup)
}

// Attach records structured failure context for the report renderer. The value
// is marshalled to JSON immediately, so later mutation of v is harmless.
func (c *Context) Attach(name string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprintf("unserializable attachment: %s", err))
	}
	c.attachments = append(c.attachments, Attachment{Name: name, Data: data})
}

// Debug logs debug output for the test, captured and shown only per the test
// logger's configuration.
func (c *Context) Debug(message string, args ...interface{}) {
	c.debugLogger.Printf(message, args...)
}

// DebugLogger returns the test's capturing logger, for passing into components
// that take a Logger.
func (c *Context) DebugLogger() Logger {
	return &c.debugLogger
}

// reformatError strips the noisy leading whitespace that testify puts into
// multi-line failure messages so console output stays aligned.
func reformatError(err error) error {
	lines := strings.Split(err.Error(), "\n")
	if len(lines) == 1 {
		return err
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return errors.New(strings.Join(out, "\n"))
}
