package apitests

import (
	"context"
	"fmt"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apiharness/service-contract-tests/assertions"
	"github.com/apiharness/service-contract-tests/config"
	"github.com/apiharness/service-contract-tests/contract"
	"github.com/apiharness/service-contract-tests/fixtures"
	"github.com/apiharness/service-contract-tests/framework"
	"github.com/apiharness/service-contract-tests/httpclient"
	"github.com/apiharness/service-contract-tests/mockctl"
	"github.com/apiharness/service-contract-tests/servicemodel"
)

// AllFeatures lists every environment feature flag the suite understands.
var AllFeatures = []string{
	"mock-verification",
}

const defaultScopeTimeout = time.Minute

type suiteEnv struct {
	environment config.Environment
	contracts   *contract.Registry
	fixtureDefs *fixtures.Registry
	mocks       *mockctl.Controller
}

// T represents a test or subtest in the API test suite.
//
// It implements the same basic functionality as Go's testing.T, but in an
// environment outside of the Go test runner; the assert and require packages
// work against it directly. Each T owns a fixture scope and an HTTP client
// whose debug output is captured for that test, and tears the scope down in
// reverse acquisition order when the test ends, whatever the outcome.
type T struct {
	context *framework.Context
	env     *suiteEnv
	client  *httpclient.Client
	scope   *fixtures.Scope
	cancel  context.CancelFunc
}

var _ require.TestingT = (*T)(nil)

func newTestScope(c *framework.Context, env *suiteEnv) *T {
	ctx, cancel := context.WithTimeout(context.Background(), defaultScopeTimeout)
	return &T{
		context: c,
		env:     env,
		client:  httpclient.New(env.environment, c.DebugLogger()),
		scope:   env.fixtureDefs.NewScope(ctx, c.DebugLogger()),
		cancel:  cancel,
	}
}

func (t *T) close() {
	for _, err := range t.scope.Close() {
		t.context.Debug("fixture teardown: %s", err)
	}
	if t.env.mocks != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := t.env.mocks.ClearAll(ctx); err != nil {
			t.context.Debug("clearing mock state: %s", err)
		}
		cancel()
	}
	t.cancel()
}

// Errorf is called by assertions to log a test failure without exiting.
func (t *T) Errorf(format string, args ...interface{}) {
	t.context.Errorf(format, args...)
}

// FailNow stops the test immediately; the require package calls this.
// Fixture teardown still runs.
func (t *T) FailNow() {
	t.context.FailNow()
}

// Run runs a subtest with its own fixture scope and captured debug output.
func (t *T) Run(name string, action func(*T)) {
	var t1 *T
	t.context.Run(name, func(c *framework.Context) {
		t1 = newTestScope(c, t.env)
		defer t1.close()
		action(t1)
	})
}

// Debug logs debug output for this test.
func (t *T) Debug(format string, args ...interface{}) {
	t.context.Debug(format, args...)
}

// Context returns the deadline-bounded context for this test's blocking work.
func (t *T) Context() context.Context {
	return t.scope.Context()
}

// Environment returns the resolved environment configuration.
func (t *T) Environment() config.Environment {
	return t.env.environment
}

// RequireFeature skips the test unless the environment declares the feature.
func (t *T) RequireFeature(feature string) {
	if !t.env.environment.HasFeature(feature) {
		t.context.SkipWithReason(fmt.Sprintf("environment %q does not declare feature %q",
			t.env.environment.Name, feature))
	}
}

// Fixture resolves a fixture by name within this test's scope, failing the
// test immediately if acquisition fails (including dependency cycles).
func (t *T) Fixture(name string) interface{} {
	value, err := t.scope.Get(name)
	if err != nil {
		t.Errorf("%s", err)
		t.FailNow()
	}
	return value
}

// Mocks returns the mock mapping controller, skipping the test if the
// environment has no virtualization service. Mock state is cleared after
// every test scope regardless.
func (t *T) Mocks() *mockctl.Controller {
	if t.env.mocks == nil {
		t.context.SkipWithReason("environment defines no mock_admin_url")
	}
	return t.env.mocks
}

// Schema resolves a contract schema by name from the run's registry.
func (t *T) Schema(name string) *contract.Schema {
	schema, err := t.env.contracts.Get(name)
	require.NoError(t, err)
	return schema
}

// CallEndpoint sends a form-encoded request to the application's endpoint
// and fails the test on a transport-level error.
func (t *T) CallEndpoint(req servicemodel.EndpointRequest) *httpclient.ResponseRecord {
	spec := httpclient.RequestSpec{
		Method: "POST",
		Path:   servicemodel.EndpointPath,
	}.WithFormBody(req.FormValues())
	record, err := t.client.Send(t.Context(), spec)
	require.NoError(t, err)
	return record
}

// Send issues an arbitrary request through the test's HTTP client.
func (t *T) Send(spec httpclient.RequestSpec) (*httpclient.ResponseRecord, error) {
	return t.client.Send(t.Context(), spec)
}

// SendAsync issues a request concurrently through the test's HTTP client.
func (t *T) SendAsync(spec httpclient.RequestSpec) <-chan httpclient.AsyncResult {
	return t.client.SendAsync(t.Context(), spec)
}

// MustPass fails the test on a non-nil assertion failure, attaching the diff
// and the response snapshot for the report renderer.
func (t *T) MustPass(record *httpclient.ResponseRecord, f *assertions.AssertionFailure) {
	if f == nil {
		return
	}
	if record != nil {
		t.context.Attach("response", record.Snapshot())
	}
	t.context.Attach("assertion", f)
	t.Errorf("%s", f.Error())
	t.FailNow()
}

// RequireConformsTo validates the record against a named schema and fails
// with the violation diff if it does not conform.
func (t *T) RequireConformsTo(record *httpclient.ResponseRecord, schemaName string) {
	t.MustPass(record, assertions.MatchesContract(record, t.Schema(schemaName)))
}
