package apitests

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiharness/service-contract-tests/config"
	"github.com/apiharness/service-contract-tests/framework"
	"github.com/apiharness/service-contract-tests/mockservice"
	"github.com/apiharness/service-contract-tests/servicemodel"
)

// fakeApp is a minimal stand-in for the application under test. It implements
// the endpoint's documented behavior: API-key enforcement, token validation,
// session state, and calls to the external collaborator.
type fakeApp struct {
	apiKey      string
	externalURL string

	lock     sync.Mutex
	sessions map[string]bool
}

var tokenFormat = regexp.MustCompile(`^[0-9A-F]{32}$`)

func (a *fakeApp) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != servicemodel.EndpointPath {
		w.WriteHeader(200)
		return
	}
	if req.Header.Get("X-Api-Key") != a.apiKey {
		w.WriteHeader(401)
		return
	}
	_ = req.ParseForm()
	token, action := req.PostFormValue("token"), req.PostFormValue("action")
	if !tokenFormat.MatchString(token) {
		a.writeError(w, "invalid token format")
		return
	}
	switch action {
	case servicemodel.ActionLogin:
		if !a.callExternal(servicemodel.AuthPath) {
			a.writeError(w, "auth service rejected the token")
			return
		}
		a.setSession(token, true)
		a.writeOK(w)
	case servicemodel.ActionAction:
		if !a.hasSession(token) {
			a.writeError(w, "token is not logged in")
			return
		}
		if !a.callExternal(servicemodel.DoActionPath) {
			a.writeError(w, "action service failed")
			return
		}
		a.writeOK(w)
	case servicemodel.ActionLogout:
		if !a.hasSession(token) {
			a.writeError(w, "token is not logged in")
			return
		}
		a.setSession(token, false)
		a.writeOK(w)
	default:
		a.writeError(w, "unknown action")
	}
}

func (a *fakeApp) callExternal(path string) bool {
	resp, err := http.Post(a.externalURL+path, "application/json", nil)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (a *fakeApp) setSession(token string, active bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if active {
		a.sessions[token] = true
	} else {
		delete(a.sessions, token)
	}
}

func (a *fakeApp) hasSession(token string) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.sessions[token]
}

func (a *fakeApp) writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"result":"OK"}`))
}

func (a *fakeApp) writeError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"result":"ERROR","message":"` + message + `"}`))
}

func startApp(t *testing.T, externalURL string) *httptest.Server {
	app := httptest.NewServer(&fakeApp{
		apiKey:      "test-key",
		externalURL: externalURL,
		sessions:    make(map[string]bool),
	})
	t.Cleanup(app.Close)
	return app
}

func testEnvironment(appURL, mockAdminURL string) config.Environment {
	return config.Environment{
		Name:             "e2e",
		BaseURL:          appURL,
		MockAdminURL:     mockAdminURL,
		APIKey:           "test-key",
		Timeout:          5 * time.Second,
		RetryMaxAttempts: 3,
		RetryBackoffBase: 10 * time.Millisecond,
		RetryBudget:      5 * time.Second,
		Features:         []string{"mock-verification"},
	}
}

func requireNoFailures(t *testing.T, results framework.Results) {
	t.Helper()
	for _, failure := range results.Failures {
		t.Errorf("unexpected failure in %q: %v", failure.TestID, failure.Errors)
	}
}

func TestSuiteAgainstFakeApplication(t *testing.T) {
	mock := httptest.NewServer(mockservice.New(framework.NullLogger()))
	t.Cleanup(mock.Close)
	app := startApp(t, mock.URL)
	env := testEnvironment(app.URL, mock.URL)

	require.NoError(t, WaitForService(env, 2*time.Second, framework.NullLogger()))

	results, err := RunTestSuite(env, "testdata/contracts", nil, framework.NullTestLogger(), framework.NullLogger())
	require.NoError(t, err)

	requireNoFailures(t, results)
	assert.True(t, results.OK())
	assert.NotEmpty(t, results.Tests)
	assert.Empty(t, results.Skips, "no test should be skipped in a fully provisioned environment")
}

func TestSuiteSkipsMockTestsWithoutAdminURL(t *testing.T) {
	// A live collaborator that always authorizes, standing in for the real
	// external service of an environment with no virtualization layer.
	external := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(200)
	}))
	t.Cleanup(external.Close)
	app := startApp(t, external.URL)
	env := testEnvironment(app.URL, "")
	env.Features = nil

	results, err := RunTestSuite(env, "testdata/contracts", nil, framework.NullTestLogger(), framework.NullLogger())
	require.NoError(t, err)

	requireNoFailures(t, results)
	assert.NotEmpty(t, results.Skips, "mock-dependent tests should be skipped")
}

func TestSuiteHonorsFilter(t *testing.T) {
	mock := httptest.NewServer(mockservice.New(framework.NullLogger()))
	t.Cleanup(mock.Close)
	app := startApp(t, mock.URL)
	env := testEnvironment(app.URL, mock.URL)

	var filters framework.RegexFilters
	require.NoError(t, filters.MustMatch.Set("^authentication"))

	results, err := RunTestSuite(env, "testdata/contracts", filters.AsFilter, framework.NullTestLogger(), framework.NullLogger())
	require.NoError(t, err)

	requireNoFailures(t, results)
	assert.NotEmpty(t, results.Tests)
	for _, r := range results.Tests {
		assert.True(t, strings.HasPrefix(r.TestID.String(), "authentication"),
			"test %q should have been excluded", r.TestID)
	}
}
