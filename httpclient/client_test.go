package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiharness/service-contract-tests/config"
)

func testEnv(baseURL string) config.Environment {
	return config.Environment{
		Name:             "test",
		BaseURL:          baseURL,
		APIKey:           "test-key",
		DefaultHeaders:   map[string]string{"Accept": "application/json", "X-Env": "from-env"},
		Timeout:          2 * time.Second,
		RetryMaxAttempts: 3,
		RetryBackoffBase: time.Millisecond,
		RetryBudget:      5 * time.Second,
	}
}

type headerCapture struct {
	lock    sync.Mutex
	headers []http.Header
	methods []string
	bodies  []string
}

func capturingServer(status int, body string) (*httptest.Server, *headerCapture) {
	capture := &headerCapture{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data := make([]byte, 0)
		if r.Body != nil {
			buf := make([]byte, 4096)
			n, _ := r.Body.Read(buf)
			data = buf[:n]
		}
		capture.lock.Lock()
		capture.headers = append(capture.headers, r.Header.Clone())
		capture.methods = append(capture.methods, r.Method)
		capture.bodies = append(capture.bodies, string(data))
		capture.lock.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	return server, capture
}

func TestSendAppliesDefaultHeadersAndAPIKey(t *testing.T) {
	server, capture := capturingServer(200, `{"result":"OK"}`)
	defer server.Close()

	client := New(testEnv(server.URL), nil)
	record, err := client.Send(context.Background(), RequestSpec{Method: "GET", Path: "/status"})
	require.NoError(t, err)
	assert.Equal(t, 200, record.Status)

	require.Len(t, capture.headers, 1)
	h := capture.headers[0]
	assert.Equal(t, "application/json", h.Get("Accept"))
	assert.Equal(t, "test-key", h.Get("X-Api-Key"))
	assert.NotEmpty(t, h.Get(CorrelationHeader))
	assert.Equal(t, record.CorrelationID, h.Get(CorrelationHeader))
}

func TestSpecHeadersOverrideEnvironmentDefaults(t *testing.T) {
	server, capture := capturingServer(200, "")
	defer server.Close()

	client := New(testEnv(server.URL), nil)
	spec := RequestSpec{
		Method:  "GET",
		Path:    "/status",
		Headers: http.Header{"X-Env": []string{"from-spec"}},
	}
	_, err := client.Send(context.Background(), spec)
	require.NoError(t, err)

	require.Len(t, capture.headers, 1)
	assert.Equal(t, "from-spec", capture.headers[0].Get("X-Env"))
	assert.Equal(t, "application/json", capture.headers[0].Get("Accept"))
}

func TestErrorStatusIsAValidRecordNotAnError(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithStatus(404))
	defer server.Close()

	client := New(testEnv(server.URL), nil)
	record, err := client.Send(context.Background(), RequestSpec{Method: "GET", Path: "/missing"})
	require.NoError(t, err)
	assert.Equal(t, 404, record.Status)
	assert.Equal(t, 0, record.RetryCount)
}

func TestTransientStatusIsRetriedUntilSuccess(t *testing.T) {
	handler := httphelpers.SequentialHandler(
		httphelpers.HandlerWithStatus(503),
		httphelpers.HandlerWithStatus(503),
		httphelpers.HandlerWithStatus(503),
		httphelpers.HandlerWithResponse(200, nil, []byte(`{"result":"OK"}`)),
	)
	server := httptest.NewServer(handler)
	defer server.Close()

	client := New(testEnv(server.URL), nil)
	spec := RequestSpec{Method: "GET", Path: "/flaky", MaxAttempts: 4}
	record, err := client.Send(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, 200, record.Status)
	assert.Equal(t, 3, record.RetryCount)
}

func TestCorrelationIDIsConstantAcrossRetries(t *testing.T) {
	server, capture := capturingServer(503, "")
	defer server.Close()

	client := New(testEnv(server.URL), nil)
	_, err := client.Send(context.Background(), RequestSpec{Method: "GET", Path: "/down"})
	require.Error(t, err)

	require.Len(t, capture.headers, 3)
	first := capture.headers[0].Get(CorrelationHeader)
	require.NotEmpty(t, first)
	for _, h := range capture.headers {
		assert.Equal(t, first, h.Get(CorrelationHeader))
	}
}

func TestRetryExhaustionIsTransientCallFailureWithLastRecord(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithStatus(503))
	defer server.Close()

	client := New(testEnv(server.URL), nil)
	record, err := client.Send(context.Background(), RequestSpec{Method: "GET", Path: "/down"})
	assert.Nil(t, record)

	var transient *TransientCallFailure
	require.ErrorAs(t, err, &transient)
	assert.Len(t, transient.Attempts, 3)
	require.NotNil(t, transient.LastRecord)
	assert.Equal(t, 503, transient.LastRecord.Status)
	assert.Equal(t, 2, transient.LastRecord.RetryCount)
	assert.NotEmpty(t, transient.CorrelationID)
}

func TestNonIdempotentMethodIsNotRetried(t *testing.T) {
	server, capture := capturingServer(503, "")
	defer server.Close()

	client := New(testEnv(server.URL), nil)
	record, err := client.Send(context.Background(), RequestSpec{Method: "POST", Path: "/create"})
	require.NoError(t, err)
	assert.Equal(t, 503, record.Status)
	assert.Len(t, capture.methods, 1)
}

func TestNonIdempotentMethodRetriesWithExplicitOptIn(t *testing.T) {
	server, capture := capturingServer(503, "")
	defer server.Close()

	client := New(testEnv(server.URL), nil)
	spec := RequestSpec{Method: "POST", Path: "/create", RetryNonIdempotent: true}
	_, err := client.Send(context.Background(), spec)

	var transient *TransientCallFailure
	require.ErrorAs(t, err, &transient)
	assert.Len(t, capture.methods, 3)
}

func TestConnectionRefusedIsTransientAndExhausts(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithStatus(200))
	baseURL := server.URL
	server.Close() // nothing is listening any more

	client := New(testEnv(baseURL), nil)
	record, err := client.Send(context.Background(), RequestSpec{Method: "GET", Path: "/status"})
	assert.Nil(t, record)

	var transient *TransientCallFailure
	require.ErrorAs(t, err, &transient)
	assert.Len(t, transient.Attempts, 3)
	assert.Nil(t, transient.LastRecord)
}

func TestDNSFailureFailsImmediately(t *testing.T) {
	env := testEnv("http://no-such-host.invalid")
	client := New(env, nil)

	started := time.Now()
	record, err := client.Send(context.Background(), RequestSpec{Method: "GET", Path: "/status"})
	assert.Nil(t, record)

	var fatal *CallFailure
	require.ErrorAs(t, err, &fatal)
	assert.Len(t, fatal.Attempts, 1)
	assert.Less(t, time.Since(started), 2*time.Minute)
}

func TestCancellationAbortsOutstandingRetries(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithStatus(503))
	defer server.Close()

	env := testEnv(server.URL)
	env.RetryBackoffBase = time.Minute // force a long backoff
	client := New(env, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	started := time.Now()
	_, err := client.Send(ctx, RequestSpec{Method: "GET", Path: "/down"})
	var fatal *CallFailure
	require.ErrorAs(t, err, &fatal)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(started), 10*time.Second)
}

func TestBackoffBudgetBoundsTotalWallClockTime(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithStatus(503))
	defer server.Close()

	env := testEnv(server.URL)
	env.RetryBackoffBase = time.Minute
	env.RetryBudget = 100 * time.Millisecond
	client := New(env, nil)

	started := time.Now()
	_, err := client.Send(context.Background(), RequestSpec{Method: "GET", Path: "/down"})
	var transient *TransientCallFailure
	require.ErrorAs(t, err, &transient)
	assert.Len(t, transient.Attempts, 1)
	assert.Less(t, time.Since(started), 10*time.Second)
}

func TestFormBodyIsEncodedWithContentType(t *testing.T) {
	server, capture := capturingServer(200, "")
	defer server.Close()

	client := New(testEnv(server.URL), nil)
	spec := RequestSpec{Method: "POST", Path: "/endpoint"}.WithFormBody(url.Values{
		"token":  []string{"ABC123"},
		"action": []string{"LOGIN"},
	})
	_, err := client.Send(context.Background(), spec)
	require.NoError(t, err)

	require.Len(t, capture.bodies, 1)
	assert.Equal(t, "application/x-www-form-urlencoded", capture.headers[0].Get("Content-Type"))
	values, err := url.ParseQuery(capture.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, "ABC123", values.Get("token"))
	assert.Equal(t, "LOGIN", values.Get("action"))
}

func TestQueryParametersAreAppended(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.WriteHeader(200)
	}))
	defer server.Close()

	client := New(testEnv(server.URL), nil)
	spec := RequestSpec{Method: "GET", Path: "/search", Query: url.Values{"q": []string{"ann"}}}
	_, err := client.Send(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, "ann", gotQuery.Get("q"))
}

func TestSendAsyncDeliversResult(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithResponse(200, nil, []byte(`{"id":42,"name":"Ann"}`)))
	defer server.Close()

	client := New(testEnv(server.URL), nil)
	ch := client.SendAsync(context.Background(), RequestSpec{Method: "GET", Path: "/users/42"})

	select {
	case result := <-ch:
		require.NoError(t, result.Err)
		assert.Equal(t, 200, result.Record.Status)
		parsed, err := result.Record.JSON()
		require.NoError(t, err)
		assert.Equal(t, 42, parsed.GetByKey("id").IntValue())
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for async result")
	}
}

func TestAbsolutePathBypassesBaseURL(t *testing.T) {
	server, capture := capturingServer(200, "")
	defer server.Close()

	// environment points somewhere that is not listening; the absolute URL
	// must win
	client := New(testEnv("http://localhost:1"), nil)
	_, err := client.Send(context.Background(), RequestSpec{Method: "GET", Path: server.URL + "/direct"})
	require.NoError(t, err)
	assert.Len(t, capture.methods, 1)
}
