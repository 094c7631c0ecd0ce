// Package httpclient is the disciplined HTTP client used for every outbound
// call the harness makes to the application under test: default-header
// injection from the environment, bounded retries of transient faults,
// correlation-id tracing across attempts, and structured capture of the final
// response.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/apiharness/service-contract-tests/config"
	"github.com/apiharness/service-contract-tests/framework"
)

// CorrelationHeader is attached to every attempt of a logical call so
// multiple retries are traceable as one call in server logs.
const CorrelationHeader = "X-Correlation-Id"

const apiKeyHeader = "X-Api-Key"

// Client issues calls against one resolved environment. It is safe for
// concurrent use: the only shared state is the underlying connection pool.
type Client struct {
	env        config.Environment
	httpClient *http.Client
	logger     framework.Logger
}

// New creates a Client for the environment. A nil logger discards debug
// output.
func New(env config.Environment, logger framework.Logger) *Client {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Client{
		env:        env,
		httpClient: &http.Client{},
		logger:     framework.Prefixed(logger, "http"),
	}
}

// AsyncResult is what SendAsync delivers when the call completes.
type AsyncResult struct {
	Record *ResponseRecord
	Err    error
}

// SendAsync runs Send in a goroutine for tests that issue concurrent calls.
// The returned channel is buffered, so the result is never lost if the caller
// reads late.
func (c *Client) SendAsync(ctx context.Context, spec RequestSpec) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)
	go func() {
		record, err := c.Send(ctx, spec)
		ch <- AsyncResult{Record: record, Err: err}
	}()
	return ch
}

// Send executes one logical call, retrying transient faults per the
// environment's retry policy. HTTP error statuses are returned as valid
// records; Send only returns an error for transport faults, retry
// exhaustion, or cancellation. On retry exhaustion the error is a
// *TransientCallFailure carrying the attempt history and the last response,
// if there was one.
func (c *Client) Send(ctx context.Context, spec RequestSpec) (*ResponseRecord, error) {
	correlationID := uuid.NewString()
	maxAttempts := spec.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = c.env.RetryMaxAttempts
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	started := time.Now()
	budgetDeadline := started.Add(c.env.RetryBudget)

	var attempts []AttemptInfo
	var lastRecord *ResponseRecord
	var lastFault error

	attempt := 0
	state := stateAttempting
	for {
		switch state {
		case stateAttempting:
			attempt++
			record, info, class, err := c.doAttempt(ctx, spec, correlationID, attempt)
			attempts = append(attempts, info)
			lastRecord = record
			switch class {
			case outcomeFatal:
				return nil, &CallFailure{CorrelationID: correlationID, Attempts: attempts, Err: err}
			case outcomeSettled:
				state = stateSucceeded
			case outcomeTransient:
				if err != nil {
					lastFault = err
				} else {
					lastFault = fmt.Errorf("transient status %d", record.Status)
				}
				c.logger.Printf("attempt %d of %s %s failed transiently: %s",
					attempt, spec.Method, spec.Path, lastFault)
				switch {
				case !spec.retryableMethod():
					if record != nil {
						// a 502/503/504 on a non-retryable call is still a
						// valid record; only transport faults are errors here
						state = stateSucceeded
					} else {
						state = stateExhausted
					}
				case attempt >= maxAttempts:
					state = stateExhausted
				default:
					state = stateBackoff
				}
			}

		case stateBackoff:
			delay := backoffDelay(c.env.RetryBackoffBase, attempt)
			if c.env.RetryBudget > 0 && time.Now().Add(delay).After(budgetDeadline) {
				state = stateExhausted
				continue
			}
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, &CallFailure{CorrelationID: correlationID, Attempts: attempts, Err: ctx.Err()}
			case <-timer.C:
			}
			state = stateAttempting

		case stateSucceeded:
			record := *lastRecord
			record.Elapsed = time.Since(started)
			record.RetryCount = attempt - 1
			record.CorrelationID = correlationID
			return &record, nil

		case stateExhausted:
			if lastRecord != nil {
				record := *lastRecord
				record.Elapsed = time.Since(started)
				record.RetryCount = attempt - 1
				record.CorrelationID = correlationID
				lastRecord = &record
			}
			return nil, &TransientCallFailure{
				CorrelationID: correlationID,
				Attempts:      attempts,
				LastRecord:    lastRecord,
				Err:           lastFault,
			}
		}
	}
}

// doAttempt performs a single network attempt and classifies its outcome.
func (c *Client) doAttempt(
	ctx context.Context,
	spec RequestSpec,
	correlationID string,
	attempt int,
) (*ResponseRecord, AttemptInfo, outcomeClass, error) {
	info := AttemptInfo{Attempt: attempt}
	attemptStart := time.Now()

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = c.env.Timeout
	}
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := c.buildRequest(attemptCtx, spec, correlationID)
	if err != nil {
		info.Error = err.Error()
		info.Elapsed = time.Since(attemptStart)
		return nil, info, outcomeFatal, err
	}

	c.logger.Printf("%s %s (correlation id %s, attempt %d)", req.Method, req.URL, correlationID, attempt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		info.Error = err.Error()
		info.Elapsed = time.Since(attemptStart)
		return nil, info, classifyTransportError(err), err
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		info.Error = fmt.Sprintf("reading response body: %s", err)
		info.Elapsed = time.Since(attemptStart)
		return nil, info, outcomeTransient, fmt.Errorf("reading response body: %w", err)
	}

	info.Status = resp.StatusCode
	info.Elapsed = time.Since(attemptStart)
	record := &ResponseRecord{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Body:    body,
	}
	return record, info, classifyStatus(resp.StatusCode), nil
}

func (c *Client) buildRequest(ctx context.Context, spec RequestSpec, correlationID string) (*http.Request, error) {
	target := spec.Path
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		if !strings.HasPrefix(target, "/") {
			target = "/" + target
		}
		target = c.env.BaseURL + target
	}

	var body io.Reader
	if len(spec.Body) > 0 {
		body = bytes.NewReader(spec.Body)
	}
	req, err := http.NewRequestWithContext(ctx, spec.Method, target, body)
	if err != nil {
		return nil, err
	}

	if len(spec.Query) > 0 {
		q := req.URL.Query()
		for key, values := range spec.Query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	for key, value := range c.env.DefaultHeaders {
		req.Header.Set(key, value)
	}
	if c.env.APIKey != "" {
		req.Header.Set(apiKeyHeader, c.env.APIKey)
	}
	if spec.ContentType != "" {
		req.Header.Set("Content-Type", spec.ContentType)
	}
	for key, values := range spec.Headers {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set(CorrelationHeader, correlationID)
	return req, nil
}
