package mockctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/apiharness/service-contract-tests/config"
	"github.com/apiharness/service-contract-tests/framework"
)

const (
	defaultVerifyWait   = 2 * time.Second
	defaultPollInterval = 50 * time.Millisecond
)

// Controller manages mappings on one mock service for one test run. Mapping
// registration state is tracked locally so call-count queries can reuse the
// registered matcher as criteria.
type Controller struct {
	adminURL     string
	httpClient   *http.Client
	logger       framework.Logger
	verifyWait   time.Duration
	pollInterval time.Duration

	lock       sync.Mutex
	registered map[string]MockMapping

	keysLock sync.Mutex
	keys     map[string]*sync.Mutex
}

// NewController creates a controller for the environment's mock admin URL.
// It fails if the environment does not define one.
func NewController(env config.Environment, logger framework.Logger) (*Controller, error) {
	if env.MockAdminURL == "" {
		return nil, &config.ConfigurationError{
			Environment: env.Name,
			Reason:      "mock_admin_url is required for mock-backed tests",
		}
	}
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Controller{
		adminURL:     strings.TrimRight(env.MockAdminURL, "/"),
		httpClient:   &http.Client{},
		logger:       framework.Prefixed(logger, "mockctl"),
		verifyWait:   defaultVerifyWait,
		pollInterval: defaultPollInterval,
		registered:   make(map[string]MockMapping),
		keys:         make(map[string]*sync.Mutex),
	}, nil
}

// Available probes the admin API, so suites can skip mock-backed tests when
// no virtualization service is reachable.
func (c *Controller) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.adminURL+"/__admin/mappings", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < 500
}

// Register installs the mapping, replacing any existing mapping with the same
// key. Repeated registration across tests leaves exactly one active mapping.
func (c *Controller) Register(ctx context.Context, mapping MockMapping) error {
	if mapping.Key == "" {
		return fmt.Errorf("mock mapping has no key")
	}
	stub := mapping.ToWire()
	body, err := json.Marshal(stub)
	if err != nil {
		return &AdminError{Operation: "register", Err: err}
	}

	c.logger.Printf("registering mapping %q as stub %s", mapping.Key, stub.ID)
	url := fmt.Sprintf("%s/__admin/mappings/%s", c.adminURL, stub.ID)
	if err := c.adminCall(ctx, http.MethodPut, url, body, "register"); err != nil {
		return err
	}

	c.lock.Lock()
	c.registered[mapping.Key] = mapping
	c.lock.Unlock()
	return nil
}

// ClearAll removes every mapping and resets the call log. Test scopes that
// used mocking call this on every exit path to prevent cross-test leakage.
func (c *Controller) ClearAll(ctx context.Context) error {
	c.logger.Printf("clearing all mappings and the request journal")
	if err := c.adminCall(ctx, http.MethodDelete, c.adminURL+"/__admin/mappings", nil, "clear mappings"); err != nil {
		return err
	}
	if err := c.adminCall(ctx, http.MethodDelete, c.adminURL+"/__admin/requests", nil, "clear request journal"); err != nil {
		return err
	}
	c.lock.Lock()
	c.registered = make(map[string]MockMapping)
	c.lock.Unlock()
	return nil
}

// CallCountFor queries how many logged calls matched the mapping registered
// under key.
func (c *Controller) CallCountFor(ctx context.Context, key string) (int, error) {
	c.lock.Lock()
	mapping, ok := c.registered[key]
	c.lock.Unlock()
	if !ok {
		return 0, fmt.Errorf("no mapping registered under key %q", key)
	}

	criteria, err := json.Marshal(mapping.ToWire().Request)
	if err != nil {
		return 0, &AdminError{Operation: "count", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.adminURL+"/__admin/requests/count", bytes.NewReader(criteria))
	if err != nil {
		return 0, &AdminError{Operation: "count", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &AdminError{Operation: "count", Err: err}
	}
	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return 0, &AdminError{Operation: "count", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return 0, &AdminError{Operation: "count", Status: resp.StatusCode}
	}

	var count WireCountResponse
	if err := json.Unmarshal(data, &count); err != nil {
		return 0, &AdminError{Operation: "count", Err: err}
	}
	return count.Count, nil
}

// VerifyCallCount polls the call log until the mapping's count reaches
// expected, absorbing network and processing latency, then fails with
// *UnexpectedCallCount if it never does. An observed count above expected
// fails immediately. Verifying an expected count of zero keeps polling for
// the full wait window, so a late-arriving call still falsifies it.
func (c *Controller) VerifyCallCount(ctx context.Context, key string, expected int) error {
	deadline := time.Now().Add(c.verifyWait)
	observed := 0
	for {
		count, err := c.CallCountFor(ctx, key)
		if err != nil {
			return err
		}
		observed = count
		expired := !time.Now().Before(deadline)
		if observed == expected && (expected > 0 || expired) {
			return nil
		}
		if observed > expected || expired {
			return &UnexpectedCallCount{Key: key, Expected: expected, Observed: observed}
		}
		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// AcquireKey takes exclusive use of a mapping key and returns the release
// function. Tests that assert on call counts take the key lock so parallel
// tests cannot disturb each other's expectations.
func (c *Controller) AcquireKey(key string) (release func()) {
	c.keysLock.Lock()
	m, ok := c.keys[key]
	if !ok {
		m = &sync.Mutex{}
		c.keys[key] = m
	}
	c.keysLock.Unlock()

	m.Lock()
	return m.Unlock
}

func (c *Controller) adminCall(ctx context.Context, method, url string, body []byte, operation string) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &AdminError{Operation: operation, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &AdminError{Operation: operation, Err: err}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &AdminError{Operation: operation, Status: resp.StatusCode}
	}
	return nil
}
