package apitests

import (
	"context"
	"fmt"
	"time"

	"github.com/apiharness/service-contract-tests/config"
	"github.com/apiharness/service-contract-tests/contract"
	"github.com/apiharness/service-contract-tests/framework"
	"github.com/apiharness/service-contract-tests/httpclient"
	"github.com/apiharness/service-contract-tests/mockctl"
)

// RunTestSuite runs every API test against the configured environment and
// returns the accumulated results.
func RunTestSuite(
	environment config.Environment,
	contractsDir string,
	filter framework.Filter,
	testLogger framework.TestLogger,
	logger framework.Logger,
) (framework.Results, error) {
	env, err := newSuiteEnv(environment, contractsDir, logger)
	if err != nil {
		return framework.Results{}, err
	}
	results := framework.Run(filter, testLogger, func(c *framework.Context) {
		t := newTestScope(c, env)
		defer t.close()

		t.Run("authentication", DoAuthTests)
		t.Run("actions", DoActionTests)
		t.Run("external service integration", DoIntegrationTests)
		t.Run("load", DoLoadTests)
	})
	return results, nil
}

func newSuiteEnv(environment config.Environment, contractsDir string, logger framework.Logger) (*suiteEnv, error) {
	env := &suiteEnv{
		environment: environment,
		contracts:   contract.NewRegistry(contractsDir),
	}
	if environment.MockAdminURL != "" {
		mocks, err := mockctl.NewController(environment, framework.Prefixed(logger, "mockctl"))
		if err != nil {
			return nil, err
		}
		env.mocks = mocks
	}
	env.fixtureDefs = newFixtureRegistry(env, logger)
	return env, nil
}

// WaitForService polls the application under test (and the mock admin API,
// when one is configured) until both answer or the timeout elapses. Any HTTP
// status counts as answering; only transport failures keep the poll going.
func WaitForService(environment config.Environment, timeout time.Duration, logger framework.Logger) error {
	deadline := time.Now().Add(timeout)
	client := httpclient.New(environment, logger)
	var mocks *mockctl.Controller
	if environment.MockAdminURL != "" {
		var err error
		if mocks, err = mockctl.NewController(environment, logger); err != nil {
			return err
		}
	}

	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, err := client.Send(ctx, httpclient.RequestSpec{Method: "GET", Path: "/", MaxAttempts: 1})
		appUp := err == nil
		mocksUp := mocks == nil || mocks.Available(ctx)
		cancel()
		if appUp && mocksUp {
			return nil
		}
		if time.Now().After(deadline) {
			if !appUp {
				return fmt.Errorf("service at %s did not answer within %s: %w",
					environment.BaseURL, timeout, err)
			}
			return fmt.Errorf("mock admin API at %s did not answer within %s",
				environment.MockAdminURL, timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
