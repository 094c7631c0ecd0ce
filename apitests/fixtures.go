package apitests

import (
	"context"
	"fmt"
	"time"

	"github.com/apiharness/service-contract-tests/fixtures"
	"github.com/apiharness/service-contract-tests/framework"
	"github.com/apiharness/service-contract-tests/httpclient"
	"github.com/apiharness/service-contract-tests/mockctl"
	"github.com/apiharness/service-contract-tests/servicemodel"
)

// Well-known fixture names. Tests resolve these through T.Fixture; the
// definitions below declare their dependencies so a scope acquires them in
// order and releases them in reverse.
const (
	FixtureAuthToken    = "auth-token"
	FixtureAuthMock     = "auth-mock"
	FixtureActionMock   = "action-mock"
	FixtureLoginSession = "login-session"
)

// Keys of the standard mock mappings registered by the mock fixtures.
const (
	MappingAuthOK   = "auth-ok"
	MappingActionOK = "action-ok"
)

func newFixtureRegistry(env *suiteEnv, logger framework.Logger) *fixtures.Registry {
	r := fixtures.NewRegistry()

	r.MustDefine(fixtures.Definition{
		Name: FixtureAuthToken,
		Acquire: func(*fixtures.Scope) (interface{}, error) {
			return servicemodel.GenerateHexToken(servicemodel.DefaultTokenLength), nil
		},
	})

	r.MustDefine(fixtures.Definition{
		Name: FixtureAuthMock,
		Acquire: func(s *fixtures.Scope) (interface{}, error) {
			return registerStandardMapping(s, env, authOKMapping())
		},
	})

	r.MustDefine(fixtures.Definition{
		Name: FixtureActionMock,
		Acquire: func(s *fixtures.Scope) (interface{}, error) {
			return registerStandardMapping(s, env, actionOKMapping())
		},
	})

	sessionClient := httpclient.New(env.environment, framework.Prefixed(logger, "session"))
	r.MustDefine(fixtures.Definition{
		Name:         FixtureLoginSession,
		Dependencies: []string{FixtureAuthToken},
		Acquire: func(s *fixtures.Scope) (interface{}, error) {
			token, err := s.Get(FixtureAuthToken)
			if err != nil {
				return nil, err
			}
			return login(s.Context(), sessionClient, token.(string))
		},
		Release: func(value interface{}) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return logout(ctx, sessionClient, value.(string))
		},
	})

	return r
}

func registerStandardMapping(s *fixtures.Scope, env *suiteEnv, mapping mockctl.MockMapping) (interface{}, error) {
	if env.mocks == nil {
		return nil, fmt.Errorf("fixture %q requires a mock_admin_url in environment %q",
			mapping.Key, env.environment.Name)
	}
	if err := env.mocks.Register(s.Context(), mapping); err != nil {
		return nil, err
	}
	return mapping.Key, nil
}

func authOKMapping() mockctl.MockMapping {
	return mockctl.MockMapping{
		Key: MappingAuthOK,
		Request: mockctl.RequestMatcher{
			Method:  "POST",
			URLPath: servicemodel.AuthPath,
		},
		Response: mockctl.ResponseTemplate{
			Status:  200,
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    `{"status":"ok"}`,
		},
	}
}

func actionOKMapping() mockctl.MockMapping {
	return mockctl.MockMapping{
		Key: MappingActionOK,
		Request: mockctl.RequestMatcher{
			Method:  "POST",
			URLPath: servicemodel.DoActionPath,
		},
		Response: mockctl.ResponseTemplate{
			Status:  200,
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    `{"status":"done"}`,
		},
	}
}

func login(ctx context.Context, client *httpclient.Client, token string) (string, error) {
	record, err := sendAction(ctx, client, token, servicemodel.ActionLogin)
	if err != nil {
		return "", err
	}
	if record.Status != 200 {
		return "", fmt.Errorf("login for token %s returned status %d", token, record.Status)
	}
	value, err := record.JSON()
	if err != nil {
		return "", fmt.Errorf("login response was not valid JSON: %w", err)
	}
	if result := value.GetByKey("result").StringValue(); result != servicemodel.ResultOK {
		return "", fmt.Errorf("login for token %s returned result %q", token, result)
	}
	return token, nil
}

func logout(ctx context.Context, client *httpclient.Client, token string) error {
	_, err := sendAction(ctx, client, token, servicemodel.ActionLogout)
	return err
}

func sendAction(ctx context.Context, client *httpclient.Client, token, action string) (*httpclient.ResponseRecord, error) {
	spec := httpclient.RequestSpec{
		Method: "POST",
		Path:   servicemodel.EndpointPath,
	}.WithFormBody(servicemodel.EndpointRequest{Token: token, Action: action}.FormValues())
	return client.Send(ctx, spec)
}
