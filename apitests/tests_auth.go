package apitests

import (
	"net/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiharness/service-contract-tests/assertions"
	"github.com/apiharness/service-contract-tests/httpclient"
	"github.com/apiharness/service-contract-tests/mockctl"
	"github.com/apiharness/service-contract-tests/servicemodel"
)

func DoAuthTests(t *T) {
	t.Run("login succeeds with a fresh token", func(t *T) {
		stubExternalAuth(t)
		token := freshToken(t)

		record := t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionLogin})
		requireSuccessResult(t, record)
	})

	t.Run("login verifies against the external auth service exactly once", func(t *T) {
		t.RequireFeature("mock-verification")
		mocks := t.Mocks()
		t.Fixture(FixtureAuthMock)
		token := freshToken(t)

		record := t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionLogin})
		requireSuccessResult(t, record)

		require.NoError(t, mocks.VerifyCallCount(t.Context(), MappingAuthOK, 1))
	})

	t.Run("login fails while the external auth service is down", func(t *T) {
		mocks := t.Mocks()
		mapping := authOKMapping()
		mapping.Response = mockctl.ResponseTemplate{Status: 503}
		require.NoError(t, mocks.Register(t.Context(), mapping))
		token := freshToken(t)

		record := t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionLogin})
		requireErrorResult(t, record)
	})

	t.Run("token shorter than 32 characters is rejected", func(t *T) {
		stubExternalAuth(t)
		token := servicemodel.GenerateHexToken(servicemodel.DefaultTokenLength - 1)

		record := t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionLogin})
		requireErrorResult(t, record)
	})

	t.Run("token with lowercase characters is rejected", func(t *T) {
		stubExternalAuth(t)

		record := t.CallEndpoint(servicemodel.EndpointRequest{
			Token:  "0123456789abcdef0123456789abcdef",
			Action: servicemodel.ActionLogin,
		})
		requireErrorResult(t, record)
	})

	t.Run("unknown action is rejected", func(t *T) {
		stubExternalAuth(t)
		token := freshToken(t)

		record := t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: "INVALID"})
		requireErrorResult(t, record)
	})

	t.Run("request without an API key is rejected", func(t *T) {
		token := freshToken(t)
		spec := httpclient.RequestSpec{
			Method:  "POST",
			Path:    servicemodel.EndpointPath,
			Headers: http.Header{"X-Api-Key": {""}},
		}.WithFormBody(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionLogin}.FormValues())

		record, err := t.Send(spec)
		require.NoError(t, err)
		assert.Contains(t, []int{401, 403}, record.Status, "expected an authorization failure")
	})

	t.Run("request with a wrong API key is rejected", func(t *T) {
		token := freshToken(t)
		spec := httpclient.RequestSpec{
			Method:  "POST",
			Path:    servicemodel.EndpointPath,
			Headers: http.Header{"X-Api-Key": {"wrong_key"}},
		}.WithFormBody(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionLogin}.FormValues())

		record, err := t.Send(spec)
		require.NoError(t, err)
		assert.Contains(t, []int{401, 403}, record.Status, "expected an authorization failure")
	})

	t.Run("logout ends an active session", func(t *T) {
		stubExternalAuth(t)
		token := t.Fixture(FixtureLoginSession).(string)

		record := t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionLogout})
		requireSuccessResult(t, record)
	})

	t.Run("logout for an unknown token is an error", func(t *T) {
		token := freshToken(t)

		record := t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionLogout})
		requireErrorResult(t, record)
	})
}

func freshToken(t *T) string {
	return t.Fixture(FixtureAuthToken).(string)
}

// stubExternalAuth registers the standard auth stub when the environment has
// a mock service; against an environment with a live collaborator it is a
// no-op.
func stubExternalAuth(t *T) {
	if t.env.mocks == nil {
		return
	}
	t.Fixture(FixtureAuthMock)
}

func stubExternalAction(t *T) {
	if t.env.mocks == nil {
		return
	}
	t.Fixture(FixtureActionMock)
}

func requireSuccessResult(t *T, record *httpclient.ResponseRecord) {
	t.MustPass(record, assertions.Status(record, 200))
	t.RequireConformsTo(record, servicemodel.SchemaSuccessResponse)
	value, err := record.JSON()
	require.NoError(t, err)
	assert.Equal(t, servicemodel.ResultOK, value.GetByKey("result").StringValue())
}

func requireErrorResult(t *T, record *httpclient.ResponseRecord) {
	t.MustPass(record, assertions.Status(record, 200))
	t.RequireConformsTo(record, servicemodel.SchemaErrorResponse)
	value, err := record.JSON()
	require.NoError(t, err)
	assert.Equal(t, servicemodel.ResultError, value.GetByKey("result").StringValue())
}
