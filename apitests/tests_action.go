package apitests

import (
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiharness/service-contract-tests/assertions"
	"github.com/apiharness/service-contract-tests/httpclient"
	"github.com/apiharness/service-contract-tests/servicemodel"
)

func DoActionTests(t *T) {
	t.Run("action succeeds within a session", func(t *T) {
		stubExternalAuth(t)
		stubExternalAction(t)
		token := t.Fixture(FixtureLoginSession).(string)

		record := t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionAction})
		requireSuccessResult(t, record)
	})

	t.Run("action without login is an error", func(t *T) {
		stubExternalAction(t)
		token := freshToken(t)

		record := t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionAction})
		requireErrorResult(t, record)

		value, err := record.JSON()
		require.NoError(t, err)
		_, hasMessage := value.TryGetByKey("message")
		assert.True(t, hasMessage, "error response should describe the failure in a message field")
	})

	t.Run("action after logout is rejected", func(t *T) {
		stubExternalAuth(t)
		stubExternalAction(t)
		token := t.Fixture(FixtureLoginSession).(string)

		record := t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionLogout})
		requireSuccessResult(t, record)

		record = t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionAction})
		requireErrorResult(t, record)
	})

	t.Run("action reaches the external service exactly once", func(t *T) {
		t.RequireFeature("mock-verification")
		mocks := t.Mocks()
		t.Fixture(FixtureActionMock)
		stubExternalAuth(t)
		token := t.Fixture(FixtureLoginSession).(string)

		record := t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionAction})
		requireSuccessResult(t, record)

		require.NoError(t, mocks.VerifyCallCount(t.Context(), MappingActionOK, 1))
	})

	t.Run("session survives repeated actions", func(t *T) {
		stubExternalAuth(t)
		stubExternalAction(t)
		token := t.Fixture(FixtureLoginSession).(string)

		for i := 0; i < 4; i++ {
			record := t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionAction})
			requireSuccessResult(t, record)
		}
	})

	t.Run("action responds within the latency bound", func(t *T) {
		stubExternalAuth(t)
		stubExternalAction(t)
		token := t.Fixture(FixtureLoginSession).(string)

		record := t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionAction})
		requireSuccessResult(t, record)
		t.MustPass(record, assertions.LatencyUnder(record, 2*time.Second))
	})

	t.Run("concurrent sessions act independently", func(t *T) {
		stubExternalAuth(t)
		stubExternalAction(t)

		tokens := make([]string, 3)
		for i := range tokens {
			tokens[i] = servicemodel.GenerateHexToken(servicemodel.DefaultTokenLength)
			record := t.CallEndpoint(servicemodel.EndpointRequest{Token: tokens[i], Action: servicemodel.ActionLogin})
			requireSuccessResult(t, record)
		}

		channels := make([]<-chan httpclient.AsyncResult, len(tokens))
		for i, token := range tokens {
			spec := httpclient.RequestSpec{
				Method: "POST",
				Path:   servicemodel.EndpointPath,
			}.WithFormBody(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionAction}.FormValues())
			channels[i] = t.SendAsync(spec)
		}
		for _, ch := range channels {
			result := <-ch
			require.NoError(t, result.Err)
			requireSuccessResult(t, result.Record)
		}
	})
}
