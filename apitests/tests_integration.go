package apitests

import (
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiharness/service-contract-tests/mockctl"
	"github.com/apiharness/service-contract-tests/servicemodel"
)

func DoIntegrationTests(t *T) {
	mocks := t.Mocks()
	if !mocks.Available(t.Context()) {
		t.context.SkipWithReason("mock admin API is not reachable")
	}

	t.Run("re-registering a mapping key replaces the stub", func(t *T) {
		mocks := t.Mocks()
		release := mocks.AcquireKey(MappingAuthOK)
		defer release()

		broken := authOKMapping()
		broken.Response = mockctl.ResponseTemplate{Status: 500}
		require.NoError(t, mocks.Register(t.Context(), broken))
		require.NoError(t, mocks.Register(t.Context(), authOKMapping()))

		token := freshToken(t)
		record := t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionLogin})
		requireSuccessResult(t, record)
	})

	t.Run("call counts reset between tests", func(t *T) {
		t.RequireFeature("mock-verification")
		mocks := t.Mocks()
		t.Fixture(FixtureAuthMock)

		count, err := mocks.CallCountFor(t.Context(), MappingAuthOK)
		require.NoError(t, err)
		assert.Zero(t, count, "journal should be empty at the start of a test")

		token := freshToken(t)
		record := t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionLogin})
		requireSuccessResult(t, record)

		require.NoError(t, mocks.VerifyCallCount(t.Context(), MappingAuthOK, 1))
	})

	t.Run("errors from the external action service surface as application errors", func(t *T) {
		mocks := t.Mocks()
		t.Fixture(FixtureAuthMock)
		failing := actionOKMapping()
		failing.Response = mockctl.ResponseTemplate{Status: 500}
		require.NoError(t, mocks.Register(t.Context(), failing))

		token := t.Fixture(FixtureLoginSession).(string)
		record := t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionAction})
		requireErrorResult(t, record)
	})

	t.Run("slow external responses do not break the session", func(t *T) {
		mocks := t.Mocks()
		t.Fixture(FixtureAuthMock)
		slow := actionOKMapping()
		slow.Response.Delay = 200 * time.Millisecond
		require.NoError(t, mocks.Register(t.Context(), slow))

		token := t.Fixture(FixtureLoginSession).(string)
		record := t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionAction})
		requireSuccessResult(t, record)

		record = t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionAction})
		requireSuccessResult(t, record)
	})

	t.Run("session state persists across external service calls", func(t *T) {
		t.Fixture(FixtureAuthMock)
		t.Fixture(FixtureActionMock)
		token := t.Fixture(FixtureLoginSession).(string)

		for i := 0; i < 3; i++ {
			record := t.CallEndpoint(servicemodel.EndpointRequest{Token: token, Action: servicemodel.ActionAction})
			requireSuccessResult(t, record)
		}
	})
}
