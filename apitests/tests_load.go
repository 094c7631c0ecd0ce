package apitests

import (
	"fmt"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apiharness/service-contract-tests/assertions"
	"github.com/apiharness/service-contract-tests/httpclient"
	"github.com/apiharness/service-contract-tests/servicemodel"
)

// Load scenario shape: each virtual user runs LOGIN, then a burst of ACTIONs
// (weighted heavier than the session calls), then LOGOUT, and starts over
// with a fresh token.
const (
	loadUsers           = 5
	loadCyclesPerUser   = 2
	loadActionsPerCycle = 3
	loadLatencyBound    = 2 * time.Second
)

type userCycleOutcome struct {
	err         error
	actionCount int
	worst       *httpclient.ResponseRecord
}

func DoLoadTests(t *T) {
	t.Run("concurrent user scenario stays healthy", func(t *T) {
		stubExternalAuth(t)
		stubExternalAction(t)

		outcomes := make(chan userCycleOutcome, loadUsers)
		for i := 0; i < loadUsers; i++ {
			go func() {
				outcomes <- runUserCycles(t)
			}()
		}

		totalActions := 0
		var worst *httpclient.ResponseRecord
		for i := 0; i < loadUsers; i++ {
			outcome := <-outcomes
			require.NoError(t, outcome.err)
			totalActions += outcome.actionCount
			if worst == nil || outcome.worst.Elapsed > worst.Elapsed {
				worst = outcome.worst
			}
		}

		require.Equal(t, loadUsers*loadCyclesPerUser*loadActionsPerCycle, totalActions)
		t.MustPass(worst, assertions.LatencyUnder(worst, loadLatencyBound))
	})
}

// runUserCycles drives one virtual user. It only reads from t (the shared
// client and scope context are concurrency-safe) and reports its outcome
// instead of failing the test, so the driving goroutine does the asserting.
func runUserCycles(t *T) userCycleOutcome {
	outcome := userCycleOutcome{}
	for cycle := 0; cycle < loadCyclesPerUser; cycle++ {
		token := servicemodel.GenerateHexToken(servicemodel.DefaultTokenLength)

		if err := userCall(t, token, servicemodel.ActionLogin, &outcome); err != nil {
			outcome.err = err
			return outcome
		}
		for i := 0; i < loadActionsPerCycle; i++ {
			if err := userCall(t, token, servicemodel.ActionAction, &outcome); err != nil {
				outcome.err = err
				return outcome
			}
			outcome.actionCount++
		}
		if err := userCall(t, token, servicemodel.ActionLogout, &outcome); err != nil {
			outcome.err = err
			return outcome
		}
	}
	return outcome
}

func userCall(t *T, token, action string, outcome *userCycleOutcome) error {
	spec := httpclient.RequestSpec{
		Method: "POST",
		Path:   servicemodel.EndpointPath,
	}.WithFormBody(servicemodel.EndpointRequest{Token: token, Action: action}.FormValues())

	record, err := t.Send(spec)
	if err != nil {
		return fmt.Errorf("%s for token %s: %w", action, token, err)
	}
	if record.Status != 200 {
		return fmt.Errorf("%s for token %s returned status %d", action, token, record.Status)
	}
	value, err := record.JSON()
	if err != nil {
		return fmt.Errorf("%s for token %s returned undecodable body: %w", action, token, err)
	}
	if result := value.GetByKey("result").StringValue(); result != servicemodel.ResultOK {
		return fmt.Errorf("%s for token %s returned result %q", action, token, result)
	}
	if outcome.worst == nil || record.Elapsed > outcome.worst.Elapsed {
		outcome.worst = record
	}
	return nil
}
