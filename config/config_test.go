package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDir = "testdata/environments"

func TestResolveNamedEnvironment(t *testing.T) {
	env, err := Resolve(testDir, "local", nil)
	require.NoError(t, err)

	assert.Equal(t, "local", env.Name)
	assert.Equal(t, "http://localhost:8080", env.BaseURL)
	assert.Equal(t, "http://localhost:8081", env.MockAdminURL)
	assert.Equal(t, "local-dev-key", env.APIKey)
	assert.Equal(t, "application/json", env.DefaultHeaders["Accept"])
	assert.True(t, env.HasFeature("mock-verification"))
	assert.False(t, env.HasFeature("something-else"))
}

func TestResolveAppliesDefaultsForAbsentKeys(t *testing.T) {
	env, err := Resolve(testDir, "local", nil)
	require.NoError(t, err)

	// local.yaml sets timeout but no retry settings
	assert.Equal(t, 5*time.Second, env.Timeout)
	assert.Equal(t, 3, env.RetryMaxAttempts)
	assert.Equal(t, 250*time.Millisecond, env.RetryBackoffBase)
	assert.Equal(t, 10*time.Second, env.RetryBudget)
}

func TestEnvironmentFileOverridesDefaults(t *testing.T) {
	env, err := Resolve(testDir, "ci", nil)
	require.NoError(t, err)

	assert.Equal(t, 5, env.RetryMaxAttempts)
	assert.Equal(t, 30*time.Second, env.RetryBudget)
	assert.Equal(t, 10*time.Second, env.Timeout)
}

func TestOverrideMapHasHighestPrecedence(t *testing.T) {
	env, err := Resolve(testDir, "local", map[string]string{"BASE_URL": "http://host:9090"})
	require.NoError(t, err)
	assert.Equal(t, "http://host:9090", env.BaseURL)

	env, err = Resolve(testDir, "local", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", env.BaseURL)
}

func TestProcessEnvVarOverridesFile(t *testing.T) {
	t.Setenv("APP_API_KEY", "from-process-env")

	env, err := Resolve(testDir, "local", nil)
	require.NoError(t, err)
	assert.Equal(t, "from-process-env", env.APIKey)

	// explicit override map still beats process env
	env, err = Resolve(testDir, "local", map[string]string{"api_key": "explicit"})
	require.NoError(t, err)
	assert.Equal(t, "explicit", env.APIKey)
}

func TestUnknownEnvironmentFailsFast(t *testing.T) {
	_, err := Resolve(testDir, "nonexistent", nil)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "nonexistent", cfgErr.Environment)
	assert.Contains(t, cfgErr.Error(), "no such environment definition")
}

func TestMissingBaseURLFailsAfterMerge(t *testing.T) {
	_, err := Resolve(testDir, "broken", nil)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "base_url")

	// supplying the missing field through the override layer fixes it
	env, err := Resolve(testDir, "broken", map[string]string{"base_url": "http://host:1234"})
	require.NoError(t, err)
	assert.Equal(t, "http://host:1234", env.BaseURL)
}

func TestEmptyNameIsAConfigurationError(t *testing.T) {
	_, err := Resolve(testDir, "", nil)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestTrailingSlashOnBaseURLIsNormalized(t *testing.T) {
	env, err := Resolve(testDir, "local", map[string]string{"base_url": "http://host:9090/"})
	require.NoError(t, err)
	assert.Equal(t, "http://host:9090", env.BaseURL)
}
