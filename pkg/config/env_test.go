package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("WAREFLOW_TEST_VAR", "value")
	assert.Equal(t, "value", GetEnv("WAREFLOW_TEST_VAR", "default"))
	assert.Equal(t, "default", GetEnv("WAREFLOW_TEST_MISSING", "default"))
}

func TestGetEnvironment(t *testing.T) {
	t.Setenv("WAREFLOW_SERVER_ENVIRONMENT", "")
	assert.Equal(t, EnvDevelopment, GetEnvironment())

	t.Setenv("WAREFLOW_SERVER_ENVIRONMENT", "Production")
	assert.Equal(t, EnvProduction, GetEnvironment())
	assert.True(t, IsProduction())
	assert.True(t, IsProductionLike())

	t.Setenv("WAREFLOW_SERVER_ENVIRONMENT", EnvStaging)
	assert.False(t, IsProduction())
	assert.True(t, IsProductionLike())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	// no files present
	require.NoError(t, loadDotEnv(EnvTesting))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.testing"), []byte("WAREFLOW_DOTENV_PROBE=from-file\n"), 0o600))
	t.Setenv("WAREFLOW_DOTENV_PROBE", "")
	require.NoError(t, os.Unsetenv("WAREFLOW_DOTENV_PROBE"))

	require.NoError(t, loadDotEnv(EnvTesting))
	assert.Equal(t, "from-file", os.Getenv("WAREFLOW_DOTENV_PROBE"))
}
