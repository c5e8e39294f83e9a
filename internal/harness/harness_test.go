package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario %s failed:\n%v", s.Name, result.Errors)
		})
	}
}

func TestRun_Counts(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "to_many_junction.yaml"))
	require.NoError(t, err)

	result, err := Run(t, s)
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)
	assert.Equal(t, 4, result.Records)
	assert.Equal(t, 2, result.JunctionRows)
	assert.Positive(t, result.Requests)
	assert.NoError(t, result.RunErr)
}

func TestRun_UnexpectedSuccess(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario + "expect_error: transport\n"))
	require.NoError(t, err)

	result, err := Run(t, s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "expected a transport error")
}

func TestRun_WrongErrorClass(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "server_failure.yaml"))
	require.NoError(t, err)
	s.ExpectError = ErrorConfiguration

	result, err := Run(t, s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], `got "transport"`)
}

func TestRun_UnexpectedFailure(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)
	s.Failures = map[string]int{"/api/v1/": 500}

	result, err := Run(t, s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "run failed")
	assert.Error(t, result.RunErr)
}

func TestRun_BadMirrorTable(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)
	s.MirrorTable = "endpoints: {"

	_, err = Run(t, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mirror table")
}
