package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dtmirror/internal/testutil"
)

const testTable = `
endpoints: {
	"/api/v1/doc/document/":            {mirror: true, uri_col: "name"}
	"/api/v1/doc/state/":               {mirror: true, uri_col: "id"}
	"/api/v1/group/group/":             {mirror: false, reason: "Not needed here"}
	"/api/v1/name/formallanguagename/": {mirror: true, uri_col: "id"}
}
`

// newAPI starts a fake Datatracker and points the environment at it. The
// returned path is a mirror table covering every endpoint it serves.
func newAPI(t *testing.T) (*testutil.FakeAPI, string) {
	t.Helper()
	api := testutil.NewFakeAPI(t)
	api.AddEndpoint("/api/v1/doc/state/", map[string]testutil.Field{
		"id":   testutil.Key("integer"),
		"slug": testutil.Scalar("string"),
	}, "id")
	api.AddEndpoint("/api/v1/doc/document/", map[string]testutil.Field{
		"name":             testutil.Unique("string"),
		"state":            testutil.ToOne(),
		"formal_languages": testutil.ToMany(),
		"group":            testutil.ToOne(),
		"time":             testutil.Scalar("datetime"),
	}, "name")
	api.AddEndpoint("/api/v1/name/formallanguagename/", map[string]testutil.Field{
		"id":   testutil.Key("integer"),
		"name": testutil.Scalar("string"),
	})
	api.AddEndpoint("/api/v1/group/group/", map[string]testutil.Field{
		"id": testutil.Key("integer"),
	})

	api.AddObjects("/api/v1/doc/state/",
		map[string]any{"id": 5, "slug": "active"},
		map[string]any{"id": 6, "slug": "expired"},
	)
	api.AddObjects("/api/v1/name/formallanguagename/", map[string]any{"id": 12, "name": "ABNF"})
	api.AddObjects("/api/v1/doc/document/", map[string]any{
		"name":             "rfc9000",
		"state":            "/api/v1/doc/state/5/",
		"formal_languages": []any{"/api/v1/name/formallanguagename/12/"},
		"group":            "/api/v1/group/group/2161/",
		"time":             "2020-01-01T00:00:00+02:00",
	})

	t.Setenv("IETFDATA_DT_URL", api.URL())
	t.Setenv("IETFDATA_DT_AUTH", "")
	t.Setenv("IETFDATA_PAGE_LIMIT", "500")
	t.Setenv("IETFDATA_SAMPLE_LIMIT", "0")
	t.Setenv("IETFDATA_TABLE_PREFIX", "ietf_dt")
	t.Setenv("IETFDATA_MIRROR_CONFIG", "")

	tablePath := filepath.Join(t.TempDir(), "mirror.cue")
	require.NoError(t, os.WriteFile(tablePath, []byte(testTable), 0644))
	return api, tablePath
}

// execute runs the root command and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "dtmirror <database.db>", cmd.Use)
	assert.Contains(t, cmd.Long, "IETFDATA_DT_URL")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"endpoints", "schema"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"env-file", "mirror-config", "page-limit", "sample-limit"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}

	overwrite := cmd.Flags().Lookup("overwrite")
	require.NotNil(t, overwrite)
	assert.Equal(t, "false", overwrite.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "out.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestUnknownFlag(t *testing.T) {
	_, err := execute(t, "--no-such-flag", "out.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMissingDatabaseArgument(t *testing.T) {
	_, err := execute(t)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
