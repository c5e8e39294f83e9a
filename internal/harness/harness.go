package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/roach88/dtmirror/internal/apipath"
	"github.com/roach88/dtmirror/internal/config"
	"github.com/roach88/dtmirror/internal/datatracker"
	"github.com/roach88/dtmirror/internal/mirror"
	"github.com/roach88/dtmirror/internal/schema"
	"github.com/roach88/dtmirror/internal/store"
	"github.com/roach88/dtmirror/internal/testutil"
)

const (
	defaultPrefix    = "ietf_dt"
	defaultPageLimit = 500
)

// Run executes a scenario and returns the result.
//
// Each scenario gets its own fake Datatracker and a fresh database file
// under t.TempDir(). An error is returned only when the scenario itself
// cannot be set up; run failures and failed assertions land in the Result.
func Run(t *testing.T, s *Scenario) (*Result, error) {
	t.Helper()
	ctx := context.Background()

	table, err := config.ParseMirrorTable(s.Name+".cue", []byte(s.MirrorTable))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: mirror table: %w", s.Name, err)
	}

	api := serve(t, s)
	client, err := datatracker.New(api.URL())
	if err != nil {
		return nil, fmt.Errorf("scenario %s: client: %w", s.Name, err)
	}

	st, err := store.Open(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: open store: %w", s.Name, err)
	}
	t.Cleanup(func() { st.Close() })

	opts := mirror.Options{
		Table:     table,
		Prefix:    s.Prefix,
		PageLimit: s.PageLimit,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		RunIDs:    testutil.NewFixedRunID(s.RunID),
	}
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.PageLimit == 0 {
		opts.PageLimit = defaultPageLimit
	}

	result := NewResult()
	run, runErr := mirror.New(client, opts).Run(ctx, st)
	result.RunErr = runErr
	result.Requests = api.TotalRequests()
	if run != nil && run.Import != nil {
		result.Records = run.Import.Records()
		result.JunctionRows = run.Import.JunctionRows()
	}
	checkOutcome(result, s.ExpectError, runErr)

	for i, a := range s.Assertions {
		if err := check(ctx, st, a); err != nil {
			result.AddError(fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return result, nil
}

// serve starts the fake Datatracker a scenario describes.
func serve(t *testing.T, s *Scenario) *testutil.FakeAPI {
	api := testutil.NewFakeAPI(t)
	for endpoint, e := range s.Endpoints {
		api.AddEndpoint(endpoint, e.Fields, e.Ordering...)
		api.AddObjects(endpoint, e.Objects...)
	}
	for path, status := range s.Failures {
		api.Fail(path, status)
	}
	if s.MaxPageSize > 0 {
		api.MaxPageSize(s.MaxPageSize)
	}
	return api
}

func checkOutcome(r *Result, expect string, err error) {
	switch {
	case expect == "" && err != nil:
		r.AddError(fmt.Sprintf("run failed: %v", err))
	case expect != "" && err == nil:
		r.AddError(fmt.Sprintf("run succeeded, expected a %s error", expect))
	case expect != "" && errorClass(err) != expect:
		r.AddError(fmt.Sprintf("expected a %s error, got %q (%v)", expect, errorClass(err), err))
	}
}

// errorClass names the class of a run error.
func errorClass(err error) string {
	switch {
	case config.IsConfigurationError(err):
		return ErrorConfiguration
	case datatracker.IsTransportError(err):
		return ErrorTransport
	case schema.IsInferenceError(err):
		return ErrorInference
	case apipath.IsParseError(err):
		return ErrorResourcePath
	default:
		return ""
	}
}
