package mirror

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/dtmirror/internal/config"
	"github.com/roach88/dtmirror/internal/datatracker"
	"github.com/roach88/dtmirror/internal/ddl"
	"github.com/roach88/dtmirror/internal/importer"
	"github.com/roach88/dtmirror/internal/relations"
	"github.com/roach88/dtmirror/internal/schema"
	"github.com/roach88/dtmirror/internal/store"
)

// Phase names a step of a mirror run.
type Phase string

const (
	PhaseCatalog     Phase = "catalog"
	PhaseConfig      Phase = "config"
	PhaseIntrospect  Phase = "introspect"
	PhaseRelations   Phase = "relations"
	PhaseCompile     Phase = "compile"
	PhaseMaterialize Phase = "materialize"
	PhaseImport      Phase = "import"
	PhaseVacuum      Phase = "vacuum"
)

// PhaseError wraps the error that stopped a run with the phase it stopped in.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// FailedPhase returns the phase a run stopped in, or "" if err carries none.
func FailedPhase(err error) Phase {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Phase
	}
	return ""
}

// API is the part of the Datatracker a run reads from.
type API interface {
	Endpoints(ctx context.Context) ([]string, error)
	Schema(ctx context.Context, endpoint string) (*datatracker.SchemaDocument, error)
	FetchAll(ctx context.Context, uri string) iter.Seq2[datatracker.Record, error]
}

// Database is the destination of a run.
type Database interface {
	Materialize(ctx context.Context, ddl []string) error
	Write(ctx context.Context, batch []store.Statement) (int64, error)
	Vacuum(ctx context.Context) error
}

// Options configures a Mirror.
type Options struct {
	Table       *config.MirrorTable
	Prefix      string
	PageLimit   int
	SampleLimit int
	Logger      *slog.Logger
	RunIDs      RunIDGenerator
}

// Mirror runs the pipeline from the live catalog to a populated database.
type Mirror struct {
	api     API
	opts    Options
	printer *message.Printer
}

// New creates a Mirror reading from api.
func New(api API, opts Options) *Mirror {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RunIDs == nil {
		opts.RunIDs = UUIDv7Generator{}
	}
	return &Mirror{api: api, opts: opts, printer: message.NewPrinter(language.English)}
}

// Plan is everything a run learns before it touches the database.
type Plan struct {
	Live      []string // endpoints in the live catalog, sorted
	Registry  *schema.Registry
	Relations *relations.Report
	DDL       *ddl.Plan
}

// Result summarises a completed run.
type Result struct {
	RunID  string
	Plan   *Plan
	Import *importer.Report
}

// Status is the mirror table's verdict on one live endpoint.
type Status struct {
	Endpoint   string `json:"endpoint"`
	Configured bool   `json:"configured"`
	Mirror     bool   `json:"mirror"`
	URICol     string `json:"uri_col,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Survey lists the live endpoints with their mirror table entries. When some
// endpoints have no entry the statuses are still returned, together with the
// ConfigurationError a run would fail with.
func (m *Mirror) Survey(ctx context.Context) ([]Status, error) {
	live, err := m.api.Endpoints(ctx)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseCatalog, Err: err}
	}

	out := make([]Status, 0, len(live))
	for _, endpoint := range live {
		entry, ok := m.opts.Table.Lookup(endpoint)
		out = append(out, Status{
			Endpoint:   endpoint,
			Configured: ok,
			Mirror:     entry.Mirror,
			URICol:     entry.URICol,
			Reason:     entry.Reason,
		})
	}
	if err := m.opts.Table.Check(live); err != nil {
		return out, &PhaseError{Phase: PhaseConfig, Err: err}
	}
	return out, nil
}

// Plan discovers, introspects and compiles without writing anything.
func (m *Mirror) Plan(ctx context.Context) (*Plan, error) {
	logger := m.opts.Logger.With("run_id", m.opts.RunIDs.Generate())
	return m.plan(ctx, logger)
}

func (m *Mirror) plan(ctx context.Context, logger *slog.Logger) (*Plan, error) {
	live, err := m.api.Endpoints(ctx)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseCatalog, Err: err}
	}
	logger.Info(m.printer.Sprintf("discovered %d endpoints", len(live)))

	if err := m.opts.Table.Check(live); err != nil {
		return nil, &PhaseError{Phase: PhaseConfig, Err: err}
	}

	in := &schema.Introspector{Source: m.api, Prefix: m.opts.Prefix, Logger: logger}
	reg, err := in.Build(ctx, live, m.opts.Table)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseIntrospect, Err: err}
	}

	reg, report, err := relations.Discover(ctx, m.api, reg, relations.Options{
		PageLimit:   m.opts.PageLimit,
		SampleLimit: m.opts.SampleLimit,
		Logger:      logger,
	})
	if err != nil {
		return nil, &PhaseError{Phase: PhaseRelations, Err: err}
	}
	logger.Info(m.printer.Sprintf("relations: %d resolved, %d external, %d unused",
		report.Count(relations.OutcomeResolved),
		report.Count(relations.OutcomeExternal),
		report.Count(relations.OutcomeUnused)))

	plan, err := ddl.Compile(reg)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseCompile, Err: err}
	}

	return &Plan{Live: live, Registry: reg, Relations: report, DDL: plan}, nil
}

// Run mirrors the API into db. The mirror table is checked against the live
// catalog before any table is created, so a configuration error leaves db
// untouched. A failure during import leaves the endpoints already imported
// committed.
func (m *Mirror) Run(ctx context.Context, db Database) (*Result, error) {
	id := m.opts.RunIDs.Generate()
	logger := m.opts.Logger.With("run_id", id)
	logger.Info("mirror started")

	plan, err := m.plan(ctx, logger)
	if err != nil {
		return nil, err
	}
	result := &Result{RunID: id, Plan: plan}

	if err := db.Materialize(ctx, plan.DDL.Statements()); err != nil {
		return result, &PhaseError{Phase: PhaseMaterialize, Err: err}
	}
	for _, t := range plan.DDL.Tables {
		logger.Debug("table created", "table", t.Name, "junction", t.Junction)
	}
	logger.Info(m.printer.Sprintf("created %d tables", len(plan.DDL.Tables)))

	report, err := importer.Import(ctx, m.api, plan.Registry, plan.DDL, db, importer.Options{
		PageLimit: m.opts.PageLimit,
		Logger:    logger,
	})
	result.Import = report
	if err != nil {
		return result, &PhaseError{Phase: PhaseImport, Err: err}
	}

	if err := db.Vacuum(ctx); err != nil {
		return result, &PhaseError{Phase: PhaseVacuum, Err: err}
	}

	if c, ok := m.api.(interface{ Stats() datatracker.Stats }); ok {
		st := c.Stats()
		logger.Debug("fetch totals", "requests", st.Requests, "cache_hits", st.CacheHits)
	}
	logger.Info(m.printer.Sprintf("mirrored %d records and %d junction rows from %d endpoints",
		report.Records(), report.JunctionRows(), plan.Registry.Len()))
	return result, nil
}

// Summary renders the counts of a completed run for people.
func (m *Mirror) Summary(r *Result) string {
	return m.printer.Sprintf("%d endpoints mirrored into %d tables: %d records, %d junction rows",
		r.Plan.Registry.Len(), len(r.Plan.DDL.Tables), r.Import.Records(), r.Import.JunctionRows())
}
