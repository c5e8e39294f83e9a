// Package relations learns where relation fields point by reading live records.
//
// A schema document only says a field is related. The first record that
// carries a value for the field gives a resource path, and the endpoint of
// that path is the target. Fields that stay empty across the scanned records
// are marked Unused; fields pointing at endpoints the mirror skips become
// External.
package relations

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/roach88/dtmirror/internal/apipath"
	"github.com/roach88/dtmirror/internal/datatracker"
	"github.com/roach88/dtmirror/internal/schema"
)

// Source streams the records of a collection.
type Source interface {
	FetchAll(ctx context.Context, uri string) iter.Seq2[datatracker.Record, error]
}

// Options controls how much of each collection is scanned.
type Options struct {
	// PageLimit is the page size requested from the API.
	PageLimit int
	// SampleLimit caps the records scanned per endpoint. Zero scans until
	// every relation is resolved or the collection ends.
	SampleLimit int
	Logger      *slog.Logger
}

// Outcome is what discovery concluded about one relation column.
type Outcome string

const (
	OutcomeResolved Outcome = "resolved"
	OutcomeExternal Outcome = "external"
	OutcomeUnused   Outcome = "unused"
)

// Finding records the outcome for one relation column.
type Finding struct {
	Endpoint string
	Column   string
	Outcome  Outcome
	Target   string // target endpoint, empty when unused
}

// Report summarises a discovery pass.
type Report struct {
	Findings []Finding
	Scanned  map[string]int // records read per endpoint
}

// Count returns the number of findings with the given outcome.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, f := range r.Findings {
		if f.Outcome == o {
			n++
		}
	}
	return n
}

// Discover resolves every relation column in reg and returns the updated
// registry. reg itself is not modified. A fetch failure aborts discovery.
func Discover(ctx context.Context, src Source, reg *schema.Registry, opts Options) (*schema.Registry, *Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	report := &Report{Scanned: make(map[string]int)}
	out := reg
	for _, s := range reg.Schemas() {
		pending := s.Pending()
		if len(pending) == 0 {
			continue
		}

		found, scanned, err := scan(ctx, src, s, pending, opts)
		if err != nil {
			return nil, nil, err
		}
		report.Scanned[s.Endpoint] = scanned

		for _, name := range pending {
			col, _ := s.Column(name)
			_, many := col.Type.(schema.ToMany)

			target, ok := found[name]
			switch {
			case !ok:
				declared := "to_one"
				if many {
					declared = "to_many"
				}
				s.SetType(name, schema.Unused{Declared: declared})
				report.Findings = append(report.Findings, Finding{Endpoint: s.Endpoint, Column: name, Outcome: OutcomeUnused})
				logger.Warn("relation unused", "endpoint", s.Endpoint, "column", name, "scanned", scanned)

			case reg.Has(target.Endpoint):
				ts, _ := reg.Lookup(target.Endpoint)
				target.Table = ts.Table
				if many {
					s.SetType(name, schema.ToMany{Target: target})
				} else {
					s.SetType(name, schema.ToOne{Target: target})
				}
				report.Findings = append(report.Findings, Finding{Endpoint: s.Endpoint, Column: name, Outcome: OutcomeResolved, Target: target.Endpoint})
				logger.Info("relation resolved", "endpoint", s.Endpoint, "column", name, "target", target.Endpoint)

			default:
				s.SetType(name, schema.External{Many: many, Target: target})
				report.Findings = append(report.Findings, Finding{Endpoint: s.Endpoint, Column: name, Outcome: OutcomeExternal, Target: target.Endpoint})
				logger.Info("relation to unmirrored endpoint", "endpoint", s.Endpoint, "column", name, "target", target.Endpoint)
			}
		}
		out = out.With(s)
	}
	return out, report, nil
}

// scan reads records until every pending column has a sample, the sample
// limit is reached, or the collection ends.
func scan(ctx context.Context, src Source, s *schema.EndpointSchema, pending []string, opts Options) (map[string]schema.Target, int, error) {
	found := make(map[string]schema.Target, len(pending))
	scanned := 0

	for rec, err := range src.FetchAll(ctx, s.ListURI(opts.PageLimit)) {
		if err != nil {
			return nil, scanned, err
		}
		scanned++

		for _, name := range pending {
			if _, ok := found[name]; ok {
				continue
			}
			ref, ok := sample(rec[name])
			if !ok {
				continue
			}
			p, err := apipath.Parse(ref)
			if err != nil {
				return nil, scanned, fmt.Errorf("%s field %s: %w", s.Endpoint, name, err)
			}
			found[name] = schema.Target{Endpoint: p.Endpoint()}
		}

		if len(found) == len(pending) {
			break
		}
		if opts.SampleLimit > 0 && scanned >= opts.SampleLimit {
			break
		}
	}
	return found, scanned, nil
}

// sample extracts a resource path from a relation value: the value itself
// for a to-one field, the first element for a to-many field.
func sample(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, x != ""
	case []any:
		if len(x) == 0 {
			return "", false
		}
		return sample(x[0])
	}
	return "", false
}
