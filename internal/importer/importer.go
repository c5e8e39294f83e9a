// Package importer copies records from the API into the materialized mirror.
//
// Each endpoint is streamed once more through the same list URI that relation
// discovery used, so pages already fetched are replayed from the client cache.
// All rows of one endpoint are written in a single transaction.
package importer

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/roach88/dtmirror/internal/datatracker"
	"github.com/roach88/dtmirror/internal/ddl"
	"github.com/roach88/dtmirror/internal/schema"
	"github.com/roach88/dtmirror/internal/store"
)

// maxPairs caps the rows of one multi-row junction insert. Two parameters
// per row keeps a statement well under SQLite's variable limit.
const maxPairs = 400

// Source streams the records of a collection.
type Source interface {
	FetchAll(ctx context.Context, uri string) iter.Seq2[datatracker.Record, error]
}

// Sink writes a batch of statements atomically.
type Sink interface {
	Write(ctx context.Context, batch []store.Statement) (int64, error)
}

// Options controls the import.
type Options struct {
	PageLimit int
	Logger    *slog.Logger
}

// TableReport is the outcome for one endpoint.
type TableReport struct {
	Endpoint     string
	Table        string
	Records      int
	JunctionRows int
}

// Report summarises an import.
type Report struct {
	Tables []TableReport
}

// Records returns the number of records imported across all tables.
func (r *Report) Records() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Records
	}
	return n
}

// JunctionRows returns the number of junction rows written.
func (r *Report) JunctionRows() int {
	n := 0
	for _, t := range r.Tables {
		n += t.JunctionRows
	}
	return n
}

// Import writes the records of every endpoint in reg, in registry order.
// It stops at the first failing endpoint and returns the report so far;
// endpoints written before it stay committed.
func Import(ctx context.Context, src Source, reg *schema.Registry, plan *ddl.Plan, sink Sink, opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	report := &Report{}
	for _, s := range reg.Schemas() {
		im, ok := plan.Import(s.Endpoint)
		if !ok {
			return report, fmt.Errorf("no import plan for %s", s.Endpoint)
		}

		tr, err := importEndpoint(ctx, src, s, im, sink, opts.PageLimit)
		if err != nil {
			return report, fmt.Errorf("import %s: %w", s.Endpoint, err)
		}
		report.Tables = append(report.Tables, tr)
		logger.Info("table imported",
			"endpoint", s.Endpoint,
			"table", tr.Table,
			"records", tr.Records,
			"junction_rows", tr.JunctionRows)
	}
	return report, nil
}

func importEndpoint(ctx context.Context, src Source, s *schema.EndpointSchema, im ddl.Import, sink Sink, pageLimit int) (TableReport, error) {
	tr := TableReport{Endpoint: s.Endpoint, Table: im.Table}

	uriIndex := -1
	for i, b := range im.Columns {
		if b.Column == im.URICol {
			uriIndex = i
		}
	}
	if uriIndex < 0 && len(im.Junctions) > 0 {
		return tr, fmt.Errorf("identity column %s is not stored", im.URICol)
	}

	insert := im.InsertSQL()
	var batch []store.Statement
	for rec, err := range src.FetchAll(ctx, s.ListURI(pageLimit)) {
		if err != nil {
			return tr, err
		}

		args, err := Row(im, rec)
		if err != nil {
			return tr, err
		}
		batch = append(batch, store.Statement{SQL: insert, Args: args})
		tr.Records++

		if len(im.Junctions) == 0 {
			continue
		}
		source := args[uriIndex]
		if source == nil {
			return tr, fmt.Errorf("record without %s", im.URICol)
		}
		for _, j := range im.Junctions {
			stmts, n, err := junctionRows(j, source, rec[j.Field])
			if err != nil {
				return tr, fmt.Errorf("record %v field %s: %w", source, j.Field, err)
			}
			batch = append(batch, stmts...)
			tr.JunctionRows += n
		}
	}

	if len(batch) == 0 {
		return tr, nil
	}
	if _, err := sink.Write(ctx, batch); err != nil {
		return tr, err
	}
	return tr, nil
}

// Row converts a record to the arguments of its base table insert.
func Row(im ddl.Import, rec datatracker.Record) ([]any, error) {
	args := make([]any, len(im.Columns))
	for i, b := range im.Columns {
		v, err := Convert(b, rec[b.Column])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", b.Column, err)
		}
		args[i] = v
	}
	return args, nil
}

// junctionRows builds the inserts linking source to every element of a
// to-many value, chunked at maxPairs rows per statement.
func junctionRows(j ddl.Junction, source any, v any) ([]store.Statement, int, error) {
	if v == nil {
		return nil, 0, nil
	}
	elems, ok := v.([]any)
	if !ok {
		return nil, 0, fmt.Errorf("to-many value %v is not a list", v)
	}

	pairs := make([]any, 0, 2*len(elems))
	for _, e := range elems {
		key, err := Key(e, j.TargetType)
		if err != nil {
			return nil, 0, err
		}
		if key == nil {
			continue
		}
		pairs = append(pairs, source, key)
	}

	var stmts []store.Statement
	for start := 0; start < len(pairs); start += 2 * maxPairs {
		end := min(start+2*maxPairs, len(pairs))
		stmts = append(stmts, store.Statement{
			SQL:  j.InsertSQL((end - start) / 2),
			Args: pairs[start:end],
		})
	}
	return stmts, len(pairs) / 2, nil
}
