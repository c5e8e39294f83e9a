package importer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"strings"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dtmirror/internal/datatracker"
	"github.com/roach88/dtmirror/internal/ddl"
	"github.com/roach88/dtmirror/internal/schema"
	"github.com/roach88/dtmirror/internal/store"
)

// memSource serves records per endpoint, ignoring the query string.
type memSource struct {
	records map[string][]datatracker.Record
	failing map[string]bool
	uris    []string
}

func (m *memSource) FetchAll(_ context.Context, uri string) iter.Seq2[datatracker.Record, error] {
	m.uris = append(m.uris, uri)
	endpoint, _, _ := strings.Cut(uri, "?")
	return func(yield func(datatracker.Record, error) bool) {
		if m.failing[endpoint] {
			yield(nil, &datatracker.TransportError{URI: uri, Status: 500})
			return
		}
		for _, r := range m.records[endpoint] {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// recordingSink keeps every batch instead of writing it.
type recordingSink struct {
	batches [][]store.Statement
	err     error
}

func (s *recordingSink) Write(_ context.Context, batch []store.Statement) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.batches = append(s.batches, batch)
	return int64(len(batch)), nil
}

func str() schema.Type { return schema.Scalar{Kind: schema.KindString} }

func intType() schema.Type { return schema.Scalar{Kind: schema.KindInteger} }

func testRegistry() *schema.Registry {
	state := &schema.EndpointSchema{
		Endpoint: "/api/v1/doc/state/", Table: "t_doc_state", URICol: "id", SortBy: "id",
		Columns: []schema.Column{
			{Name: "id", Type: intType(), Unique: true, Primary: true},
			{Name: "slug", Type: str()},
		},
	}
	language := &schema.EndpointSchema{
		Endpoint: "/api/v1/name/formallanguagename/", Table: "t_name_formallanguagename", URICol: "slug",
		Columns: []schema.Column{
			{Name: "slug", Type: str(), Unique: true, Primary: true},
			{Name: "used", Type: schema.Scalar{Kind: schema.KindBoolean}},
		},
	}
	document := &schema.EndpointSchema{
		Endpoint: "/api/v1/doc/document/", Table: "t_doc_document", URICol: "name", SortBy: "name",
		Columns: []schema.Column{
			{Name: "name", Type: str(), Unique: true},
			{Name: "formal_languages", Type: schema.ToMany{Target: schema.Target{Endpoint: language.Endpoint, Table: language.Table}}},
			{Name: "group", Type: schema.External{Target: schema.Target{Endpoint: "/api/v1/group/group/"}}},
			{Name: "pages", Type: intType()},
			{Name: "shepherd", Type: schema.Unused{Declared: "to_one"}},
			{Name: "state", Type: schema.ToOne{Target: schema.Target{Endpoint: state.Endpoint, Table: state.Table}}},
			{Name: "tags", Type: schema.External{Many: true, Target: schema.Target{Endpoint: "/api/v1/name/doctagname/"}}},
			{Name: "time", Type: schema.Scalar{Kind: schema.KindDateTime}},
		},
	}
	return schema.NewRegistry(document, state, language)
}

func testSource() *memSource {
	return &memSource{records: map[string][]datatracker.Record{
		"/api/v1/doc/document/": {
			{
				"name":             "draft-ietf-quic-transport",
				"formal_languages": []any{"/api/v1/name/formallanguagename/abnf/", "/api/v1/name/formallanguagename/asn1/"},
				"group":            "/api/v1/group/group/2161/",
				"pages":            num("151"),
				"shepherd":         nil,
				"state":            "/api/v1/doc/state/1/",
				"tags":             []any{"/api/v1/name/doctagname/app-min/"},
				"time":             "2021-05-27T12:00:00+02:00",
				"resource_uri":     "/api/v1/doc/document/draft-ietf-quic-transport/",
			},
			{
				"name":             "rfc9000",
				"formal_languages": []any{},
				"group":            nil,
				"pages":            nil,
				"state":            nil,
				"tags":             []any{},
				"time":             nil,
			},
		},
		"/api/v1/doc/state/": {
			{"id": num("1"), "slug": "active"},
			{"id": num("2"), "slug": "expired"},
		},
		"/api/v1/name/formallanguagename/": {
			{"slug": "abnf", "used": true},
			{"slug": "asn1", "used": false},
		},
	}}
}

func num(s string) any {
	return gojson.Number(s)
}

func compile(t *testing.T, reg *schema.Registry) *ddl.Plan {
	t.Helper()
	plan, err := ddl.Compile(reg)
	require.NoError(t, err)
	return plan
}

func TestImport_ConvertsRecords(t *testing.T) {
	reg := testRegistry()
	src := testSource()
	sink := &recordingSink{}

	report, err := Import(context.Background(), src, reg, compile(t, reg), sink, Options{PageLimit: 500})
	require.NoError(t, err)

	require.Len(t, sink.batches, 3)
	doc := sink.batches[0]
	require.Len(t, doc, 4) // two records, one language insert, one tag insert

	assert.Equal(t, `INSERT INTO t_doc_document ("name", "group", "pages", "state", "time") VALUES (?, ?, ?, ?, ?)`, doc[0].SQL)
	assert.Equal(t, []any{"draft-ietf-quic-transport", "2161", int64(151), int64(1), "2021-05-27 10:00:00"}, doc[0].Args)

	assert.Equal(t, `INSERT INTO t_doc_document_formal_languages ("document", "formal_languages") VALUES (?, ?), (?, ?)`, doc[1].SQL)
	assert.Equal(t, []any{"draft-ietf-quic-transport", "abnf", "draft-ietf-quic-transport", "asn1"}, doc[1].Args)

	assert.Equal(t, `INSERT INTO t_doc_document_tags ("document", "tags") VALUES (?, ?)`, doc[2].SQL)
	assert.Equal(t, []any{"draft-ietf-quic-transport", "app-min"}, doc[2].Args)

	assert.Equal(t, []any{"rfc9000", nil, nil, nil, nil}, doc[3].Args)

	assert.Equal(t, []any{"abnf", int64(1)}, sink.batches[2][0].Args)

	require.Len(t, report.Tables, 3)
	assert.Equal(t, TableReport{Endpoint: "/api/v1/doc/document/", Table: "t_doc_document", Records: 2, JunctionRows: 3}, report.Tables[0])
	assert.Equal(t, 6, report.Records())
	assert.Equal(t, 3, report.JunctionRows())
}

func TestImport_UsesListURI(t *testing.T) {
	reg := testRegistry()
	src := testSource()

	_, err := Import(context.Background(), src, reg, compile(t, reg), &recordingSink{}, Options{PageLimit: 500})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/api/v1/doc/document/?limit=500&order_by=name",
		"/api/v1/doc/state/?limit=500&order_by=id",
		"/api/v1/name/formallanguagename/?limit=500",
	}, src.uris)
}

func TestImport_EmptyCollection(t *testing.T) {
	reg := testRegistry()
	src := testSource()
	delete(src.records, "/api/v1/doc/state/")
	sink := &recordingSink{}

	report, err := Import(context.Background(), src, reg, compile(t, reg), sink, Options{PageLimit: 500})
	require.NoError(t, err)
	assert.Len(t, sink.batches, 2)
	assert.Equal(t, 0, report.Tables[1].Records)
}

func TestImport_FetchFailureStopsImport(t *testing.T) {
	reg := testRegistry()
	src := testSource()
	src.failing = map[string]bool{"/api/v1/doc/state/": true}
	sink := &recordingSink{}

	report, err := Import(context.Background(), src, reg, compile(t, reg), sink, Options{PageLimit: 500})
	require.Error(t, err)
	assert.True(t, datatracker.IsTransportError(err))
	assert.Len(t, report.Tables, 1, "endpoints before the failure are reported")
	assert.Len(t, sink.batches, 1)
}

func TestImport_SinkFailure(t *testing.T) {
	reg := testRegistry()
	sink := &recordingSink{err: errors.New("disk full")}

	_, err := Import(context.Background(), testSource(), reg, compile(t, reg), sink, Options{PageLimit: 500})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "/api/v1/doc/document/")
}

func TestImport_BadValue(t *testing.T) {
	reg := testRegistry()
	src := testSource()
	src.records["/api/v1/doc/state/"][0]["id"] = "one"

	_, err := Import(context.Background(), src, reg, compile(t, reg), &recordingSink{}, Options{PageLimit: 500})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field id")
}

func TestImport_JunctionChunks(t *testing.T) {
	reg := testRegistry()
	src := testSource()
	langs := make([]any, maxPairs+5)
	for i := range langs {
		langs[i] = fmt.Sprintf("/api/v1/name/formallanguagename/l%d/", i)
	}
	src.records["/api/v1/doc/document/"][0]["formal_languages"] = langs
	sink := &recordingSink{}

	report, err := Import(context.Background(), src, reg, compile(t, reg), sink, Options{PageLimit: 500})
	require.NoError(t, err)

	doc := sink.batches[0]
	assert.Len(t, doc[1].Args, 2*maxPairs)
	assert.Len(t, doc[2].Args, 10)
	assert.Equal(t, maxPairs+5+1, report.Tables[0].JunctionRows)
}

func TestImport_IntoStore(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry()
	plan := compile(t, reg)

	s, err := store.Open(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Materialize(ctx, plan.Statements()))

	_, err = Import(ctx, testSource(), reg, plan, s, Options{PageLimit: 500})
	require.NoError(t, err)

	var state int64
	var when string
	err = s.DB().QueryRow(`SELECT "state", "time" FROM t_doc_document WHERE "name" = ?`, "draft-ietf-quic-transport").Scan(&state, &when)
	require.NoError(t, err)
	assert.Equal(t, int64(1), state)
	assert.Equal(t, "2021-05-27 10:00:00", when)

	var slug string
	err = s.DB().QueryRow(`SELECT s."slug" FROM t_doc_document d JOIN t_doc_state s ON d."state" = s."id"`).Scan(&slug)
	require.NoError(t, err)
	assert.Equal(t, "active", slug)

	n, err := s.Count(ctx, "t_doc_document_formal_languages")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Count(ctx, "t_name_formallanguagename")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
