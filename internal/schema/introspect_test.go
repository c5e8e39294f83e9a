package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dtmirror/internal/config"
	"github.com/roach88/dtmirror/internal/datatracker"
)

func documentDoc() *datatracker.SchemaDocument {
	return &datatracker.SchemaDocument{
		Fields: map[string]datatracker.FieldSpec{
			"resource_uri":     {Type: "string"},
			"id":               {Type: "integer", Unique: true, PrimaryKey: true},
			"name":             {Type: "string", Unique: true},
			"title":            {Type: "string"},
			"time":             {Type: "datetime"},
			"expires":          {Type: "datetime"},
			"pages":            {Type: "integer"},
			"internal":         {Type: "boolean"},
			"type":             {Type: "related", RelatedType: "to_one"},
			"formal_languages": {Type: "related", RelatedType: "to_many"},
		},
		Ordering: []string{"name", "time"},
	}
}

func TestIntrospect(t *testing.T) {
	s, err := Introspect(documentDoc(), "/api/v1/doc/document/", "name", "ietf_dt")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/doc/document/", s.Endpoint)
	assert.Equal(t, "ietf_dt_doc_document", s.Table)
	assert.Equal(t, "name", s.SortBy)
	assert.Equal(t, "id", s.PrimaryKey)
	assert.Equal(t, "name", s.URICol)

	var names []string
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"name", "expires", "formal_languages", "id", "internal", "pages", "time", "title", "type"}, names)

	col, ok := s.Column("internal")
	require.True(t, ok)
	assert.Equal(t, Scalar{Kind: KindBoolean}, col.Type)

	col, ok = s.Column("type")
	require.True(t, ok)
	assert.Equal(t, ToOne{}, col.Type)

	col, ok = s.Column("formal_languages")
	require.True(t, ok)
	assert.Equal(t, ToMany{}, col.Type)

	col, ok = s.Column("id")
	require.True(t, ok)
	assert.True(t, col.Primary)
	assert.True(t, col.Unique)

	_, ok = s.Column(ResourceURIField)
	assert.False(t, ok)

	assert.Equal(t, []string{"formal_languages", "type"}, s.Pending())
}

func TestIntrospect_Idempotent(t *testing.T) {
	a, err := Introspect(documentDoc(), "/api/v1/doc/document/", "name", "ietf_dt")
	require.NoError(t, err)
	b, err := Introspect(documentDoc(), "/api/v1/doc/document/", "name", "ietf_dt")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestIntrospect_HistoricalIsUnordered(t *testing.T) {
	doc := &datatracker.SchemaDocument{
		Fields: map[string]datatracker.FieldSpec{
			"history_id":   {Type: "integer", Unique: true, PrimaryKey: true},
			"history_date": {Type: "datetime"},
		},
		Ordering: []string{"history_date"},
	}

	s, err := Introspect(doc, "/api/v1/person/historicalperson/", "history_id", "ietf_dt")
	require.NoError(t, err)
	assert.Empty(t, s.SortBy)
	assert.Equal(t, "/api/v1/person/historicalperson/?limit=500", s.ListURI(500))
}

func TestIntrospect_OrderingOnUnknownFieldIsDropped(t *testing.T) {
	doc := &datatracker.SchemaDocument{
		Fields:   map[string]datatracker.FieldSpec{"id": {Type: "integer"}},
		Ordering: []string{"-time"},
	}
	s, err := Introspect(doc, "/api/v1/doc/docevent/", "id", "ietf_dt")
	require.NoError(t, err)
	assert.Empty(t, s.SortBy)
}

func TestIntrospect_ListURI(t *testing.T) {
	s, err := Introspect(documentDoc(), "/api/v1/doc/document/", "name", "ietf_dt")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/doc/document/?limit=500&order_by=name", s.ListURI(500))
}

func TestIntrospect_UnknownType(t *testing.T) {
	tests := []struct {
		name  string
		field datatracker.FieldSpec
	}{
		{"float", datatracker.FieldSpec{Type: "float"}},
		{"list", datatracker.FieldSpec{Type: "list"}},
		{"related without kind", datatracker.FieldSpec{Type: "related"}},
		{"related unknown kind", datatracker.FieldSpec{Type: "related", RelatedType: "to_some"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &datatracker.SchemaDocument{Fields: map[string]datatracker.FieldSpec{
				"id":  {Type: "integer"},
				"odd": tt.field,
			}}
			_, err := Introspect(doc, "/api/v1/doc/state/", "id", "ietf_dt")
			require.Error(t, err)

			var ie *InferenceError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, "odd", ie.Column)
			assert.Equal(t, "/api/v1/doc/state/", ie.Endpoint)
			assert.True(t, IsInferenceError(err))
		})
	}
}

func TestIntrospect_URIColMustExist(t *testing.T) {
	_, err := Introspect(documentDoc(), "/api/v1/doc/document/", "slug", "ietf_dt")
	assert.True(t, config.IsConfigurationError(err))
}

func TestIntrospect_URIColCannotBeToMany(t *testing.T) {
	_, err := Introspect(documentDoc(), "/api/v1/doc/document/", "formal_languages", "ietf_dt")
	assert.True(t, config.IsConfigurationError(err))
}

func TestIntrospect_RejectsResourcePath(t *testing.T) {
	_, err := Introspect(documentDoc(), "/api/v1/doc/document/rfc9000/", "name", "ietf_dt")
	assert.True(t, IsInferenceError(err))
}

type docSource map[string]*datatracker.SchemaDocument

func (d docSource) Schema(_ context.Context, endpoint string) (*datatracker.SchemaDocument, error) {
	doc, ok := d[endpoint]
	if !ok {
		return nil, &datatracker.TransportError{URI: endpoint + "schema/", Status: 404}
	}
	return doc, nil
}

func TestIntrospector_Build(t *testing.T) {
	table, err := config.ParseMirrorTable("test.cue", []byte(`
endpoints: {
	"/api/v1/doc/document/":   {mirror: true, uri_col: "name"}
	"/api/v1/doc/state/":      {mirror: true, uri_col: "id"}
	"/api/v1/message/message/": {mirror: false, reason: "gone"}
}
`))
	require.NoError(t, err)

	src := docSource{
		"/api/v1/doc/document/": documentDoc(),
		"/api/v1/doc/state/": {Fields: map[string]datatracker.FieldSpec{
			"id":   {Type: "integer", PrimaryKey: true, Unique: true},
			"slug": {Type: "string"},
		}},
	}

	in := &Introspector{Source: src, Prefix: "ietf_dt"}
	reg, err := in.Build(context.Background(), []string{"/api/v1/doc/document/", "/api/v1/doc/state/", "/api/v1/message/message/"}, table)
	require.NoError(t, err)

	assert.Equal(t, []string{"/api/v1/doc/document/", "/api/v1/doc/state/"}, reg.Endpoints())
	assert.False(t, reg.Has("/api/v1/message/message/"))
}

func TestIntrospector_BuildTransportError(t *testing.T) {
	table, err := config.ParseMirrorTable("test.cue", []byte(`endpoints: "/api/v1/doc/state/": {mirror: true, uri_col: "id"}`))
	require.NoError(t, err)

	in := &Introspector{Source: docSource{}, Prefix: "ietf_dt"}
	_, err = in.Build(context.Background(), []string{"/api/v1/doc/state/"}, table)
	assert.True(t, datatracker.IsTransportError(err))
}

func TestIntrospector_BuildUnconfigured(t *testing.T) {
	table, err := config.ParseMirrorTable("test.cue", []byte(`endpoints: "/api/v1/doc/state/": {mirror: true, uri_col: "id"}`))
	require.NoError(t, err)

	in := &Introspector{Source: docSource{}, Prefix: "ietf_dt"}
	_, err = in.Build(context.Background(), []string{"/api/v1/doc/new/"}, table)
	assert.True(t, config.IsConfigurationError(err))
}
