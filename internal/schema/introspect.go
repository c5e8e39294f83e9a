package schema

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/dtmirror/internal/apipath"
	"github.com/roach88/dtmirror/internal/config"
	"github.com/roach88/dtmirror/internal/datatracker"
)

// ResourceURIField is the self link every record carries. It is not a column.
const ResourceURIField = "resource_uri"

// Introspect maps a schema document to an EndpointSchema. It does no I/O,
// so the same document always yields the same schema.
//
// Columns are ordered with uriCol first and the rest by name. Relation
// columns come back unresolved; relation discovery fills in their targets.
func Introspect(doc *datatracker.SchemaDocument, endpoint, uriCol, prefix string) (*EndpointSchema, error) {
	p, err := apipath.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	if !p.IsCollection() {
		return nil, &InferenceError{Endpoint: endpoint, Message: "not an endpoint path"}
	}

	s := &EndpointSchema{
		Endpoint: p.Endpoint(),
		Table:    p.Table(prefix),
		URICol:   uriCol,
	}

	names := make([]string, 0, len(doc.Fields))
	for name := range doc.Fields {
		if name != ResourceURIField {
			names = append(names, name)
		}
	}
	slices.SortFunc(names, func(a, b string) int {
		switch {
		case a == uriCol:
			return -1
		case b == uriCol:
			return 1
		}
		return strings.Compare(a, b)
	})

	for _, name := range names {
		field := doc.Fields[name]
		t, err := fieldType(endpoint, name, field)
		if err != nil {
			return nil, err
		}
		s.Columns = append(s.Columns, Column{
			Name:    name,
			Type:    t,
			Unique:  field.Unique,
			Primary: field.PrimaryKey,
		})
		if field.PrimaryKey {
			s.PrimaryKey = name
		}
	}

	key, ok := s.Column(uriCol)
	if !ok {
		return nil, &config.ConfigurationError{
			Message:   fmt.Sprintf("uri_col %q is not a field of the endpoint", uriCol),
			Endpoints: []string{endpoint},
		}
	}
	if _, many := key.Type.(ToMany); many {
		return nil, &config.ConfigurationError{
			Message:   fmt.Sprintf("uri_col %q is a to-many relation", uriCol),
			Endpoints: []string{endpoint},
		}
	}

	// History tables are not reliably orderable through the API.
	if len(doc.Ordering) > 0 && !strings.Contains(endpoint, "historical") {
		if _, ok := s.Column(doc.Ordering[0]); ok {
			s.SortBy = doc.Ordering[0]
		}
	}

	return s, nil
}

func fieldType(endpoint, name string, f datatracker.FieldSpec) (Type, error) {
	if kind, ok := scalarKinds[f.Type]; ok {
		return Scalar{Kind: kind}, nil
	}
	if f.Type != "related" {
		return nil, &InferenceError{Endpoint: endpoint, Column: name, Message: fmt.Sprintf("unknown type %q", f.Type)}
	}
	switch f.RelatedType {
	case "to_one":
		return ToOne{}, nil
	case "to_many":
		return ToMany{}, nil
	}
	return nil, &InferenceError{Endpoint: endpoint, Column: name, Message: fmt.Sprintf("unknown related_type %q", f.RelatedType)}
}

// SchemaSource serves schema documents.
type SchemaSource interface {
	Schema(ctx context.Context, endpoint string) (*datatracker.SchemaDocument, error)
}

// Introspector builds the registry for every mirrored endpoint.
type Introspector struct {
	Source SchemaSource
	Prefix string
	Logger *slog.Logger
}

// Build fetches and introspects, in order, each endpoint the table mirrors.
// Endpoints the table skips are left out of the registry.
func (in *Introspector) Build(ctx context.Context, endpoints []string, table *config.MirrorTable) (*Registry, error) {
	logger := in.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var schemas []*EndpointSchema
	for _, endpoint := range endpoints {
		entry, ok := table.Lookup(endpoint)
		if !ok {
			return nil, &config.ConfigurationError{Message: "endpoint missing from the mirror table", Endpoints: []string{endpoint}}
		}
		if !entry.Mirror {
			logger.Debug("endpoint skipped", "endpoint", endpoint, "reason", entry.Reason)
			continue
		}

		doc, err := in.Source.Schema(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		s, err := Introspect(doc, endpoint, entry.URICol, in.Prefix)
		if err != nil {
			return nil, err
		}
		if s.SortBy == "" && len(doc.Ordering) > 0 {
			logger.Info("ordering disabled", "endpoint", endpoint)
		}
		logger.Info("introspected", "endpoint", endpoint, "table", s.Table, "columns", len(s.Columns))
		schemas = append(schemas, s)
	}
	return NewRegistry(schemas...), nil
}
