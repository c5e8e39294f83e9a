package schema

import (
	"slices"

	"github.com/roach88/dtmirror/internal/datatracker"
)

// EndpointSchema is the inferred shape of one mirrored endpoint.
type EndpointSchema struct {
	Endpoint   string
	Table      string
	SortBy     string // empty when the collection is fetched unordered
	PrimaryKey string // field the API declares as primary key
	URICol     string // field identifying a row, from the mirror table
	Columns    []Column
}

// Column returns the named column.
func (s *EndpointSchema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// SetType replaces the type of a column. It returns false if there is no
// such column.
func (s *EndpointSchema) SetType(name string, t Type) bool {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			s.Columns[i].Type = t
			return true
		}
	}
	return false
}

// Pending returns the relation columns that have no target yet.
func (s *EndpointSchema) Pending() []string {
	var out []string
	for _, c := range s.Columns {
		switch t := c.Type.(type) {
		case ToOne:
			if !t.Target.Resolved() {
				out = append(out, c.Name)
			}
		case ToMany:
			if !t.Target.Resolved() {
				out = append(out, c.Name)
			}
		}
	}
	return out
}

// ListURI is the first-page URI both relation discovery and import read, so
// the second pass is served from the fetch cache.
func (s *EndpointSchema) ListURI(limit int) string {
	return datatracker.ListURI(s.Endpoint, limit, s.SortBy)
}

// Clone returns a deep copy.
func (s *EndpointSchema) Clone() *EndpointSchema {
	c := *s
	c.Columns = slices.Clone(s.Columns)
	return &c
}

// Registry is an immutable, ordered set of endpoint schemas.
// Updates return a new Registry and leave the receiver untouched.
type Registry struct {
	order   []string
	schemas map[string]*EndpointSchema
}

// NewRegistry builds a registry keeping the given order.
// A later schema for the same endpoint replaces an earlier one.
func NewRegistry(schemas ...*EndpointSchema) *Registry {
	r := &Registry{schemas: make(map[string]*EndpointSchema, len(schemas))}
	for _, s := range schemas {
		if _, ok := r.schemas[s.Endpoint]; !ok {
			r.order = append(r.order, s.Endpoint)
		}
		r.schemas[s.Endpoint] = s.Clone()
	}
	return r
}

// Len returns the number of endpoints.
func (r *Registry) Len() int {
	return len(r.order)
}

// Endpoints returns the endpoints in registry order.
func (r *Registry) Endpoints() []string {
	return slices.Clone(r.order)
}

// Lookup returns a copy of the schema for an endpoint.
func (r *Registry) Lookup(endpoint string) (*EndpointSchema, bool) {
	s, ok := r.schemas[endpoint]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Has reports whether the endpoint is in the registry.
func (r *Registry) Has(endpoint string) bool {
	_, ok := r.schemas[endpoint]
	return ok
}

// Schemas returns copies of every schema in registry order.
func (r *Registry) Schemas() []*EndpointSchema {
	out := make([]*EndpointSchema, 0, len(r.order))
	for _, endpoint := range r.order {
		out = append(out, r.schemas[endpoint].Clone())
	}
	return out
}

// With returns a registry where s replaces the schema of its endpoint, or
// is appended when the endpoint is new.
func (r *Registry) With(s *EndpointSchema) *Registry {
	next := &Registry{
		order:   slices.Clone(r.order),
		schemas: make(map[string]*EndpointSchema, len(r.schemas)+1),
	}
	for k, v := range r.schemas {
		next.schemas[k] = v
	}
	if _, ok := next.schemas[s.Endpoint]; !ok {
		next.order = append(next.order, s.Endpoint)
	}
	next.schemas[s.Endpoint] = s.Clone()
	return next
}
