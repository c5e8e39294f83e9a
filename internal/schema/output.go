package schema

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// EndpointView is the serialisable form of an EndpointSchema.
type EndpointView struct {
	Endpoint   string       `yaml:"endpoint" json:"endpoint"`
	Table      string       `yaml:"table" json:"table"`
	SortBy     string       `yaml:"sort_by,omitempty" json:"sort_by,omitempty"`
	PrimaryKey string       `yaml:"primary_key,omitempty" json:"primary_key,omitempty"`
	URICol     string       `yaml:"uri_col" json:"uri_col"`
	Columns    []ColumnView `yaml:"columns" json:"columns"`
}

// ColumnView is the serialisable form of a Column.
type ColumnView struct {
	Name    string `yaml:"name" json:"name"`
	Type    string `yaml:"type" json:"type"`
	Target  string `yaml:"target,omitempty" json:"target,omitempty"`
	Unique  bool   `yaml:"unique,omitempty" json:"unique,omitempty"`
	Primary bool   `yaml:"primary,omitempty" json:"primary,omitempty"`
}

// Describe returns the registry as plain data, in registry order.
func (r *Registry) Describe() []EndpointView {
	out := make([]EndpointView, 0, r.Len())
	for _, s := range r.Schemas() {
		v := EndpointView{
			Endpoint:   s.Endpoint,
			Table:      s.Table,
			SortBy:     s.SortBy,
			PrimaryKey: s.PrimaryKey,
			URICol:     s.URICol,
		}
		for _, c := range s.Columns {
			v.Columns = append(v.Columns, describeColumn(c))
		}
		out = append(out, v)
	}
	return out
}

func describeColumn(c Column) ColumnView {
	v := ColumnView{Name: c.Name, Unique: c.Unique, Primary: c.Primary}
	switch t := c.Type.(type) {
	case Scalar:
		v.Type = string(t.Kind)
	case ToOne:
		v.Type, v.Target = "to_one", t.Target.Table
	case ToMany:
		v.Type, v.Target = "to_many", t.Target.Table
	case External:
		v.Type, v.Target = "external", t.Target.Endpoint
		if t.Many {
			v.Type = "external_many"
		}
	case Unused:
		v.Type = "unused"
	default:
		panic(fmt.Sprintf("unhandled column type %T", c.Type))
	}
	return v
}

// WriteYAML writes the registry description as YAML.
func (r *Registry) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r.Describe()); err != nil {
		return fmt.Errorf("marshaling registry: %w", err)
	}
	return enc.Close()
}
