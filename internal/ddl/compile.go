// Package ddl compiles an endpoint registry into SQLite tables.
//
// Each mirrored endpoint becomes a base table keyed by its uri_col, with a
// unique index on that column. Each to-many relation becomes a junction
// table with a synthetic id and one foreign key per side. To-one columns
// take the SQL type of the column they reference.
package ddl

import (
	"fmt"

	"github.com/roach88/dtmirror/internal/apipath"
	"github.com/roach88/dtmirror/internal/schema"
)

// Compile builds the plan for every endpoint in reg, in registry order.
// Relations must have been resolved; an unresolved one is an error.
func Compile(reg *schema.Registry) (*Plan, error) {
	c := &compiler{reg: reg}
	plan := &Plan{}
	for _, s := range reg.Schemas() {
		tables, im, err := c.endpoint(s)
		if err != nil {
			return nil, err
		}
		plan.Tables = append(plan.Tables, tables...)
		plan.Imports = append(plan.Imports, im)
	}
	return plan, nil
}

type compiler struct {
	reg *schema.Registry
}

func (c *compiler) endpoint(s *schema.EndpointSchema) ([]Table, Import, error) {
	base := Table{Name: s.Table, Endpoint: s.Endpoint, IndexColumn: s.URICol}
	im := Import{Endpoint: s.Endpoint, Table: s.Table, URICol: s.URICol}
	var junctions []Table

	for _, col := range s.Columns {
		var sqlType SQLType
		switch t := col.Type.(type) {
		case schema.Scalar:
			sqlType = scalarType(t.Kind)

		case schema.ToOne:
			if !t.Target.Resolved() {
				return nil, Import{}, unresolved(s, col)
			}
			refCol, refType, err := c.keyOf(t.Target.Endpoint, nil)
			if err != nil {
				return nil, Import{}, err
			}
			sqlType = refType
			base.ForeignKeys = append(base.ForeignKeys, ForeignKey{Column: col.Name, RefTable: t.Target.Table, RefColumn: refCol})

		case schema.External:
			if !t.Many {
				sqlType = Text
				break
			}
			jt, j, err := c.junction(s, col.Name, t.Target, true)
			if err != nil {
				return nil, Import{}, err
			}
			junctions = append(junctions, jt)
			im.Junctions = append(im.Junctions, j)
			continue

		case schema.ToMany:
			if !t.Target.Resolved() {
				return nil, Import{}, unresolved(s, col)
			}
			jt, j, err := c.junction(s, col.Name, t.Target, false)
			if err != nil {
				return nil, Import{}, err
			}
			junctions = append(junctions, jt)
			im.Junctions = append(im.Junctions, j)
			continue

		case schema.Unused:
			continue

		default:
			panic(fmt.Sprintf("unhandled column type %T", col.Type))
		}

		base.Columns = append(base.Columns, ColumnDef{
			Name:       col.Name,
			Type:       sqlType,
			Unique:     col.Unique,
			PrimaryKey: col.Name == s.URICol,
		})
		im.Columns = append(im.Columns, Binding{Column: col.Name, Type: col.Type, SQLType: sqlType})
	}

	if _, ok := im.Binding(s.URICol); !ok {
		return nil, Import{}, &schema.InferenceError{Endpoint: s.Endpoint, Column: s.URICol, Message: "uri_col has no column in the base table"}
	}

	return append([]Table{base}, junctions...), im, nil
}

// junction builds the table holding one to-many field. The source column is
// named after the source model and the target column after the field.
func (c *compiler) junction(s *schema.EndpointSchema, field string, target schema.Target, external bool) (Table, Junction, error) {
	p, err := apipath.Parse(s.Endpoint)
	if err != nil {
		return Table{}, Junction{}, err
	}
	srcCol, srcType, err := c.keyOf(s.Endpoint, nil)
	if err != nil {
		return Table{}, Junction{}, err
	}

	j := Junction{
		Table:        apipath.JunctionName(s.Table, field),
		Field:        field,
		SourceColumn: p.Model,
		TargetColumn: field,
		TargetType:   Text,
		External:     external,
	}
	if j.TargetColumn == j.SourceColumn {
		j.TargetColumn = field + "_ref"
	}

	t := Table{
		Name:     j.Table,
		Endpoint: s.Endpoint,
		Junction: true,
		Columns: []ColumnDef{
			{Name: "id", Type: Integer, PrimaryKey: true},
			{Name: j.SourceColumn, Type: srcType},
		},
		ForeignKeys: []ForeignKey{{Column: j.SourceColumn, RefTable: s.Table, RefColumn: srcCol}},
	}

	if !external {
		refCol, refType, err := c.keyOf(target.Endpoint, nil)
		if err != nil {
			return Table{}, Junction{}, err
		}
		j.TargetType = refType
		t.ForeignKeys = append(t.ForeignKeys, ForeignKey{Column: j.TargetColumn, RefTable: target.Table, RefColumn: refCol})
	}
	t.Columns = append(t.Columns, ColumnDef{Name: j.TargetColumn, Type: j.TargetType})

	return t, j, nil
}

// keyOf returns the identity column of an endpoint and its SQL type,
// following to-one identity columns to the table they end in.
func (c *compiler) keyOf(endpoint string, seen []string) (string, SQLType, error) {
	for _, e := range seen {
		if e == endpoint {
			return "", "", &schema.InferenceError{Endpoint: endpoint, Message: fmt.Sprintf("uri_col references form a cycle: %v", append(seen, endpoint))}
		}
	}

	s, ok := c.reg.Lookup(endpoint)
	if !ok {
		return "", "", &schema.InferenceError{Endpoint: endpoint, Message: "referenced endpoint is not mirrored"}
	}
	col, ok := s.Column(s.URICol)
	if !ok {
		return "", "", &schema.InferenceError{Endpoint: endpoint, Column: s.URICol, Message: "uri_col is not a field"}
	}

	switch t := col.Type.(type) {
	case schema.Scalar:
		return col.Name, scalarType(t.Kind), nil
	case schema.ToOne:
		if !t.Target.Resolved() {
			return "", "", unresolved(s, col)
		}
		_, typ, err := c.keyOf(t.Target.Endpoint, append(seen, endpoint))
		return col.Name, typ, err
	case schema.External:
		if t.Many {
			break
		}
		return col.Name, Text, nil
	case schema.ToMany, schema.Unused:
	default:
		panic(fmt.Sprintf("unhandled column type %T", col.Type))
	}
	return "", "", &schema.InferenceError{Endpoint: endpoint, Column: col.Name, Message: fmt.Sprintf("uri_col of type %s cannot identify a row", col.Type)}
}

func scalarType(k schema.Kind) SQLType {
	switch k {
	case schema.KindInteger, schema.KindBoolean:
		return Integer
	case schema.KindString, schema.KindDate, schema.KindDateTime, schema.KindTimeDelta:
		return Text
	}
	panic(fmt.Sprintf("unhandled scalar kind %q", k))
}

func unresolved(s *schema.EndpointSchema, col schema.Column) error {
	return &schema.InferenceError{Endpoint: s.Endpoint, Column: col.Name, Message: "relation target was never resolved"}
}
