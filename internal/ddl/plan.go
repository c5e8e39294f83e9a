package ddl

import (
	"fmt"
	"strings"

	"github.com/roach88/dtmirror/internal/schema"
)

// SQLType is a SQLite column affinity.
type SQLType string

const (
	Text    SQLType = "TEXT"
	Integer SQLType = "INTEGER"
)

// ColumnDef is one column of a CREATE TABLE statement.
type ColumnDef struct {
	Name       string
	Type       SQLType
	Unique     bool
	PrimaryKey bool
}

// ForeignKey references the identity column of another table.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// Table is one table of the mirror.
type Table struct {
	Name        string
	Endpoint    string // endpoint the rows come from
	Junction    bool
	Columns     []ColumnDef
	ForeignKeys []ForeignKey
	IndexColumn string // unique index, base tables only
}

// CreateSQL renders the CREATE TABLE statement.
func (t Table) CreateSQL() string {
	var lines []string
	for _, c := range t.Columns {
		line := fmt.Sprintf("  %s %s", quote(c.Name), c.Type)
		if c.Unique {
			line += " UNIQUE"
		}
		if c.PrimaryKey {
			line += " PRIMARY KEY"
		}
		lines = append(lines, line)
	}
	for _, fk := range t.ForeignKeys {
		lines = append(lines, fmt.Sprintf("  FOREIGN KEY (%s) REFERENCES %s (%s)", quote(fk.Column), fk.RefTable, quote(fk.RefColumn)))
	}
	return "CREATE TABLE " + t.Name + " (\n" + strings.Join(lines, ",\n") + "\n)"
}

// IndexSQL renders the unique index on the identity column, or "" for
// junction tables.
func (t Table) IndexSQL() string {
	if t.IndexColumn == "" {
		return ""
	}
	return fmt.Sprintf("CREATE UNIQUE INDEX index_%s_%s ON %s (%s)", t.Name, t.IndexColumn, t.Name, quote(t.IndexColumn))
}

// Binding maps a record field to a base table column.
type Binding struct {
	Column  string
	Type    schema.Type // Scalar, ToOne or single-valued External
	SQLType SQLType
}

// Junction maps the elements of a to-many field to junction rows.
type Junction struct {
	Table        string
	Field        string // to-many field of the source record
	SourceColumn string
	TargetColumn string
	TargetType   SQLType
	External     bool
}

// InsertSQL renders a multi-row insert of n (source, target) pairs.
func (j Junction) InsertSQL(n int) string {
	rows := strings.TrimSuffix(strings.Repeat("(?, ?), ", n), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES %s", j.Table, quote(j.SourceColumn), quote(j.TargetColumn), rows)
}

// Import describes how the records of one endpoint are written.
type Import struct {
	Endpoint  string
	Table     string
	URICol    string
	Columns   []Binding
	Junctions []Junction
}

// InsertSQL renders the parameterised insert for one record.
func (im Import) InsertSQL() string {
	names := make([]string, len(im.Columns))
	marks := make([]string, len(im.Columns))
	for i, b := range im.Columns {
		names[i] = quote(b.Column)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", im.Table, strings.Join(names, ", "), strings.Join(marks, ", "))
}

// Binding returns the binding of a column.
func (im Import) Binding(column string) (Binding, bool) {
	for _, b := range im.Columns {
		if b.Column == column {
			return b, true
		}
	}
	return Binding{}, false
}

// Plan is the compiled relational schema.
type Plan struct {
	Tables  []Table
	Imports []Import
}

// Statements returns every DDL statement in execution order.
func (p *Plan) Statements() []string {
	var out []string
	for _, t := range p.Tables {
		out = append(out, t.CreateSQL())
		if idx := t.IndexSQL(); idx != "" {
			out = append(out, idx)
		}
	}
	return out
}

// SQL returns the DDL as one script.
func (p *Plan) SQL() string {
	stmts := p.Statements()
	if len(stmts) == 0 {
		return ""
	}
	return strings.Join(stmts, ";\n\n") + ";\n"
}

// Import returns the import description for an endpoint.
func (p *Plan) Import(endpoint string) (Import, bool) {
	for _, im := range p.Imports {
		if im.Endpoint == endpoint {
			return im, true
		}
	}
	return Import{}, false
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
