package schema

import "fmt"

// Kind is a scalar field type declared by the API.
type Kind string

const (
	KindString    Kind = "string"
	KindInteger   Kind = "integer"
	KindBoolean   Kind = "boolean"
	KindDate      Kind = "date"
	KindDateTime  Kind = "datetime"
	KindTimeDelta Kind = "timedelta"
)

// scalarKinds is the fixed table of declared types that map to a Scalar.
var scalarKinds = map[string]Kind{
	"string":    KindString,
	"integer":   KindInteger,
	"boolean":   KindBoolean,
	"date":      KindDate,
	"datetime":  KindDateTime,
	"timedelta": KindTimeDelta,
}

// Type is a sealed interface over column types.
// Only Scalar, ToOne, ToMany, External and Unused implement it.
type Type interface {
	columnType()
	String() string
}

// Target is the endpoint a relation points at.
// The zero Target means the relation has not been resolved yet.
type Target struct {
	Endpoint string
	Table    string
}

// Resolved reports whether the target has been discovered.
func (t Target) Resolved() bool {
	return t.Endpoint != ""
}

// Scalar is a plain value column.
type Scalar struct {
	Kind Kind
}

func (Scalar) columnType() {}

func (s Scalar) String() string { return string(s.Kind) }

// ToOne holds a single reference to a mirrored endpoint.
type ToOne struct {
	Target Target
}

func (ToOne) columnType() {}

func (r ToOne) String() string { return relationString("to_one", r.Target) }

// ToMany holds a list of references to a mirrored endpoint.
// It has no column in the base table; its values live in a junction table.
type ToMany struct {
	Target Target
}

func (ToMany) columnType() {}

func (r ToMany) String() string { return relationString("to_many", r.Target) }

// External is a relation whose target endpoint is not mirrored. Keys are
// stored as text and no foreign key is declared.
type External struct {
	Many   bool
	Target Target
}

func (External) columnType() {}

func (r External) String() string {
	if r.Many {
		return relationString("external_many", r.Target)
	}
	return relationString("external", r.Target)
}

// Unused is a relation that never carried a value in the scanned records.
// It is dropped from the compiled schema and from import.
type Unused struct {
	Declared string // "to_one" or "to_many"
}

func (Unused) columnType() {}

func (u Unused) String() string { return "unused(" + u.Declared + ")" }

func relationString(name string, t Target) string {
	if !t.Resolved() {
		return name + "(?)"
	}
	return fmt.Sprintf("%s(%s)", name, t.Endpoint)
}

// IsRelation reports whether t still needs relation discovery.
func IsRelation(t Type) bool {
	switch t.(type) {
	case ToOne, ToMany:
		return true
	}
	return false
}

// Column is one field of an endpoint.
type Column struct {
	Name    string
	Type    Type
	Unique  bool
	Primary bool // declared primary key in the API
}
