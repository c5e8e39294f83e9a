package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/dtmirror/internal/apipath"
)

//go:embed mirror.cue
var defaultTable []byte

//go:embed schema.cue
var tableSchema string

// Entry is the mirror decision for one endpoint.
type Entry struct {
	Mirror bool   `json:"mirror"`
	URICol string `json:"uri_col,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// MirrorTable maps every known endpoint to its Entry.
type MirrorTable struct {
	Source  string
	entries map[string]Entry
}

// DefaultMirrorTable returns the table compiled into the binary.
func DefaultMirrorTable() (*MirrorTable, error) {
	return ParseMirrorTable("mirror.cue", defaultTable)
}

// LoadMirrorTable reads a table from a CUE file. An empty path selects the
// built-in table.
func LoadMirrorTable(path string) (*MirrorTable, error) {
	if path == "" {
		return DefaultMirrorTable()
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("mirror table not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading mirror table: %v", err)}
	}
	return ParseMirrorTable(path, data)
}

// ParseMirrorTable compiles CUE source, validates it against the table
// schema and decodes the entries.
func ParseMirrorTable(filename string, data []byte) (*MirrorTable, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(tableSchema, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	endpoints := v.LookupPath(cue.ParsePath("endpoints"))
	if !endpoints.Exists() {
		return nil, &LoadError{Code: ErrCodeInvalidTable, Message: "endpoints is required", Pos: v.Pos()}
	}

	iter, err := endpoints.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	t := &MirrorTable{Source: filename, entries: make(map[string]Entry)}
	var unkeyed []string
	for iter.Next() {
		endpoint := iter.Selector().Unquoted()
		p, err := apipath.Parse(endpoint)
		if err != nil || !p.IsCollection() || p.Endpoint() != endpoint {
			return nil, &LoadError{
				Code:    ErrCodeInvalidEndpoint,
				Message: fmt.Sprintf("%q is not an endpoint path", endpoint),
				Pos:     iter.Value().Pos(),
			}
		}

		var e Entry
		if err := iter.Value().Decode(&e); err != nil {
			return nil, formatCUEError(err)
		}
		if e.Mirror && e.URICol == "" {
			unkeyed = append(unkeyed, endpoint)
		}
		t.entries[endpoint] = e
	}

	if len(t.entries) == 0 {
		return nil, &LoadError{Code: ErrCodeInvalidTable, Message: "endpoints is empty", Pos: endpoints.Pos()}
	}
	if len(unkeyed) > 0 {
		slices.Sort(unkeyed)
		return nil, &ConfigurationError{Message: "mirrored endpoints without uri_col", Endpoints: unkeyed}
	}
	return t, nil
}

// Lookup returns the entry for an endpoint.
func (t *MirrorTable) Lookup(endpoint string) (Entry, bool) {
	e, ok := t.entries[endpoint]
	return e, ok
}

// Mirrored reports whether the endpoint is selected for download.
func (t *MirrorTable) Mirrored(endpoint string) bool {
	return t.entries[endpoint].Mirror
}

// Len returns the number of entries.
func (t *MirrorTable) Len() int {
	return len(t.entries)
}

// Endpoints returns every endpoint in the table, sorted.
func (t *MirrorTable) Endpoints() []string {
	out := make([]string, 0, len(t.entries))
	for endpoint := range t.entries {
		out = append(out, endpoint)
	}
	slices.Sort(out)
	return out
}

// Check verifies that every live endpoint has an entry. All missing
// endpoints are reported together.
func (t *MirrorTable) Check(live []string) error {
	var missing []string
	for _, endpoint := range live {
		if _, ok := t.entries[endpoint]; !ok {
			missing = append(missing, endpoint)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return &ConfigurationError{Message: "endpoints missing from the mirror table", Endpoints: missing}
}
