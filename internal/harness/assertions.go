package harness

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/dtmirror/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

func check(ctx context.Context, st *store.Store, a Assertion) error {
	if !validIdentifier.MatchString(a.Table) {
		return fmt.Errorf("invalid table name %q", a.Table)
	}
	if a.Column != "" && !validIdentifier.MatchString(a.Column) {
		return fmt.Errorf("invalid column name %q", a.Column)
	}

	switch a.Type {
	case AssertTableExists, AssertTableAbsent:
		return assertTable(ctx, st, a)
	case AssertColumnType, AssertColumnAbsent:
		return assertColumn(ctx, st.DB(), a)
	case AssertForeignKey:
		return assertForeignKey(ctx, st.DB(), a)
	case AssertForeignKeys:
		return assertForeignKeyCount(ctx, st.DB(), a)
	case AssertRowCount:
		return assertRowCount(ctx, st, a)
	case AssertRow:
		return assertRow(ctx, st.DB(), a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertTable(ctx context.Context, st *store.Store, a Assertion) error {
	tables, err := st.Tables(ctx)
	if err != nil {
		return err
	}
	present := slices.Contains(tables, a.Table)
	if present == (a.Type == AssertTableExists) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("table %s present=%t", a.Table, !present),
		Actual:   fmt.Sprintf("tables %v", tables),
	}
}

// columnTypes reads the declared column types of a table.
func columnTypes(ctx context.Context, db *sql.DB, table string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	types := map[string]string{}
	for rows.Next() {
		var cid, notNull, pk int
		var name, typ string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("table info %s: %w", table, err)
		}
		types[name] = typ
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	return types, nil
}

func assertColumn(ctx context.Context, db *sql.DB, a Assertion) error {
	types, err := columnTypes(ctx, db, a.Table)
	if err != nil {
		return err
	}
	typ, ok := types[a.Column]

	if a.Type == AssertColumnAbsent {
		if ok {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("no column %s.%s", a.Table, a.Column), Actual: "column " + typ}
		}
		return nil
	}

	want := a.Expect.(string)
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s.%s %s", a.Table, a.Column, want), Actual: "no such column"}
	}
	if !strings.EqualFold(typ, want) {
		return &AssertionError{Type: a.Type, Expected: want, Actual: typ}
	}
	return nil
}

// foreignKeys reads the foreign keys of a table as column → "table.column".
func foreignKeys(ctx context.Context, db *sql.DB, table string) (map[string][]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("foreign keys %s: %w", table, err)
	}
	defer rows.Close()

	refs := map[string][]string{}
	for rows.Next() {
		var id, seq int
		var target, from, to, onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &target, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("foreign keys %s: %w", table, err)
		}
		refs[from] = append(refs[from], target+"."+to)
	}
	return refs, rows.Err()
}

func assertForeignKeyCount(ctx context.Context, db *sql.DB, a Assertion) error {
	if _, err := columnTypes(ctx, db, a.Table); err != nil {
		return err
	}
	refs, err := foreignKeys(ctx, db, a.Table)
	if err != nil {
		return err
	}
	n := 0
	for _, r := range refs {
		n += len(r)
	}
	if n != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d foreign keys on %s", a.Count, a.Table),
			Actual:   fmt.Sprintf("%d %v", n, refs),
		}
	}
	return nil
}

func assertForeignKey(ctx context.Context, db *sql.DB, a Assertion) error {
	all, err := foreignKeys(ctx, db, a.Table)
	if err != nil {
		return err
	}
	refs := all[a.Column]

	want := a.Expect.(string)
	if slices.Contains(refs, want) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s.%s references %s", a.Table, a.Column, want),
		Actual:   fmt.Sprintf("references %v", refs),
	}
}

func assertRowCount(ctx context.Context, st *store.Store, a Assertion) error {
	n, err := st.Count(ctx, a.Table)
	if err != nil {
		return err
	}
	if n != a.Count {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d rows in %s", a.Count, a.Table), Actual: fmt.Sprintf("%d rows", n)}
	}
	return nil
}

// assertRow finds the single row matching Where and compares the expected
// columns. Values compare by their printed form, so YAML 5 matches INTEGER 5
// and YAML null matches NULL.
func assertRow(ctx context.Context, db *sql.DB, a Assertion) error {
	expect := a.Expect.(map[string]any)

	whereKeys := sortedKeys(a.Where)
	expectKeys := sortedKeys(expect)
	for _, k := range append(slices.Clone(whereKeys), expectKeys...) {
		if !validIdentifier.MatchString(k) {
			return fmt.Errorf("invalid column name %q", k)
		}
	}

	cols := make([]string, len(expectKeys))
	for i, k := range expectKeys {
		cols[i] = fmt.Sprintf("%q", k)
	}
	conds := make([]string, len(whereKeys))
	args := make([]any, len(whereKeys))
	for i, k := range whereKeys {
		conds[i] = fmt.Sprintf("%q = ?", k)
		args[i] = a.Where[k]
	}
	query := fmt.Sprintf("SELECT %s FROM %q WHERE %s",
		strings.Join(cols, ", "), a.Table, strings.Join(conds, " AND "))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", a.Table, err)
	}
	defer rows.Close()

	var matched [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan %s: %w", a.Table, err)
		}
		matched = append(matched, values)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(matched) != 1 {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("one row in %s where %v", a.Table, a.Where),
			Actual:   fmt.Sprintf("%d rows", len(matched)),
		}
	}

	var diffs []string
	for i, k := range expectKeys {
		want, got := printed(expect[k]), printed(matched[0][i])
		if want != got {
			diffs = append(diffs, fmt.Sprintf("%s=%s (want %s)", k, got, want))
		}
	}
	if len(diffs) > 0 {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%v", expect),
			Actual:   strings.Join(diffs, ", "),
		}
	}
	return nil
}

func printed(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
