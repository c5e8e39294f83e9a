package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "One endpoint"
mirror_table: |
  endpoints: {"/api/v1/doc/state/": {mirror: true, uri_col: "id"}}
endpoints:
  /api/v1/doc/state/:
    ordering: [id]
    fields:
      id: {type: integer, unique: true, primary_key: true}
    objects:
      - {id: 5}
assertions:
  - type: row_count
    table: ietf_dt_doc_state
    count: 1
`

func TestLoadScenario_Valid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	require.Contains(t, s.Endpoints, "/api/v1/doc/state/")
	ep := s.Endpoints["/api/v1/doc/state/"]
	assert.Equal(t, []string{"id"}, ep.Ordering)
	assert.True(t, ep.Fields["id"].PrimaryKey)
	assert.Equal(t, "integer", ep.Fields["id"].Type)
	require.Len(t, ep.Objects, 1)
	assert.Equal(t, 5, ep.Objects[0]["id"])
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertRowCount, s.Assertions[0].Type)
	assert.Equal(t, 1, s.Assertions[0].Count)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: `description: d
mirror_table: x
endpoints: {/api/v1/doc/state/: {fields: {}}}`,
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: `name: n
mirror_table: x
endpoints: {/api/v1/doc/state/: {fields: {}}}`,
			want: "description is required",
		},
		{
			name: "missing mirror table",
			yaml: `name: n
description: d
endpoints: {/api/v1/doc/state/: {fields: {}}}`,
			want: "mirror_table is required",
		},
		{
			name: "no endpoints",
			yaml: `name: n
description: d
mirror_table: x`,
			want: "endpoints map is required",
		},
		{
			name: "unknown error class",
			yaml: `name: n
description: d
mirror_table: x
expect_error: timeout
endpoints: {/api/v1/doc/state/: {fields: {}}}`,
			want: "expect_error",
		},
		{
			name: "unknown assertion",
			yaml: `name: n
description: d
mirror_table: x
endpoints: {/api/v1/doc/state/: {fields: {}}}
assertions: [{type: final_state, table: t}]`,
			want: `unknown type "final_state"`,
		},
		{
			name: "column type without column",
			yaml: `name: n
description: d
mirror_table: x
endpoints: {/api/v1/doc/state/: {fields: {}}}
assertions: [{type: column_type, table: t, expect: TEXT}]`,
			want: "column is required",
		},
		{
			name: "row without where",
			yaml: `name: n
description: d
mirror_table: x
endpoints: {/api/v1/doc/state/: {fields: {}}}
assertions: [{type: row, table: t, expect: {a: 1}}]`,
			want: "where is required",
		},
		{
			name: "row expect not a map",
			yaml: `name: n
description: d
mirror_table: x
endpoints: {/api/v1/doc/state/: {fields: {}}}
assertions: [{type: row, table: t, where: {a: 1}, expect: 1}]`,
			want: "expect must be a map",
		},
		{
			name: "foreign key expect not a string",
			yaml: `name: n
description: d
mirror_table: x
endpoints: {/api/v1/doc/state/: {fields: {}}}
assertions: [{type: foreign_key, table: t, column: c}]`,
			want: "expect must be a string",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
