package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dtmirror/internal/testutil"
)

// Scenario is one end-to-end mirror test.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// MirrorTable is the CUE source of the mirror table.
	MirrorTable string `yaml:"mirror_table"`

	// Endpoints are served by the fake Datatracker, keyed by endpoint path.
	Endpoints map[string]Endpoint `yaml:"endpoints"`

	// Failures answers requests for these paths with the given status.
	Failures map[string]int `yaml:"failures,omitempty"`

	// Prefix overrides the table prefix. Defaults to "ietf_dt".
	Prefix string `yaml:"prefix,omitempty"`

	// PageLimit overrides the page size requested. Defaults to 500.
	PageLimit int `yaml:"page_limit,omitempty"`

	// MaxPageSize caps the page size the server answers with.
	MaxPageSize int `yaml:"max_page_size,omitempty"`

	// ExpectError names the class of error the run must fail with.
	// Empty means the run must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions are evaluated against the database after the run.
	Assertions []Assertion `yaml:"assertions"`

	// RunID fixes the run identifier. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// Endpoint is one resource collection of the fake Datatracker.
type Endpoint struct {
	Ordering []string                  `yaml:"ordering,omitempty"`
	Fields   map[string]testutil.Field `yaml:"fields"`
	Objects  []map[string]any          `yaml:"objects,omitempty"`
}

// Assertion checks one property of the mirrored database.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	Table  string `yaml:"table"`
	Column string `yaml:"column,omitempty"`

	// Where selects a single row (row). All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect is the column type (column_type), the referenced
	// "table.column" (foreign_key) or a map of column values (row).
	Expect any `yaml:"expect,omitempty"`

	// Count is the expected number of rows (row_count) or of foreign keys
	// (foreign_key_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTableExists  = "table_exists"
	AssertTableAbsent  = "table_absent"
	AssertColumnType   = "column_type"
	AssertColumnAbsent = "column_absent"
	AssertForeignKey   = "foreign_key"
	AssertForeignKeys  = "foreign_key_count"
	AssertRowCount     = "row_count"
	AssertRow          = "row"
)

var assertionTypes = []string{
	AssertTableExists, AssertTableAbsent, AssertColumnType, AssertColumnAbsent,
	AssertForeignKey, AssertForeignKeys, AssertRowCount, AssertRow,
}

// Error classes a scenario can expect.
const (
	ErrorConfiguration = "configuration"
	ErrorTransport     = "transport"
	ErrorInference     = "inference"
	ErrorResourcePath  = "resource_path"
)

var errorClasses = []string{ErrorConfiguration, ErrorTransport, ErrorInference, ErrorResourcePath}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.MirrorTable == "" {
		return fmt.Errorf("mirror_table is required")
	}

	if len(s.Endpoints) == 0 {
		return fmt.Errorf("endpoints map is required and must be non-empty")
	}

	if s.ExpectError != "" && !slices.Contains(errorClasses, s.ExpectError) {
		return fmt.Errorf("expect_error %q must be one of %v", s.ExpectError, errorClasses)
	}

	for i, a := range s.Assertions {
		if !slices.Contains(assertionTypes, a.Type) {
			return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
		}
		if a.Table == "" {
			return fmt.Errorf("assertion %d: table is required", i)
		}
		switch a.Type {
		case AssertColumnType, AssertColumnAbsent, AssertForeignKey:
			if a.Column == "" {
				return fmt.Errorf("assertion %d: column is required for %s", i, a.Type)
			}
		case AssertRow:
			if len(a.Where) == 0 {
				return fmt.Errorf("assertion %d: where is required for %s", i, a.Type)
			}
			if _, ok := a.Expect.(map[string]any); !ok {
				return fmt.Errorf("assertion %d: expect must be a map for %s", i, a.Type)
			}
		}
		switch a.Type {
		case AssertColumnType, AssertForeignKey:
			if _, ok := a.Expect.(string); !ok {
				return fmt.Errorf("assertion %d: expect must be a string for %s", i, a.Type)
			}
		}
	}

	return nil
}
