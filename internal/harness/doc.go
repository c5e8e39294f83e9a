// Package harness runs end-to-end mirror scenarios.
//
// A scenario describes a small Datatracker: the endpoints it serves, their
// field schemas, the objects behind them and the mirror table to apply. The
// harness serves that Datatracker over HTTP, mirrors it into a fresh SQLite
// file and then evaluates the scenario's assertions against the result.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: to_one_integer_key
//	description: "A to-one reference stores the target's integer key"
//	mirror_table: |
//	  endpoints: {
//	    "/api/v1/doc/state/":    {mirror: true, uri_col: "id"}
//	    "/api/v1/doc/document/": {mirror: true, uri_col: "name"}
//	  }
//	endpoints:
//	  /api/v1/doc/state/:
//	    ordering: [id]
//	    fields:
//	      id: {type: integer, unique: true, primary_key: true}
//	    objects:
//	      - {id: 5}
//	assertions:
//	  - type: column_type
//	    table: ietf_dt_doc_document
//	    column: state
//	    expect: INTEGER
//	  - type: row
//	    table: ietf_dt_doc_document
//	    where: {name: rfc9000}
//	    expect: {state: 5}
//
// # Assertion Types
//
//   - table_exists, table_absent: the named table is (not) in the database
//   - column_type: the declared SQLite type of a column
//   - column_absent: the column was not materialized
//   - foreign_key: a column references another table's column
//   - foreign_key_count: the number of foreign keys a table declares
//   - row_count: the number of rows in a table
//   - row: exactly one row matches where, and it carries the expected values
//
// A scenario that sets expect_error must fail with that class of error
// (configuration, transport, inference or resource_path). Its assertions
// still run, so it can check what the failed run left behind.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/to_one.yaml")
//	require.NoError(t, err)
//	result, err := harness.Run(t, scenario)
//	require.NoError(t, err)
//	assert.True(t, result.Pass, result.Errors)
package harness
