// Package mirror drives a complete run from the live API to a SQLite file.
//
// The phases run strictly in order:
//
//  1. catalog: list every live endpoint
//  2. config: check each one against the mirror table
//  3. introspect: read the schema of each mirrored endpoint
//  4. relations: sample records to learn where relations point
//  5. compile: turn the registry into DDL and insert plans
//  6. materialize: create every table in one transaction
//  7. import: copy the records, one transaction per endpoint
//  8. vacuum
//
// The first error stops the run and is returned as a *PhaseError. Nothing is
// written to the database before the materialize phase.
package mirror
