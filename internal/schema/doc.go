// Package schema turns endpoint schema documents into typed column layouts.
//
// Every column has exactly one Type:
//   - Scalar: string, integer, boolean, date, datetime or timedelta.
//   - ToOne / ToMany: a relation to another mirrored endpoint. The schema
//     document only says a field is related; which endpoint it points at is
//     learned from live data by the relations package.
//   - External: a relation to an endpoint the mirror skips.
//   - Unused: a relation no scanned record ever filled in.
//
// Any other declared type is an InferenceError. Schemas are collected in a
// Registry, which is never modified in place.
package schema
