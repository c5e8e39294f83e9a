// Package datatracker is a read-only client for the IETF Datatracker REST API.
//
// The API is self-describing:
//   - GET /api/v1/ lists categories, each category lists model endpoints.
//   - GET <endpoint>schema/ describes the fields of a model.
//   - GET <endpoint>?limit=N[&order_by=F] returns {meta, objects}, where
//     meta.next is the URI of the following page or null on the last one.
//
// Any non-2xx response is a TransportError. The client does not retry.
package datatracker
