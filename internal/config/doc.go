// Package config holds the mirror table and the runtime settings.
//
// The mirror table is CUE: it lists every endpoint the API is known to
// serve, whether it is mirrored, and which column identifies its rows. A
// default table is compiled in; a file can replace it. Runtime settings come
// from IETFDATA_* environment variables, optionally seeded from a .env file.
package config
