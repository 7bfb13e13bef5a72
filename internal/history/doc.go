// Package history records batch runs in a SQLite database under the state
// directory.
//
// Each run gets a UUID, a status (succeeded, failed, or empty), counters, the
// first error message when one occurred, and one row per artifact written.
// The schema is versioned; a database created by an incompatible build is
// reported with ErrSchemaMismatch rather than migrated in place.
package history
