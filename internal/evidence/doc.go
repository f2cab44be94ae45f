// Package evidence defines the canonical Evidence Record, its per-type
// attribute schemas, and the case item contract that extraction units write
// through.
//
// Records carry a closed set of typed attributes validated against the
// schema registered for their type, an insertion-ordered metadata map for
// provenance, and a tag set used by alerting. Item and Tx describe the narrow
// persistence surface a case database must provide; internal/casedb is the
// SQLite implementation.
package evidence
