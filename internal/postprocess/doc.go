// Package postprocess derives evidence from evidence the loaders already
// stored.
//
// Each post-processor reads the persisted records of one evidence type and
// writes records of another type (or, for kff-alert, tags on existing
// records) in a single transaction. Derivation is table driven: cookie
// rules are keyed by cookie domain and name, search rules by URL host and
// query parameter. A record that fails to derive is logged and skipped so
// that one malformed value never costs the rest of the batch.
//
// Post-processors only read loader output, never each other's, so their
// order does not change the resulting evidence set.
package postprocess
