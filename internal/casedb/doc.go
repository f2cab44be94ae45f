// Package casedb persists case items and their Evidence Records in SQLite
// and implements the evidence.Item and evidence.Tx contract on top of it.
//
// The Store owns the database handle, schema initialization, and item
// bookkeeping (datasource and latest run marker). Item handles returned by
// Store.Item give extraction units per-item transactions; every Begin call
// starts a fresh database transaction so nothing is shared between units or
// between concurrently processed items.
//
// Schema changes bump schemaVersion in schema.go; users recreate the case
// database to adopt the new schema.
package casedb
