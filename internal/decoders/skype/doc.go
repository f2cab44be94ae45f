// Package skype reads the legacy Skype desktop profile database (main.db).
//
// The database is opened read-only. Tables that a given client version does
// not have yield no rows rather than an error, since profiles written by
// different releases carry different subsets of the schema.
package skype
