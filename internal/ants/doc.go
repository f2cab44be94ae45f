// Package ants implements the loading phase of an extraction run.
//
// An ant handles one artifact family. Volume ants search the volume index
// for their files, decode each one into intermediate structs, map those to
// evidence records and write all of them in a single transaction. A file
// that fails to decode is logged with a hex dump of its head and skipped;
// only failures that make the evidence set unreliable (an unreadable
// volume, a failed write) are returned.
//
// The report ant streams a structured extraction report instead and maps
// its data models onto the same evidence types.
package ants
