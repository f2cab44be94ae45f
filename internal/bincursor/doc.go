// Package bincursor provides a sequential little-endian reader over an
// in-memory byte buffer, used by the binary artifact decoders.
package bincursor
