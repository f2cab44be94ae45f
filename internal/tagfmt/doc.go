// Package tagfmt decodes and encodes the self-describing tag lists used by
// eMule state files (known.met, part.met and friends).
//
// A tag is a (type, identifier, value) triple. The identifier is either a
// one-byte id or a name. Integer sub-widths decode as 32-bit integers and the
// fixed-length short string types decode as plain strings, so callers only
// see the canonical types. Unknown tag types are reported once per Decoder
// and decode with no value.
//
// FieldTable and Assemble turn a decoded tag list into ordered metadata:
// known ids map to field names with optional value coercions, and every
// unmapped tag is kept under a misc.<id> key.
package tagfmt
