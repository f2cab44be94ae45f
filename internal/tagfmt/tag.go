package tagfmt

import "fmt"

// Type is the wire type of a tag.
type Type uint8

const (
	TypeHash16    Type = 0x01
	TypeString    Type = 0x02
	TypeUint32    Type = 0x03
	TypeFloat32   Type = 0x04
	TypeBool      Type = 0x05
	TypeBoolArray Type = 0x06
	TypeBlob      Type = 0x07
	TypeUint16    Type = 0x08
	TypeUint8     Type = 0x09
	TypeBSOB      Type = 0x0A
	TypeUint64    Type = 0x0B

	// TypeStr1 through TypeStr16 carry a string whose length is the type
	// value minus 0x10.
	TypeStr1  Type = 0x11
	TypeStr16 Type = 0x20
)

// HashSize is the length of a TypeHash16 payload.
const HashSize = 16

// ShortString returns the fixed-length string type for n bytes.
func ShortString(n int) (Type, bool) {
	if n < 1 || n > 16 {
		return 0, false
	}
	return TypeStr1 + Type(n-1), true
}

// IsShortString reports whether t is one of the fixed-length string types.
func (t Type) IsShortString() bool { return t >= TypeStr1 && t <= TypeStr16 }

func (t Type) String() string {
	switch t {
	case TypeHash16:
		return "hash16"
	case TypeString:
		return "string"
	case TypeUint32:
		return "uint32"
	case TypeFloat32:
		return "float32"
	case TypeBool:
		return "bool"
	case TypeBoolArray:
		return "boolarray"
	case TypeBlob:
		return "blob"
	case TypeUint16:
		return "uint16"
	case TypeUint8:
		return "uint8"
	case TypeBSOB:
		return "bsob"
	case TypeUint64:
		return "uint64"
	}
	if t.IsShortString() {
		return fmt.Sprintf("str%d", int(t-TypeStr1)+1)
	}
	return fmt.Sprintf("type(0x%02x)", uint8(t))
}

// Tag is one decoded (type, identifier, value) triple. Exactly one of ID and
// Name identifies the tag; Named tells which.
//
// Value holds uint32, uint64, float32, string or []byte depending on Type,
// and is nil for skipped and unknown types.
type Tag struct {
	Type  Type
	ID    uint8
	Name  string
	Named bool
	Value any
}

// IDTag builds a tag identified by a numeric id.
func IDTag(t Type, id uint8, value any) Tag {
	return Tag{Type: t, ID: id, Value: value}
}

// NameTag builds a tag identified by a name.
func NameTag(t Type, name string, value any) Tag {
	return Tag{Type: t, Name: name, Named: true, Value: value}
}

// Key returns the identifier rendered as text: the name, or the id in hex.
func (t Tag) Key() string {
	if t.Named {
		return t.Name
	}
	return fmt.Sprintf("0x%02x", t.ID)
}

// Uint returns the value as an unsigned integer.
func (t Tag) Uint() (uint64, bool) {
	switch v := t.Value.(type) {
	case uint32:
		return uint64(v), true
	case uint64:
		return v, true
	}
	return 0, false
}

// Str returns a string value.
func (t Tag) Str() (string, bool) {
	s, ok := t.Value.(string)
	return s, ok
}

// Raw returns a byte value.
func (t Tag) Raw() ([]byte, bool) {
	b, ok := t.Value.([]byte)
	return b, ok
}
