package tagfmt

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Encode writes t. Id tags use the compact form with the high bit set on
// the type byte.
func Encode(w io.Writer, t Tag) error {
	return encode(w, t, true)
}

// EncodeLegacy writes t using a two-byte name length for id tags, as older
// files do.
func EncodeLegacy(w io.Writer, t Tag) error {
	return encode(w, t, false)
}

func encode(w io.Writer, t Tag, compact bool) error {
	var buf []byte
	switch {
	case t.Named:
		if len(t.Name) == 1 || len(t.Name) > math.MaxUint16 {
			return fmt.Errorf("tag name %q: length %d cannot be encoded", t.Name, len(t.Name))
		}
		buf = append(buf, byte(t.Type))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(t.Name)))
		buf = append(buf, t.Name...)
	case compact:
		if t.Type > 0x7f {
			return fmt.Errorf("tag type 0x%02x cannot be encoded compactly", uint8(t.Type))
		}
		buf = append(buf, byte(t.Type)|0x80, t.ID)
	default:
		buf = append(buf, byte(t.Type))
		buf = binary.LittleEndian.AppendUint16(buf, 1)
		buf = append(buf, t.ID)
	}

	payload, err := encodeValue(t)
	if err != nil {
		return fmt.Errorf("tag %s: %w", t.Key(), err)
	}
	buf = append(buf, payload...)
	_, err = w.Write(buf)
	return err
}

func encodeValue(t Tag) ([]byte, error) {
	mismatch := func() error {
		return fmt.Errorf("value %T does not match type %s", t.Value, t.Type)
	}
	switch t.Type {
	case TypeHash16:
		b, ok := t.Value.([]byte)
		if !ok || len(b) != HashSize {
			return nil, mismatch()
		}
		return b, nil
	case TypeString:
		s, ok := t.Value.(string)
		if !ok || len(s) > math.MaxUint16 {
			return nil, mismatch()
		}
		return append(binary.LittleEndian.AppendUint16(nil, uint16(len(s))), s...), nil
	case TypeUint32:
		v, ok := t.Value.(uint32)
		if !ok {
			return nil, mismatch()
		}
		return binary.LittleEndian.AppendUint32(nil, v), nil
	case TypeUint16:
		v, ok := t.Value.(uint32)
		if !ok || v > math.MaxUint16 {
			return nil, mismatch()
		}
		return binary.LittleEndian.AppendUint16(nil, uint16(v)), nil
	case TypeUint8:
		v, ok := t.Value.(uint32)
		if !ok || v > math.MaxUint8 {
			return nil, mismatch()
		}
		return []byte{byte(v)}, nil
	case TypeUint64:
		v, ok := t.Value.(uint64)
		if !ok {
			return nil, mismatch()
		}
		return binary.LittleEndian.AppendUint64(nil, v), nil
	case TypeFloat32:
		v, ok := t.Value.(float32)
		if !ok {
			return nil, mismatch()
		}
		return binary.LittleEndian.AppendUint32(nil, math.Float32bits(v)), nil
	case TypeBool:
		v, _ := t.Value.(bool)
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case TypeBoolArray:
		bits, ok := t.Value.([]bool)
		if !ok || len(bits) > math.MaxUint16 {
			return nil, mismatch()
		}
		out := binary.LittleEndian.AppendUint16(nil, uint16(len(bits)))
		packed := make([]byte, (len(bits)+7)/8)
		for i, bit := range bits {
			if bit {
				packed[i/8] |= 1 << (i % 8)
			}
		}
		return append(out, packed...), nil
	case TypeBlob:
		b, ok := t.Value.([]byte)
		if !ok {
			return nil, mismatch()
		}
		return append(binary.LittleEndian.AppendUint32(nil, uint32(len(b))), b...), nil
	case TypeBSOB:
		b, ok := t.Value.([]byte)
		if !ok || len(b) > math.MaxUint8 {
			return nil, mismatch()
		}
		return append([]byte{byte(len(b))}, b...), nil
	}
	if t.Type.IsShortString() {
		s, ok := t.Value.(string)
		if !ok || len(s) != int(t.Type-TypeStr1)+1 {
			return nil, mismatch()
		}
		return []byte(s), nil
	}
	return nil, fmt.Errorf("unsupported type %s", t.Type)
}
