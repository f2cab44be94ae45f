package tagfmt

import (
	"fmt"
	"log/slog"

	"forager/internal/bincursor"
	"forager/internal/logging"
)

// hexDumpLimit bounds the bytes attached to unknown-type reports.
const hexDumpLimit = 64

// Decoder reads tags from a cursor. It owns the set of unknown types it has
// already reported, so one Decoder should be shared per extraction unit.
type Decoder struct {
	logger  *slog.Logger
	unknown logging.OnceSet
}

// NewDecoder returns a decoder logging to logger.
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Decoder{logger: logger}
}

// Decode reads one tag. Errors are only returned for truncated input.
func (d *Decoder) Decode(c *bincursor.Cursor) (Tag, error) {
	start := c.Tell()
	control, err := c.Uint8()
	if err != nil {
		return Tag{}, fmt.Errorf("tag control byte: %w", err)
	}

	var tag Tag
	if control&0x80 != 0 {
		tag.Type = Type(control & 0x7f)
		id, err := c.Uint8()
		if err != nil {
			return Tag{}, fmt.Errorf("tag id: %w", err)
		}
		tag.ID = id
	} else {
		tag.Type = Type(control)
		length, err := c.Uint16()
		if err != nil {
			return Tag{}, fmt.Errorf("tag name length: %w", err)
		}
		if length == 1 {
			id, err := c.Uint8()
			if err != nil {
				return Tag{}, fmt.Errorf("tag id: %w", err)
			}
			tag.ID = id
		} else {
			name, err := c.String(int(length))
			if err != nil {
				return Tag{}, fmt.Errorf("tag name: %w", err)
			}
			tag.Name = name
			tag.Named = true
		}
	}

	if err := d.decodeValue(c, &tag, start); err != nil {
		return Tag{}, fmt.Errorf("tag %s (%s): %w", tag.Key(), tag.Type, err)
	}
	return tag, nil
}

func (d *Decoder) decodeValue(c *bincursor.Cursor, tag *Tag, start int) error {
	switch tag.Type {
	case TypeHash16:
		b, err := c.Bytes(HashSize)
		if err != nil {
			return err
		}
		tag.Value = b
	case TypeString:
		n, err := c.Uint16()
		if err != nil {
			return err
		}
		s, err := c.String(int(n))
		if err != nil {
			return err
		}
		tag.Value = s
	case TypeUint32:
		v, err := c.Uint32()
		if err != nil {
			return err
		}
		tag.Value = v
	case TypeFloat32:
		v, err := c.Float32()
		if err != nil {
			return err
		}
		tag.Value = v
	case TypeBool:
		if err := c.Skip(1); err != nil {
			return err
		}
	case TypeBoolArray:
		bits, err := c.Uint16()
		if err != nil {
			return err
		}
		if err := c.Skip((int(bits) + 7) / 8); err != nil {
			return err
		}
	case TypeBlob:
		n, err := c.Uint32()
		if err != nil {
			return err
		}
		if uint64(n) > uint64(c.Remaining()) {
			return fmt.Errorf("blob of %d bytes exceeds remaining %d: %w", n, c.Remaining(), bincursor.ErrShortRead)
		}
		b, err := c.Bytes(int(n))
		if err != nil {
			return err
		}
		tag.Value = b
	case TypeUint16:
		v, err := c.Uint16()
		if err != nil {
			return err
		}
		tag.Type = TypeUint32
		tag.Value = uint32(v)
	case TypeUint8:
		v, err := c.Uint8()
		if err != nil {
			return err
		}
		tag.Type = TypeUint32
		tag.Value = uint32(v)
	case TypeBSOB:
		n, err := c.Uint8()
		if err != nil {
			return err
		}
		b, err := c.Bytes(int(n))
		if err != nil {
			return err
		}
		tag.Value = b
	case TypeUint64:
		v, err := c.Uint64()
		if err != nil {
			return err
		}
		tag.Value = v
	default:
		if !tag.Type.IsShortString() {
			d.unknown.Warn(d.logger, fmt.Sprintf("0x%02x", uint8(tag.Type)), "unknown tag type",
				logging.String("tag_type", tag.Type.String()),
				logging.String("tag_key", tag.Key()),
				logging.Int("offset", start),
				logging.HexDump("bytes", c.Peek(hexDumpLimit), hexDumpLimit),
			)
			return nil
		}
		s, err := c.String(int(tag.Type-TypeStr1) + 1)
		if err != nil {
			return err
		}
		tag.Type = TypeString
		tag.Value = s
	}
	return nil
}

// DecodeList reads count consecutive tags.
func (d *Decoder) DecodeList(c *bincursor.Cursor, count int) ([]Tag, error) {
	if count < 0 {
		return nil, fmt.Errorf("negative tag count %d", count)
	}
	tags := make([]Tag, 0, min(count, 256))
	for i := 0; i < count; i++ {
		tag, err := d.Decode(c)
		if err != nil {
			return tags, fmt.Errorf("tag %d of %d: %w", i+1, count, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// UnknownTypes returns how many distinct unknown tag types were reported.
func (d *Decoder) UnknownTypes() int { return d.unknown.Len() }
