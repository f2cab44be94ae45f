package emule

import (
	_ "embed"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"time"

	"forager/internal/bincursor"
	"forager/internal/evidence"
	"forager/internal/logging"
	"forager/internal/tagfmt"
)

//go:embed fields.yaml
var fieldsYAML []byte

// Header bytes of met files.
const (
	headerMet       = 0x0E
	headerMetLarge  = 0x0F
	headerPart      = 0xE0
	headerPartLarge = 0xE2
)

// maxMetBytes caps how much of a met file is read into memory.
const maxMetBytes = 256 << 20

// maxEntries rejects entry counts no real catalogue reaches.
const maxEntries = 1 << 20

// KnownFile is one entry of known.met or the body of a part.met file.
type KnownFile struct {
	Modified    time.Time
	Hash        []byte
	PartHashes  [][]byte
	Name        string
	PartName    string
	Size        uint64
	LastShared  time.Time
	Requests    uint32
	Accepted    uint32
	Transferred uint64
	// Metadata holds every decoded tag, mapped through the field table.
	Metadata *evidence.Metadata
}

// HashHex returns the ed2k hash in lowercase hex.
func (k KnownFile) HashHex() string { return hex.EncodeToString(k.Hash) }

// Decoder decodes met files. It keeps tag decoding state across files so
// unknown tag types are reported once per Decoder.
type Decoder struct {
	logger *slog.Logger
	tags   *tagfmt.Decoder
	fields *tagfmt.FieldTable
}

// NewDecoder returns a decoder logging to logger.
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Decoder{
		logger: logger,
		tags:   tagfmt.NewDecoder(logger),
		fields: tagfmt.MustParseFieldTable(fieldsYAML),
	}
}

// DecodeKnownMet decodes a known.met catalogue. A truncated file yields the
// entries decoded before the damage together with the error.
func (d *Decoder) DecodeKnownMet(r io.Reader) ([]KnownFile, error) {
	c, err := bincursor.FromReader(r, maxMetBytes)
	if err != nil {
		return nil, fmt.Errorf("read known.met: %w", err)
	}
	header, err := c.Uint8()
	if err != nil {
		return nil, fmt.Errorf("known.met header: %w", err)
	}
	if header != headerMet && header != headerMetLarge {
		return nil, fmt.Errorf("known.met: unsupported header 0x%02x", header)
	}
	count, err := c.Uint32()
	if err != nil {
		return nil, fmt.Errorf("known.met entry count: %w", err)
	}
	if count > maxEntries {
		return nil, fmt.Errorf("known.met: implausible entry count %d", count)
	}

	files := make([]KnownFile, 0, count)
	for i := uint32(0); i < count; i++ {
		start := c.Tell()
		entry, err := d.decodeEntry(c)
		if err != nil {
			d.logger.Debug("known.met entry decode failed",
				logging.Int("entry", int(i)),
				logging.Int("offset", start),
				logging.HexDump("bytes", c.Peek(64), 64),
			)
			return files, fmt.Errorf("known.met entry %d of %d: %w", i+1, count, err)
		}
		files = append(files, entry)
	}
	return files, nil
}

// DecodePartMet decodes the state file of one download.
func (d *Decoder) DecodePartMet(r io.Reader) (KnownFile, error) {
	c, err := bincursor.FromReader(r, maxMetBytes)
	if err != nil {
		return KnownFile{}, fmt.Errorf("read part.met: %w", err)
	}
	header, err := c.Uint8()
	if err != nil {
		return KnownFile{}, fmt.Errorf("part.met header: %w", err)
	}
	switch header {
	case headerPart, headerPartLarge, headerMet, headerMetLarge:
	default:
		return KnownFile{}, fmt.Errorf("part.met: unsupported header 0x%02x", header)
	}
	entry, err := d.decodeEntry(c)
	if err != nil {
		return KnownFile{}, fmt.Errorf("part.met: %w", err)
	}
	return entry, nil
}

func (d *Decoder) decodeEntry(c *bincursor.Cursor) (KnownFile, error) {
	var k KnownFile
	var err error
	if k.Modified, err = c.UnixTime(); err != nil {
		return k, fmt.Errorf("modification date: %w", err)
	}
	if k.Hash, err = c.Bytes(tagfmt.HashSize); err != nil {
		return k, fmt.Errorf("file hash: %w", err)
	}
	parts, err := c.Uint16()
	if err != nil {
		return k, fmt.Errorf("part hash count: %w", err)
	}
	for i := 0; i < int(parts); i++ {
		h, err := c.Bytes(tagfmt.HashSize)
		if err != nil {
			return k, fmt.Errorf("part hash %d: %w", i, err)
		}
		k.PartHashes = append(k.PartHashes, h)
	}
	tagCount, err := c.Uint32()
	if err != nil {
		return k, fmt.Errorf("tag count: %w", err)
	}
	if tagCount > uint32(c.Remaining()) {
		return k, fmt.Errorf("tag count %d exceeds remaining %d bytes: %w", tagCount, c.Remaining(), bincursor.ErrShortRead)
	}
	tags, err := d.tags.DecodeList(c, int(tagCount))
	if err != nil {
		return k, err
	}
	k.apply(tags, tagfmt.Assemble(tags, d.fields))
	return k, nil
}

func (k *KnownFile) apply(tags []tagfmt.Tag, meta *evidence.Metadata) {
	k.Metadata = meta
	var sizeLo, sizeHi, xferLo, xferHi uint64
	for _, tag := range tags {
		if tag.Named {
			continue
		}
		switch tag.ID {
		case 0x01:
			if s, ok := tag.Str(); ok {
				k.Name = tagfmt.RepairUTF8(s)
			}
		case 0x12:
			if s, ok := tag.Str(); ok {
				k.PartName = tagfmt.RepairUTF8(s)
			}
		case 0x02:
			sizeLo, _ = tag.Uint()
		case 0x3A:
			sizeHi, _ = tag.Uint()
		case 0x34:
			if v, ok := tag.Uint(); ok {
				k.LastShared = bincursor.UnixSeconds(int64(v))
			}
		case 0x51:
			if v, ok := tag.Uint(); ok {
				k.Requests = uint32(v)
			}
		case 0x52:
			if v, ok := tag.Uint(); ok {
				k.Accepted = uint32(v)
			}
		case 0x50:
			xferLo, _ = tag.Uint()
		case 0x54:
			xferHi, _ = tag.Uint()
		}
	}
	k.Size = combine(sizeLo, sizeHi)
	k.Transferred = combine(xferLo, xferHi)
}

// combine joins a value split into low and high 32-bit tags. A low value
// that is already 64 bits wide wins.
func combine(lo, hi uint64) uint64 {
	if lo > 0xFFFFFFFF {
		return lo
	}
	return hi<<32 | lo
}

// UnknownTagTypes returns how many distinct unknown tag types were seen.
func (d *Decoder) UnknownTagTypes() int { return d.tags.UnknownTypes() }
