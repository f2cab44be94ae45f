package tagfmt

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"gopkg.in/yaml.v3"

	"forager/internal/evidence"
)

// Coercion converts a raw tag value into its presentation form.
type Coercion string

const (
	CoerceNone Coercion = ""
	// CoerceDate renders Unix seconds as an RFC 3339 UTC timestamp.
	CoerceDate Coercion = "date"
	// CoerceDuration renders seconds as HH:MM:SS.
	CoerceDuration Coercion = "duration"
	// CoerceHex renders bytes as lowercase hex.
	CoerceHex Coercion = "hex"
	// CoerceUTF8 repairs strings that are not valid UTF-8 by reading them as
	// Windows-1252.
	CoerceUTF8 Coercion = "utf8"
)

func (c Coercion) valid() bool {
	switch c {
	case CoerceNone, CoerceDate, CoerceDuration, CoerceHex, CoerceUTF8:
		return true
	}
	return false
}

// Field maps a tag identifier to a metadata name.
type Field struct {
	Name   string
	Coerce Coercion
}

// FieldTable maps tag ids and names to fields.
type FieldTable struct {
	ids   map[uint8]Field
	names map[string]Field
}

type fieldTableFile struct {
	Fields []struct {
		ID     *int     `yaml:"id"`
		Tag    string   `yaml:"tag"`
		Name   string   `yaml:"name"`
		Coerce Coercion `yaml:"coerce"`
	} `yaml:"fields"`
}

// ParseFieldTable reads a table from YAML of the form
//
//	fields:
//	  - {id: 0x01, name: filename, coerce: utf8}
//	  - {tag: "FT_KADLASTPUBLISHNOTES", name: kad_last_publish_notes, coerce: date}
func ParseFieldTable(data []byte) (*FieldTable, error) {
	var file fieldTableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse field table: %w", err)
	}
	table := &FieldTable{ids: make(map[uint8]Field), names: make(map[string]Field)}
	for i, entry := range file.Fields {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("field table entry %d: name is required", i)
		}
		if !entry.Coerce.valid() {
			return nil, fmt.Errorf("field table entry %d (%s): unknown coercion %q", i, name, entry.Coerce)
		}
		field := Field{Name: name, Coerce: entry.Coerce}
		switch {
		case entry.ID != nil && entry.Tag == "":
			if *entry.ID < 0 || *entry.ID > 0xff {
				return nil, fmt.Errorf("field table entry %d (%s): id %d out of range", i, name, *entry.ID)
			}
			id := uint8(*entry.ID)
			if _, dup := table.ids[id]; dup {
				return nil, fmt.Errorf("field table entry %d (%s): duplicate id 0x%02x", i, name, id)
			}
			table.ids[id] = field
		case entry.ID == nil && entry.Tag != "":
			if _, dup := table.names[entry.Tag]; dup {
				return nil, fmt.Errorf("field table entry %d (%s): duplicate tag %q", i, name, entry.Tag)
			}
			table.names[entry.Tag] = field
		default:
			return nil, fmt.Errorf("field table entry %d (%s): exactly one of id and tag is required", i, name)
		}
	}
	return table, nil
}

// MustParseFieldTable is ParseFieldTable for embedded tables.
func MustParseFieldTable(data []byte) *FieldTable {
	table, err := ParseFieldTable(data)
	if err != nil {
		panic(err)
	}
	return table
}

// Lookup returns the field of tag.
func (ft *FieldTable) Lookup(tag Tag) (Field, bool) {
	if ft == nil {
		return Field{}, false
	}
	if tag.Named {
		f, ok := ft.names[tag.Name]
		return f, ok
	}
	f, ok := ft.ids[tag.ID]
	return f, ok
}

// MiscPrefix prefixes the metadata keys of unmapped tags.
const MiscPrefix = "misc."

// Assemble converts tags into metadata in tag order. Mapped tags are stored
// under their field name after coercion; unmapped tags are kept under
// misc.<key>. Tags without a value are skipped.
func Assemble(tags []Tag, table *FieldTable) *evidence.Metadata {
	meta := evidence.NewMetadata()
	for _, tag := range tags {
		if tag.Value == nil {
			continue
		}
		field, ok := table.Lookup(tag)
		if !ok {
			meta.Set(MiscPrefix+tag.Key(), plainValue(tag.Value))
			continue
		}
		meta.Set(field.Name, Apply(field.Coerce, tag.Value))
	}
	return meta
}

// Apply converts value according to c. Values of an unexpected kind are
// returned in their plain form.
func Apply(c Coercion, value any) any {
	switch c {
	case CoerceDate:
		if secs, ok := unsigned(value); ok {
			if secs == 0 {
				return ""
			}
			return time.Unix(int64(secs), 0).UTC().Format(time.RFC3339)
		}
	case CoerceDuration:
		if secs, ok := unsigned(value); ok {
			return FormatDuration(secs)
		}
	case CoerceHex:
		if b, ok := value.([]byte); ok {
			return hex.EncodeToString(b)
		}
	case CoerceUTF8:
		if s, ok := value.(string); ok {
			return RepairUTF8(s)
		}
	}
	return plainValue(value)
}

// FormatDuration renders seconds as HH:MM:SS. Hours are not wrapped at 24.
func FormatDuration(secs uint64) string {
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

// RepairUTF8 returns s unchanged when it is valid UTF-8 and otherwise
// decodes it as Windows-1252.
func RepairUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	out, err := charmap.Windows1252.NewDecoder().String(s)
	if err != nil {
		return strings.ToValidUTF8(s, "�")
	}
	return out
}

func unsigned(value any) (uint64, bool) {
	switch v := value.(type) {
	case uint32:
		return uint64(v), true
	case uint64:
		return v, true
	}
	return 0, false
}

func plainValue(value any) any {
	switch v := value.(type) {
	case []byte:
		return hex.EncodeToString(v)
	case uint32:
		return int64(v)
	case uint64:
		if v > 1<<63-1 {
			return fmt.Sprint(v)
		}
		return int64(v)
	case float32:
		return float64(v)
	case string:
		return RepairUTF8(v)
	}
	return value
}
