package evidence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"forager/internal/markup"
)

var (
	// ErrUnknownType reports an evidence type with no registered schema.
	ErrUnknownType = errors.New("unknown evidence type")
	// ErrUnknownAttribute reports an attribute outside the type's schema.
	ErrUnknownAttribute = errors.New("unknown attribute")
	// ErrKindMismatch reports a value whose kind does not match the schema.
	ErrKindMismatch = errors.New("attribute kind mismatch")
)

// Record is one Evidence Record.
type Record struct {
	ID        int64
	ItemID    int64
	Type      string
	CreatedAt time.Time
	Metadata  *Metadata

	schema Schema
	attrs  map[string]any
	tags   map[string]struct{}
}

// NewRecord returns an empty record of evidenceType.
func NewRecord(evidenceType string) (*Record, error) {
	schema, ok := Lookup(evidenceType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, evidenceType)
	}
	return &Record{
		Type:     evidenceType,
		Metadata: NewMetadata(),
		schema:   schema,
		attrs:    make(map[string]any),
		tags:     make(map[string]struct{}),
	}, nil
}

// Schema returns the schema of the record's type.
func (r *Record) Schema() Schema { return r.schema }

// Set validates value against the schema and stores it. Zero time values
// are ignored so that decoders can set optional timestamps unconditionally.
func (r *Record) Set(name string, value any) error {
	field, ok := r.schema.Field(name)
	if !ok {
		return fmt.Errorf("%s.%s: %w", r.Type, name, ErrUnknownAttribute)
	}
	normalized, err := coerce(field.Kind, value)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", r.Type, name, err)
	}
	if normalized == nil {
		delete(r.attrs, name)
		return nil
	}
	r.attrs[name] = normalized
	return nil
}

// SetAll sets every attribute in values, stopping at the first error.
func (r *Record) SetAll(values map[string]any) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.Set(name, values[name]); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the raw attribute value.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.attrs[name]
	return v, ok
}

// String returns a string attribute or "".
func (r *Record) String(name string) string {
	s, _ := r.attrs[name].(string)
	return s
}

// Int returns an int attribute or 0.
func (r *Record) Int(name string) int64 {
	i, _ := r.attrs[name].(int64)
	return i
}

// Bool returns a bool attribute or false.
func (r *Record) Bool(name string) bool {
	b, _ := r.attrs[name].(bool)
	return b
}

// Time returns a time attribute or the zero time.
func (r *Record) Time(name string) time.Time {
	t, _ := r.attrs[name].(time.Time)
	return t
}

// Strings returns a string list attribute.
func (r *Record) Strings(name string) []string {
	s, _ := r.attrs[name].([]string)
	return s
}

// RichText returns a rich-text attribute.
func (r *Record) RichText(name string) []markup.Element {
	e, _ := r.attrs[name].([]markup.Element)
	return e
}

// Names returns the set attribute names in schema order.
func (r *Record) Names() []string {
	out := make([]string, 0, len(r.attrs))
	for _, f := range r.schema.Fields {
		if _, ok := r.attrs[f.Name]; ok {
			out = append(out, f.Name)
		}
	}
	return out
}

// AddTag attaches tag. Adding a tag twice has no effect.
func (r *Record) AddTag(tag string) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return
	}
	if r.tags == nil {
		r.tags = make(map[string]struct{})
	}
	r.tags[tag] = struct{}{}
}

// HasTag reports whether tag is attached.
func (r *Record) HasTag(tag string) bool {
	_, ok := r.tags[tag]
	return ok
}

// Tags returns the attached tags, sorted.
func (r *Record) Tags() []string {
	out := make([]string, 0, len(r.tags))
	for t := range r.tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// MarshalAttrs encodes the attributes as a JSON object.
func (r *Record) MarshalAttrs() ([]byte, error) {
	out := make(map[string]any, len(r.attrs))
	for name, v := range r.attrs {
		if t, ok := v.(time.Time); ok {
			out[name] = t.UTC().Format(time.RFC3339Nano)
			continue
		}
		out[name] = v
	}
	return json.Marshal(out)
}

// UnmarshalAttrs decodes the output of MarshalAttrs, restoring each
// attribute's schema kind.
func (r *Record) UnmarshalAttrs(data []byte) error {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode attributes: %w", err)
	}
	if r.attrs == nil {
		r.attrs = make(map[string]any, len(raw))
	}
	for name, msg := range raw {
		field, ok := r.schema.Field(name)
		if !ok {
			return fmt.Errorf("%s.%s: %w", r.Type, name, ErrUnknownAttribute)
		}
		value, err := decodeValue(field.Kind, msg)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", r.Type, name, err)
		}
		r.attrs[name] = value
	}
	return nil
}

// Equal reports whether two records carry the same content, ignoring
// identifiers and creation time.
func Equal(a, b *Record) bool {
	return Fingerprint(a) == Fingerprint(b)
}

// Fingerprint renders the content of a record as a stable string.
func Fingerprint(r *Record) string {
	attrs, _ := r.MarshalAttrs()
	meta, _ := json.Marshal(r.Metadata)
	return r.Type + "|" + string(attrs) + "|" + string(meta) + "|" + strings.Join(r.Tags(), ",")
}

func coerce(kind Kind, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch kind {
	case KindString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case KindInt:
		switch v := value.(type) {
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		case uint16:
			return int64(v), nil
		case uint32:
			return int64(v), nil
		case uint64:
			return int64(v), nil
		}
	case KindTime:
		if t, ok := value.(time.Time); ok {
			if t.IsZero() {
				return nil, nil
			}
			return t.UTC(), nil
		}
	case KindBool:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case KindStrings:
		if s, ok := value.([]string); ok {
			return append([]string(nil), s...), nil
		}
	case KindRichText:
		if e, ok := value.([]markup.Element); ok {
			return append([]markup.Element(nil), e...), nil
		}
		if e, ok := value.(markup.Elements); ok {
			return append([]markup.Element(nil), e...), nil
		}
	}
	return nil, fmt.Errorf("%w: want %s, got %T", ErrKindMismatch, kind, value)
}

func decodeValue(kind Kind, msg json.RawMessage) (any, error) {
	switch kind {
	case KindString:
		var s string
		err := json.Unmarshal(msg, &s)
		return s, err
	case KindInt:
		var n json.Number
		if err := json.Unmarshal(msg, &n); err != nil {
			return nil, err
		}
		return n.Int64()
	case KindTime:
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return nil, err
		}
		return time.Parse(time.RFC3339Nano, s)
	case KindBool:
		var b bool
		err := json.Unmarshal(msg, &b)
		return b, err
	case KindStrings:
		var s []string
		err := json.Unmarshal(msg, &s)
		return s, err
	case KindRichText:
		var e []markup.Element
		err := json.Unmarshal(msg, &e)
		return e, err
	default:
		return nil, fmt.Errorf("%w: kind %s", ErrKindMismatch, kind)
	}
}
