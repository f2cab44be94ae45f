package report

import (
	"strconv"
	"strings"
	"time"
)

// Value is one typed field value.
type Value struct {
	Type string
	Text string
}

// Model is a decoded data model such as a Chat, Call or Cookie. Child models
// are reached through Child and Children.
type Model struct {
	Type     string
	ID       string
	Deleted  bool
	fields   map[string]Value
	lists    map[string][]string
	children map[string][]*Model
}

// NewModel returns an empty model of the given type.
func NewModel(modelType string) *Model {
	return &Model{
		Type:     modelType,
		fields:   make(map[string]Value),
		lists:    make(map[string][]string),
		children: make(map[string][]*Model),
	}
}

// SetField stores a scalar field.
func (m *Model) SetField(name string, v Value) { m.fields[name] = v }

// AddListValue appends to a multi-valued field.
func (m *Model) AddListValue(name, value string) { m.lists[name] = append(m.lists[name], value) }

// AddChild appends a child model under name.
func (m *Model) AddChild(name string, child *Model) {
	m.children[name] = append(m.children[name], child)
}

// Field returns the trimmed text of a scalar field, or "".
func (m *Model) Field(name string) string {
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m.fields[name].Text)
}

// Has reports whether a scalar field is present.
func (m *Model) Has(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.fields[name]
	return ok
}

// List returns the values of a multi-valued field.
func (m *Model) List(name string) []string {
	if m == nil {
		return nil
	}
	return m.lists[name]
}

// Child returns the first child model under name.
func (m *Model) Child(name string) *Model {
	if m == nil || len(m.children[name]) == 0 {
		return nil
	}
	return m.children[name][0]
}

// Children returns all child models under name.
func (m *Model) Children(name string) []*Model {
	if m == nil {
		return nil
	}
	return m.children[name]
}

// Time parses a timestamp field. Missing or malformed values report false.
func (m *Model) Time(name string) (time.Time, bool) {
	return ParseTime(m.Field(name))
}

// Int parses an integer field.
func (m *Model) Int(name string) (int64, bool) {
	v, err := strconv.ParseInt(m.Field(name), 10, 64)
	return v, err == nil
}

// Bool parses a boolean field.
func (m *Model) Bool(name string) bool {
	v, _ := strconv.ParseBool(m.Field(name))
	return v
}

// Duration parses a HH:MM:SS or seconds field into whole seconds.
func (m *Model) Duration(name string) (int64, bool) {
	return ParseDuration(m.Field(name))
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
}

// ParseTime parses the timestamp forms reports use. Values without a zone
// are taken as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseDuration parses "HH:MM:SS", "MM:SS" or a plain number of seconds.
func ParseDuration(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if !strings.Contains(s, ":") {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			return 0, false
		}
		return int64(v), true
	}
	var total int64
	for _, part := range strings.Split(s, ":") {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 {
			return 0, false
		}
		total = total*60 + int64(v)
	}
	return total, true
}
