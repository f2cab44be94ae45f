package evidence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Metadata is an insertion-ordered key/value map. Setting an existing key
// replaces its value in place.
type Metadata struct {
	keys   []string
	values map[string]any
}

// NewMetadata returns an empty map.
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string]any)}
}

// Set stores value under key.
func (m *Metadata) Set(key string, value any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored under key.
func (m *Metadata) Get(key string) (any, bool) {
	if m == nil || m.values == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// String returns the value under key formatted as a string, or "".
func (m *Metadata) String(key string) string {
	v, ok := m.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Delete removes key.
func (m *Metadata) Delete(key string) {
	if m == nil || m.values == nil {
		return
	}
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (m *Metadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Metadata) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Each calls fn for every entry in insertion order.
func (m *Metadata) Each(fn func(key string, value any)) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}

// Merge copies every entry of other into m, in other's order.
func (m *Metadata) Merge(other *Metadata) {
	other.Each(func(k string, v any) { m.Set(k, v) })
}

// MarshalJSON encodes the map as an array of [key, value] pairs so that
// ordering survives persistence.
func (m *Metadata) MarshalJSON() ([]byte, error) {
	pairs := make([][2]any, 0, m.Len())
	m.Each(func(k string, v any) {
		pairs = append(pairs, [2]any{k, v})
	})
	return json.Marshal(pairs)
}

// UnmarshalJSON decodes the pair-array form produced by MarshalJSON.
// Integral numbers decode as int64, others as float64.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.values = make(map[string]any)
	if len(bytes.TrimSpace(data)) == 0 || string(bytes.TrimSpace(data)) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var pairs [][]any
	if err := dec.Decode(&pairs); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	for i, pair := range pairs {
		if len(pair) != 2 {
			return fmt.Errorf("decode metadata: entry %d has %d elements", i, len(pair))
		}
		key, ok := pair[0].(string)
		if !ok {
			return fmt.Errorf("decode metadata: entry %d key is %T", i, pair[0])
		}
		m.Set(key, normalizeJSONValue(pair[1]))
	}
	return nil
}

func normalizeJSONValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil && !math.IsInf(f, 0) {
			return f
		}
		return val.String()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeJSONValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeJSONValue(item)
		}
		return out
	default:
		return v
	}
}
