package jsonx

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Map is a JSON object with homogeneous values that iterates in first-set
// key order. It is used for every id-indexed dictionary the tool builds
// (groups by id, invoices by contact, identity maps).
type Map[V any] struct {
	keys   []string
	values map[string]V
}

func NewMap[V any]() *Map[V] {
	return &Map[V]{values: make(map[string]V)}
}

func (m *Map[V]) Get(key string) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *Map[V]) Set(key string, value V) {
	if m.values == nil {
		m.values = make(map[string]V)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Keys returns the keys in insertion order. The slice is a copy.
func (m *Map[V]) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *Map[V]) Len() int {
	return len(m.keys)
}

func (m *Map[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *Map[V]) UnmarshalJSON(data []byte) error {
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()

	tok, err := d.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("jsonx: expected object, got %v", tok)
	}

	m.keys = nil
	m.values = make(map[string]V)

	for d.More() {
		kt, err := d.Token()
		if err != nil {
			return err
		}
		key := kt.(string)
		var v V
		if err := d.Decode(&v); err != nil {
			return fmt.Errorf("jsonx: key %q: %w", key, err)
		}
		m.Set(key, v)
	}

	_, err = d.Token()
	return err
}
