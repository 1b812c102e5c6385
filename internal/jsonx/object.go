// Package jsonx provides JSON containers that keep object keys in
// insertion order. The standard library sorts map keys on marshal, which
// would reorder every artifact this tool writes; the serve tree is consumed
// by processes that diff files byte-for-byte, so key order has to survive a
// decode/encode round trip.
//
// Numbers are carried as json.Number so large ids are never rewritten in
// float notation.
package jsonx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Object is a JSON object whose keys iterate in first-set order.
// Nested objects decode as *Object and nested arrays as []any, so ordering
// is preserved at every depth.
type Object struct {
	keys   []string
	values map[string]any
}

func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Set stores value under key, keeping the key's original position if it
// already exists and appending it otherwise.
func (o *Object) Set(key string, value any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Keys returns the keys in insertion order. The slice is a copy.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

func (o *Object) Len() int {
	return len(o.keys)
}

// Clone returns a copy sharing nested values. Setting a top-level key on
// the clone does not touch the original.
func (o *Object) Clone() *Object {
	c := &Object{
		keys:   make([]string, len(o.keys)),
		values: make(map[string]any, len(o.values)),
	}
	copy(c.keys, o.keys)
	for k, v := range o.values {
		c.values[k] = v
	}
	return c
}

func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *Object) UnmarshalJSON(data []byte) error {
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()

	tok, err := d.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("jsonx: expected object, got %v", tok)
	}

	o.keys = nil
	o.values = make(map[string]any)

	for d.More() {
		kt, err := d.Token()
		if err != nil {
			return err
		}
		key := kt.(string)
		val, err := decodeValue(d)
		if err != nil {
			return fmt.Errorf("jsonx: key %q: %w", key, err)
		}
		o.Set(key, val)
	}

	// closing '}'
	_, err = d.Token()
	return err
}

func decodeValue(d *json.Decoder) (any, error) {
	tok, err := d.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		// string, json.Number, bool or nil
		return tok, nil
	}

	switch delim {
	case '{':
		obj := NewObject()
		for d.More() {
			kt, err := d.Token()
			if err != nil {
				return nil, err
			}
			val, err := decodeValue(d)
			if err != nil {
				return nil, err
			}
			obj.Set(kt.(string), val)
		}
		if _, err := d.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := []any{}
		for d.More() {
			val, err := decodeValue(d)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		if _, err := d.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("jsonx: unexpected delimiter %v", delim)
	}
}

// KeyString converts a decoded JSON value to its canonical string form for
// use as a dictionary key. Ids arrive from the remote API sometimes as
// numbers and sometimes as strings; everything is keyed by this form.
func KeyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}
