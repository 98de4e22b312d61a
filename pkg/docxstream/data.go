package docxstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// PlaceholderMap maps placeholder keys to values. Keys are written the way
// they appear in the template, braces included:
//
//	data := docxstream.PlaceholderMap{
//	    "{{title}}":  "Quarterly report",
//	    "{{#users}}": []any{...},
//	}
//
// Values may be strings, numbers, booleans, nil, *Object, map[string]any,
// []any or any Go value that encodes to JSON. The map is not modified during
// a generation pass.
type PlaceholderMap map[string]any

// Record is one flattened element of a loop array: keys are dotted paths,
// values are scalars.
type Record map[string]any

// Object is a JSON object that remembers its key order. Flatten walks keys in
// this order, which decides the order of the records it produces.
type Object struct {
	Keys   []string
	Values map[string]any
}

// NewObject creates an empty ordered object.
func NewObject() *Object {
	return &Object{Values: make(map[string]any)}
}

// Set adds or replaces a key, keeping the position of an existing key.
func (o *Object) Set(key string, value any) {
	if _, ok := o.Values[key]; !ok {
		o.Keys = append(o.Keys, key)
	}
	o.Values[key] = value
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.Values[key]
	return v, ok
}

// Len returns the number of keys.
func (o *Object) Len() int {
	return len(o.Keys)
}

// MarshalJSON encodes the object with its keys in order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(o.Values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeData reads a JSON object into a PlaceholderMap. Nested objects are
// decoded as *Object so their key order survives, numbers as json.Number.
func DecodeData(r io.Reader) (PlaceholderMap, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("failed to decode data: top-level value must be an object, got %T", v)
	}

	data := make(PlaceholderMap, obj.Len())
	for _, k := range obj.Keys {
		data[k] = obj.Values[k]
	}
	return data, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := make([]any, 0)
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		// string, json.Number, bool or nil
		return t, nil
	}
}

// normalize converts arbitrary Go values (structs, typed slices, typed maps)
// into the JSON-shaped values Flatten understands. JSON-shaped values are
// returned untouched.
func normalize(v any) any {
	switch t := v.(type) {
	case nil, string, bool, json.Number, float64, float32,
		int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return v
	case *Object, []any:
		return v
	case map[string]any:
		return objectFromMap(t)
	case Record:
		return objectFromMap(t)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	decoded, err := decodeValue(dec)
	if err != nil {
		return fmt.Sprint(v)
	}
	return decoded
}

// objectFromMap orders a plain map by key so flattening is deterministic.
func objectFromMap(m map[string]any) *Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	obj := &Object{Keys: keys, Values: make(map[string]any, len(m))}
	for k, v := range m {
		obj.Values[k] = v
	}
	return obj
}
