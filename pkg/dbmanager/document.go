package dbmanager

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TaggedDoc is a JSON object that remembers field insertion order. Documents
// are semantically unordered, but the transport keeps insertion order so the
// client can display fields the way they were stored.
type TaggedDoc struct {
	keys   []string
	values map[string]interface{}
}

// NewTaggedDoc creates an empty ordered document
func NewTaggedDoc() *TaggedDoc {
	return &TaggedDoc{values: make(map[string]interface{})}
}

// Set adds or replaces a field, preserving first-insertion order
func (d *TaggedDoc) Set(key string, value interface{}) {
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Get returns the value for a field
func (d *TaggedDoc) Get(key string) (interface{}, bool) {
	value, ok := d.values[key]
	return value, ok
}

// Delete removes a field
func (d *TaggedDoc) Delete(key string) {
	if _, exists := d.values[key]; !exists {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Keys returns field names in insertion order
func (d *TaggedDoc) Keys() []string {
	return d.keys
}

// Len returns the number of fields
func (d *TaggedDoc) Len() int {
	return len(d.keys)
}

// MarshalJSON writes the fields in insertion order
func (d *TaggedDoc) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		valueJSON, err := json.Marshal(d.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(valueJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object via the token stream so field order survives
func (d *TaggedDoc) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	d.keys = nil
	d.values = make(map[string]interface{})
	return d.decodeFields(dec)
}

func (d *TaggedDoc) decodeFields(dec *json.Decoder) error {
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", keyTok)
		}

		value, err := decodeJSONValue(dec)
		if err != nil {
			return err
		}
		d.Set(key, value)
	}

	// consume the closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// decodeJSONValue decodes the next value, turning nested objects into
// TaggedDocs so order is preserved all the way down
func decodeJSONValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			doc := NewTaggedDoc()
			if err := doc.decodeFields(dec); err != nil {
				return nil, err
			}
			return doc, nil
		case '[':
			var arr []interface{}
			for dec.More() {
				item, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			if arr == nil {
				arr = []interface{}{}
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		return tok, nil
	}
}
