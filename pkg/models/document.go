package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one key/value pair of a record.
type Field struct {
	Key   string
	Value interface{}
}

// Record is a mapping from column name to value that keeps the column order.
type Record []Field

// Get returns the value stored under key.
func (r Record) Get(key string) (interface{}, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the record as a JSON object with keys in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Document is one cleaned record as submitted to the search index. It
// carries no identifier; the index assigns one on write, so loading the same
// data twice stores it twice.
type Document struct {
	Fields Record
}

func (d Document) MarshalJSON() ([]byte, error) {
	return d.Fields.MarshalJSON()
}
