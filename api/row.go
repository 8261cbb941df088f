package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is one result row. Unlike a plain map it remembers the column
// order the backend sent, which is the order the query selected them in.
type Row struct {
	Columns []string
	Values  map[string]any
}

// NewRow builds a row from alternating column/value pairs.
func NewRow(pairs ...any) Row {
	r := Row{Values: make(map[string]any, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(fmt.Sprint(pairs[i]), pairs[i+1])
	}
	return r
}

// Set adds or replaces a column value, keeping first-seen order.
func (r *Row) Set(col string, v any) {
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	if _, ok := r.Values[col]; !ok {
		r.Columns = append(r.Columns, col)
	}
	r.Values[col] = v
}

// Get returns the value of col.
func (r Row) Get(col string) (any, bool) {
	v, ok := r.Values[col]
	return v, ok
}

// UnmarshalJSON decodes an object while keeping key order.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("row: expected object, got %v", tok)
	}

	*r = Row{Values: make(map[string]any)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("row: expected key, got %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("row: value for %q: %w", key, err)
		}
		r.Set(key, v)
	}
	_, err = dec.Token()
	return err
}

// MarshalJSON encodes the row as an object in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.Values[col])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
