// Package table holds the tabular form shared by the price and remote datasets.
package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Row is one record. A nil cell is a missing value.
type Row []any

// Table is an ordered sequence of rows sharing one column schema.
type Table struct {
	Columns []string
	Rows    []Row
}

// New creates an empty table with the given columns.
func New(columns ...string) *Table {
	return &Table{Columns: columns}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table has neither columns nor rows.
func (t *Table) Empty() bool {
	return t == nil || (len(t.Columns) == 0 && len(t.Rows) == 0)
}

// Append adds a row. The row must have one cell per column.
func (t *Table) Append(cells ...any) error {
	if len(cells) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(cells), len(t.Columns))
	}
	t.Rows = append(t.Rows, Row(cells))
	return nil
}

// Clone returns a copy that shares no row storage with t.
func (t *Table) Clone() *Table {
	if t == nil {
		return New()
	}
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = append(Row(nil), r...)
	}
	return out
}

// HasMissing reports whether any cell in the row is nil.
func (r Row) HasMissing() bool {
	for _, c := range r {
		if c == nil {
			return true
		}
	}
	return false
}

// Key returns a canonical encoding of the row used for exact-duplicate detection.
func (r Row) Key() string {
	b, err := json.Marshal([]any(r))
	if err != nil {
		return fmt.Sprintf("%#v", []any(r))
	}
	return string(b)
}

// FormatCell renders a cell for delimited output. Missing cells become the empty string.
func FormatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case json.Number:
		return c.String()
	case json.RawMessage:
		return string(c)
	case bool:
		return strconv.FormatBool(c)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case int:
		return strconv.Itoa(c)
	case int64:
		return strconv.FormatInt(c, 10)
	case fmt.Stringer:
		return c.String()
	default:
		return fmt.Sprint(c)
	}
}

// DecodeRecords parses a JSON array of objects into a table.
//
// Columns are the union of object keys in first-seen order. Keys absent from an
// object yield missing cells, as do explicit JSON nulls. Numbers are kept as
// json.Number and nested arrays or objects as raw JSON text.
func DecodeRecords(r io.Reader) (*Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read array start: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("expected JSON array, got %v", tok)
	}

	var (
		columns []string
		index   = make(map[string]int)
		objects []map[string]any
	)

	for dec.More() {
		obj, keys, err := decodeObject(dec)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", len(objects), err)
		}
		for _, k := range keys {
			if _, ok := index[k]; !ok {
				index[k] = len(columns)
				columns = append(columns, k)
			}
		}
		objects = append(objects, obj)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read array end: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON array")
	}

	t := New(columns...)
	for _, obj := range objects {
		row := make(Row, len(columns))
		for k, v := range obj {
			row[index[k]] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// decodeObject reads one JSON object and returns its values plus keys in document order.
func decodeObject(dec *json.Decoder) (map[string]any, []string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	obj := make(map[string]any)
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected object key, got %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("value for %q: %w", key, err)
		}
		v, err := scalar(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("value for %q: %w", key, err)
		}

		if _, seen := obj[key]; !seen {
			keys = append(keys, key)
		}
		obj[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return obj, keys, nil
}

func scalar(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty value")
	}
	switch trimmed[0] {
	case '{', '[':
		return string(trimmed), nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
