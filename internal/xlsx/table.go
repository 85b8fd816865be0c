package xlsx

import (
	"bytes"
	"strings"

	json "github.com/goccy/go-json"
)

// Field is one header/value pair of a row.
type Field struct {
	Header string
	Value  string
}

// Row is a data row: one Field per table header, in header order.
type Row struct {
	// Number is the worksheet row number the fields were read from.
	Number int
	Fields []Field
}

// Get returns the value mapped to header. When several columns share a
// header the rightmost one wins.
func (r Row) Get(header string) (string, bool) {
	for i := len(r.Fields) - 1; i >= 0; i-- {
		if r.Fields[i].Header == header {
			return r.Fields[i].Value, true
		}
	}
	return "", false
}

// Value returns the value mapped to header, or "" if there is none.
func (r Row) Value(header string) string {
	v, _ := r.Get(header)
	return v
}

// Values returns the row's values in header order.
func (r Row) Values() []string {
	out := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		out[i] = f.Value
	}
	return out
}

// Map returns the row as an unordered header to value map.
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r.Fields))
	for _, f := range r.Fields {
		m[f.Header] = f.Value
	}
	return m
}

// IsBlank reports whether every value in the row is empty.
func (r Row) IsBlank() bool {
	for _, f := range r.Fields {
		if f.Value != "" {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the row as an object whose keys keep header order.
// A repeated header appears once, at its first position, with the value
// Get would return.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	seen := make(map[string]bool, len(r.Fields))
	first := true
	for _, f := range r.Fields {
		if seen[f.Header] {
			continue
		}
		seen[f.Header] = true

		if !first {
			buf.WriteByte(',')
		}
		first = false

		k, err := json.Marshal(f.Header)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.Value(f.Header))
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

// Table is a decoded worksheet: row 1 as headers, then data rows.
type Table struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

// Empty reports whether the worksheet had no cells at all.
func (t *Table) Empty() bool {
	return len(t.Headers) == 0 && len(t.Rows) == 0
}

// HasHeader reports whether name is one of the table's headers.
func (t *Table) HasHeader(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// Assemble builds a Table from a grid.
//
// Columns are ordered by numeric index, so "J" (10) precedes "AA" (27).
// Headers are the trimmed row 1 values. Data rows run from 2 through the
// highest row observed; rows with no cells are emitted with every value
// empty.
func Assemble(g *Grid) *Table {
	if g == nil || g.Len() == 0 {
		return &Table{Headers: []string{}, Rows: []Row{}}
	}

	cols := g.Columns()
	headers := make([]string, len(cols))
	for i, c := range cols {
		v, _ := g.Value(CellAddress{Row: 1, Col: c})
		headers[i] = strings.TrimSpace(v)
	}

	maxRow := g.MaxRow()
	rows := make([]Row, 0, max(maxRow-1, 0))
	for r := 2; r <= maxRow; r++ {
		fields := make([]Field, len(cols))
		for i, c := range cols {
			v, _ := g.Value(CellAddress{Row: r, Col: c})
			fields[i] = Field{Header: headers[i], Value: v}
		}
		rows = append(rows, Row{Number: r, Fields: fields})
	}

	return &Table{Headers: headers, Rows: rows}
}
