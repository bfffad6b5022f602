package core

import (
	"errors"
	"strconv"
	"strings"
)

// ValueKind tells how a cell was represented in the source file.
type ValueKind int

const (
	KindEmpty ValueKind = iota
	KindNumber
	KindText
)

type (
	// Value is a single raw cell. The engine never trusts its kind; amounts go
	// through Coerce and probabilities through Probability.
	Value struct {
		Kind   ValueKind
		Number float64
		Text   string
	}

	// Row maps column labels to cells for one project.
	Row map[string]Value

	// Table is one parsed snapshot: project rows indexed by their identifier.
	// The identifier column itself is not part of Columns.
	Table struct {
		columns []string
		present map[string]struct{}
		ids     []string
		rows    map[string]Row
	}
)

var ErrNilTable = errors.New("snapshot table is nil")

func NumberValue(f float64) Value { return Value{Kind: KindNumber, Number: f} }
func TextValue(s string) Value    { return Value{Kind: KindText, Text: s} }
func EmptyValue() Value           { return Value{} }

// IsBlank reports whether the cell carries no data at all.
func (v Value) IsBlank() bool {
	switch v.Kind {
	case KindEmpty:
		return true
	case KindText:
		return strings.TrimSpace(v.Text) == ""
	}
	return false
}

// String renders the cell for display (project names, departments).
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindText:
		return strings.TrimSpace(v.Text)
	}
	return ""
}

// Get returns the cell under label and whether the row has that column.
func (r Row) Get(label string) (Value, bool) {
	v, ok := r[label]
	return v, ok
}

// NewTable creates an empty table with the given column order.
func NewTable(columns []string) *Table {
	t := &Table{
		columns: make([]string, 0, len(columns)),
		present: make(map[string]struct{}, len(columns)),
		rows:    make(map[string]Row),
	}
	for _, c := range columns {
		if _, dup := t.present[c]; dup {
			continue
		}
		t.present[c] = struct{}{}
		t.columns = append(t.columns, c)
	}
	return t
}

// Append adds a project row. The first row for an identifier wins; later
// duplicates are ignored and Append returns false.
func (t *Table) Append(id string, row Row) bool {
	if _, exists := t.rows[id]; exists {
		return false
	}
	if row == nil {
		row = Row{}
	}
	t.ids = append(t.ids, id)
	t.rows[id] = row
	return true
}

// Row looks up a project by identifier.
func (t *Table) Row(id string) (Row, bool) {
	r, ok := t.rows[id]
	return r, ok
}

// Has reports whether the identifier is part of this snapshot.
func (t *Table) Has(id string) bool {
	_, ok := t.rows[id]
	return ok
}

// HasColumn reports whether label is one of the table's columns.
func (t *Table) HasColumn(label string) bool {
	_, ok := t.present[label]
	return ok
}

// IDs returns identifiers in source order.
func (t *Table) IDs() []string {
	return append([]string(nil), t.ids...)
}

// Columns returns column labels in source order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len is the number of projects.
func (t *Table) Len() int {
	return len(t.ids)
}

// cell returns the value under label, treating a missing column or a row
// without that label as empty.
func (t *Table) cell(id, label string) (Value, bool) {
	if !t.HasColumn(label) {
		return Value{}, false
	}
	row, ok := t.rows[id]
	if !ok {
		return Value{}, false
	}
	return row.Get(label)
}
