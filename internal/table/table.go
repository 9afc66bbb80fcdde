// Package table holds the in-memory columnar representation shared by the
// loaders, cleaning stages, join assembler and storage backends.
//
// A nil value in a column always means "missing". Every DType is nullable.
package table

import (
	"errors"
	"fmt"
)

// ErrColumnNotFound is returned when an operation names a column the table
// does not have.
var ErrColumnNotFound = errors.New("column not found")

// DType is the logical type of a column.
type DType string

const (
	Text     DType = "string"
	Int      DType = "int64"
	Float    DType = "float64"
	Bool     DType = "bool"
	Category DType = "category"
)

// ParseDType maps a configuration tag to a DType.
func ParseDType(s string) (DType, error) {
	switch s {
	case "string", "text", "str":
		return Text, nil
	case "int", "int64", "integer", "bigint":
		return Int, nil
	case "float", "float64", "double", "numeric":
		return Float, nil
	case "bool", "boolean":
		return Bool, nil
	case "category", "categorical":
		return Category, nil
	default:
		return "", fmt.Errorf("unknown dtype %q", s)
	}
}

// Numeric reports whether values of d are int64 or float64.
func (d DType) Numeric() bool { return d == Int || d == Float }

// Column is one named, typed vector of values.
type Column struct {
	Name   string
	Type   DType
	Values []any
}

// NullCount returns the number of missing values.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if v == nil {
			n++
		}
	}
	return n
}

func (c *Column) clone() *Column {
	return &Column{
		Name:   c.Name,
		Type:   c.Type,
		Values: append([]any(nil), c.Values...),
	}
}

// Table is an ordered set of equal-length columns.
//
// Ownership: stages that clean a table mutate it in place and the caller keeps
// ownership. Stages that combine tables (joins) allocate new ones.
type Table struct {
	Name    string
	Columns []*Column
}

// New returns an empty table.
func New(name string) *Table {
	return &Table{Name: name}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil || len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// Width returns the number of columns.
func (t *Table) Width() int {
	if t == nil {
		return 0
	}
	return len(t.Columns)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column returns the column called name.
func (t *Table) Column(name string) (*Column, bool) {
	i := t.Index(name)
	if i < 0 {
		return nil, false
	}
	return t.Columns[i], true
}

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool { return t.Index(name) >= 0 }

// AddColumn appends c. The first column fixes the row count; every later one
// must match it. Duplicate names are rejected.
func (t *Table) AddColumn(c *Column) error {
	if c == nil || c.Name == "" {
		return fmt.Errorf("table %s: column must have a name", t.Name)
	}
	if t.Has(c.Name) {
		return fmt.Errorf("table %s: duplicate column %q", t.Name, c.Name)
	}
	if len(t.Columns) > 0 && len(c.Values) != t.Len() {
		return fmt.Errorf("table %s: column %q has %d values, want %d", t.Name, c.Name, len(c.Values), t.Len())
	}
	t.Columns = append(t.Columns, c)
	return nil
}

// Replace swaps the column with the same name as c.
func (t *Table) Replace(c *Column) error {
	i := t.Index(c.Name)
	if i < 0 {
		return fmt.Errorf("table %s: %w: %s", t.Name, ErrColumnNotFound, c.Name)
	}
	if len(c.Values) != t.Len() {
		return fmt.Errorf("table %s: column %q has %d values, want %d", t.Name, c.Name, len(c.Values), t.Len())
	}
	t.Columns[i] = c
	return nil
}

// Rename changes a column name in place.
func (t *Table) Rename(from, to string) error {
	i := t.Index(from)
	if i < 0 {
		return fmt.Errorf("table %s: %w: %s", t.Name, ErrColumnNotFound, from)
	}
	if from == to {
		return nil
	}
	if t.Has(to) {
		return fmt.Errorf("table %s: rename %q: column %q already exists", t.Name, from, to)
	}
	t.Columns[i].Name = to
	return nil
}

// Drop removes a column in place.
func (t *Table) Drop(name string) error {
	i := t.Index(name)
	if i < 0 {
		return fmt.Errorf("table %s: %w: %s", t.Name, ErrColumnNotFound, name)
	}
	t.Columns = append(t.Columns[:i], t.Columns[i+1:]...)
	return nil
}

// Row returns a copy of row i in column order.
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.Columns))
	for j, c := range t.Columns {
		out[j] = c.Values[i]
	}
	return out
}

// Rows returns every row. Used by storage writers.
func (t *Table) Rows() [][]any {
	n := t.Len()
	out := make([][]any, n)
	for i := 0; i < n; i++ {
		out[i] = t.Row(i)
	}
	return out
}

// Clone returns a deep copy. Values are immutable scalars, so copying the
// slices is enough.
func (t *Table) Clone() *Table {
	out := &Table{Name: t.Name, Columns: make([]*Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = c.clone()
	}
	return out
}
