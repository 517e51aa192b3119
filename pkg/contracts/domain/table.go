package domain

import (
	"fmt"
	"time"
)

// ColumnType is the declared type of a table column.
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeFloat
	TypeInt
	TypeBool
	TypeTime
)

// String returns the lower-case name of the column type
func (t ColumnType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeFloat:
		return "float"
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	case TypeTime:
		return "time"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// IsNumeric reports whether the column holds numbers
func (t ColumnType) IsNumeric() bool {
	return t == TypeFloat || t == TypeInt
}

// Column is a named, typed vector of values. A nil value is null.
// Non-null values are string, float64, int64, bool or time.Time according to Type.
type Column struct {
	Name   string
	Type   ColumnType
	Values []any
}

// NewColumn creates a column with the given values
func NewColumn(name string, typ ColumnType, values []any) *Column {
	if values == nil {
		values = []any{}
	}
	return &Column{Name: name, Type: typ, Values: values}
}

// NullColumn creates a column of n null values
func NullColumn(name string, typ ColumnType, n int) *Column {
	return &Column{Name: name, Type: typ, Values: make([]any, n)}
}

// Len returns the number of values
func (c *Column) Len() int {
	return len(c.Values)
}

// IsNull reports whether row i holds the null marker
func (c *Column) IsNull(i int) bool {
	return c.Values[i] == nil
}

// NullCount returns how many values are null
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if v == nil {
			n++
		}
	}
	return n
}

// Float returns row i as float64. Int values are widened.
func (c *Column) Float(i int) (float64, bool) {
	switch v := c.Values[i].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Int returns row i as int64
func (c *Column) Int(i int) (int64, bool) {
	switch v := c.Values[i].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// String returns row i as string
func (c *Column) String(i int) (string, bool) {
	v, ok := c.Values[i].(string)
	return v, ok
}

// Time returns row i as time.Time
func (c *Column) Time(i int) (time.Time, bool) {
	v, ok := c.Values[i].(time.Time)
	return v, ok
}

// Bool returns row i as bool
func (c *Column) Bool(i int) (bool, bool) {
	v, ok := c.Values[i].(bool)
	return v, ok
}

// Clone returns a copy of the column with its own value slice
func (c *Column) Clone() *Column {
	values := make([]any, len(c.Values))
	copy(values, c.Values)
	return &Column{Name: c.Name, Type: c.Type, Values: values}
}

// Rename returns a copy of the column under a new name
func (c *Column) Rename(name string) *Column {
	clone := c.Clone()
	clone.Name = name
	return clone
}

// Table is an ordered set of equally long columns.
type Table struct {
	columns []*Column
	index   map[string]int
}

// NewTable builds a table from columns. All columns must have the same length.
func NewTable(columns ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, col := range columns {
		if err := t.AddColumn(col); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustTable is NewTable that panics on mismatched columns. Intended for fixtures.
func MustTable(columns ...*Column) *Table {
	t, err := NewTable(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

// NumRows returns the row count. A table without columns has zero rows.
func (t *Table) NumRows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return t.columns[0].Len()
}

// NumColumns returns the column count
func (t *Table) NumColumns() int {
	return len(t.columns)
}

// Columns returns the columns in order
func (t *Table) Columns() []*Column {
	return t.columns
}

// ColumnNames returns the column names in order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, col := range t.columns {
		names[i] = col.Name
	}
	return names
}

// Column looks a column up by name
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// HasColumn reports whether the table has a column with the given name
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// AddColumn appends a column, or replaces the column with the same name in place.
func (t *Table) AddColumn(col *Column) error {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if len(t.columns) > 0 && col.Len() != t.NumRows() {
		return fmt.Errorf("column %q has %d values, table has %d rows", col.Name, col.Len(), t.NumRows())
	}
	if i, ok := t.index[col.Name]; ok {
		t.columns[i] = col
		return nil
	}
	t.index[col.Name] = len(t.columns)
	t.columns = append(t.columns, col)
	return nil
}

// Clone deep-copies the table
func (t *Table) Clone() *Table {
	clone := &Table{
		columns: make([]*Column, len(t.columns)),
		index:   make(map[string]int, len(t.columns)),
	}
	for i, col := range t.columns {
		clone.columns[i] = col.Clone()
		clone.index[col.Name] = i
	}
	return clone
}

// Select returns a new table with copies of the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	out := &Table{index: make(map[string]int, len(names))}
	for _, name := range names {
		col, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		if err := out.AddColumn(col.Clone()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Take returns a new table holding the given rows, in the given order.
// Row indices may repeat.
func (t *Table) Take(rows []int) *Table {
	out := &Table{
		columns: make([]*Column, len(t.columns)),
		index:   make(map[string]int, len(t.columns)),
	}
	for i, col := range t.columns {
		values := make([]any, len(rows))
		for j, r := range rows {
			values[j] = col.Values[r]
		}
		out.columns[i] = &Column{Name: col.Name, Type: col.Type, Values: values}
		out.index[col.Name] = i
	}
	return out
}

// Tables maps dataset names to tables.
type Tables map[string]*Table

// Clone deep-copies every table in the mapping
func (ts Tables) Clone() Tables {
	out := make(Tables, len(ts))
	for name, t := range ts {
		out[name] = t.Clone()
	}
	return out
}

// Get returns the named table when present and non-nil
func (ts Tables) Get(name string) (*Table, bool) {
	t, ok := ts[name]
	return t, ok && t != nil
}
