// SPDX-License-Identifier: Apache-2.0

// Package dataset holds the tabular shape that flows from extraction through
// contract application to the classification consumers.
package dataset

import (
	"fmt"
	"time"
)

// Type is the declared storage type of a column.
type Type string

const (
	TypeString   Type = "string"
	TypeInteger  Type = "integer"
	TypeFloat    Type = "float"
	TypeBoolean  Type = "boolean"
	TypeDate     Type = "date"
	TypeDatetime Type = "datetime"
)

// Valid reports whether t is one of the known column types.
func (t Type) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeDate, TypeDatetime:
		return true
	}
	return false
}

// Column is one named column. A nil entry in Values is a missing value.
// Non-nil entries are string, int64, float64, bool or time.Time.
type Column struct {
	Name   string
	Type   Type
	Values []any
}

// NewColumn creates a column with the given values.
func NewColumn(name string, typ Type, values ...any) *Column {
	return &Column{Name: name, Type: typ, Values: values}
}

// MissingCount returns the number of nil values in the column.
func (c *Column) MissingCount() int {
	n := 0
	for _, v := range c.Values {
		if v == nil {
			n++
		}
	}
	return n
}

func (c *Column) clone() *Column {
	values := make([]any, len(c.Values))
	copy(values, c.Values)
	return &Column{Name: c.Name, Type: c.Type, Values: values}
}

// Dataset is an ordered set of equally long, uniquely named columns.
type Dataset struct {
	columns []*Column
	rows    int
}

// New builds a Dataset, rejecting duplicate names and ragged columns.
func New(columns ...*Column) (*Dataset, error) {
	ds := &Dataset{columns: make([]*Column, 0, len(columns))}
	seen := make(map[string]bool, len(columns))
	for i, col := range columns {
		if col == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if seen[col.Name] {
			return nil, fmt.Errorf("duplicate column %q", col.Name)
		}
		seen[col.Name] = true
		if i == 0 {
			ds.rows = len(col.Values)
		} else if len(col.Values) != ds.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", col.Name, len(col.Values), ds.rows)
		}
		ds.columns = append(ds.columns, col)
	}
	return ds, nil
}

// MustNew is New for fixtures; it panics on error.
func MustNew(columns ...*Column) *Dataset {
	ds, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return ds
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return d.rows }

// Columns returns the column names in order.
func (d *Dataset) Columns() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by exact name.
func (d *Dataset) Column(name string) (*Column, bool) {
	for _, c := range d.columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Has reports whether a column with the exact name exists.
func (d *Dataset) Has(name string) bool {
	_, ok := d.Column(name)
	return ok
}

// Clone returns a deep copy; values themselves are immutable scalars.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{columns: make([]*Column, len(d.columns)), rows: d.rows}
	for i, c := range d.columns {
		out.columns[i] = c.clone()
	}
	return out
}

// Rename changes a column name in place, keeping its position.
func (d *Dataset) Rename(from, to string) error {
	if from == to {
		return nil
	}
	if d.Has(to) {
		return fmt.Errorf("cannot rename %q to %q: column already exists", from, to)
	}
	col, ok := d.Column(from)
	if !ok {
		return fmt.Errorf("cannot rename %q: no such column", from)
	}
	col.Name = to
	return nil
}

// Drop removes a column. Dropping an absent column is a no-op.
func (d *Dataset) Drop(name string) {
	for i, c := range d.columns {
		if c.Name == name {
			d.columns = append(d.columns[:i], d.columns[i+1:]...)
			return
		}
	}
}

// Replace swaps the column with the same name for col, keeping its position.
func (d *Dataset) Replace(col *Column) error {
	if len(col.Values) != d.rows {
		return fmt.Errorf("column %q has %d rows, expected %d", col.Name, len(col.Values), d.rows)
	}
	for i, c := range d.columns {
		if c.Name == col.Name {
			d.columns[i] = col
			return nil
		}
	}
	return fmt.Errorf("no column %q to replace", col.Name)
}

// TypeOf returns the column type a Go value would be stored as.
// ok is false for nil and for unsupported values.
func TypeOf(v any) (t Type, ok bool) {
	switch v.(type) {
	case string:
		return TypeString, true
	case int64:
		return TypeInteger, true
	case float64:
		return TypeFloat, true
	case bool:
		return TypeBoolean, true
	case time.Time:
		return TypeDatetime, true
	}
	return "", false
}
