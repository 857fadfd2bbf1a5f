package core

import (
	"github.com/JonMunkholm/empenhos/internal/mapping"
	"github.com/JonMunkholm/empenhos/internal/source"
)

// Field is one destination column and its value. A nil Value is SQL NULL.
type Field struct {
	Column string
	Value  any
}

// Fields is an ordered column payload for one table mapping.
type Fields []Field

// Get returns the value of a column.
func (f Fields) Get(column string) (any, bool) {
	for _, fld := range f {
		if fld.Column == column {
			return fld.Value, true
		}
	}
	return nil, false
}

// Set replaces the value of a column or appends it.
func (f Fields) Set(column string, value any) Fields {
	for i := range f {
		if f[i].Column == column {
			f[i].Value = value
			return f
		}
	}
	return append(f, Field{Column: column, Value: value})
}

// NonNull returns the fields whose value is not null, keeping order.
func (f Fields) NonNull() Fields {
	out := make(Fields, 0, len(f))
	for _, fld := range f {
		if fld.Value != nil {
			out = append(out, fld)
		}
	}
	return out
}

// Columns returns the column names in order.
func (f Fields) Columns() []string {
	cols := make([]string, len(f))
	for i, fld := range f {
		cols[i] = fld.Column
	}
	return cols
}

// Values returns the values in column order, ready to bind.
func (f Fields) Values() []any {
	vals := make([]any, len(f))
	for i, fld := range f {
		vals[i] = fld.Value
	}
	return vals
}

// Extract projects a source row onto the columns of one table mapping.
// A field missing from the row, or a blank cell, becomes null. A cell that
// cannot be converted to its column type is a *ValueError.
func Extract(row source.Row, t mapping.TableMapping) (Fields, error) {
	fields := make(Fields, 0, len(t.Columns)+len(t.ForeignKeys))
	for _, c := range t.Columns {
		raw, ok := row.Get(c.Source)
		if !ok {
			fields = append(fields, Field{Column: c.Dest})
			continue
		}
		vt := t.TypeOf(c.Dest)
		v, err := Coerce(raw, vt)
		if err != nil {
			return nil, &ValueError{Field: c.Source, Column: c.Dest, Type: vt, Value: raw, Err: err}
		}
		fields = append(fields, Field{Column: c.Dest, Value: v})
	}
	return fields, nil
}

// ResolveForeignKeys sets each foreign key column to the id its referenced
// table produced earlier in the row. A reference with no id yet leaves the
// column out of the payload.
func ResolveForeignKeys(fields Fields, fks []mapping.ForeignKey, rc *RowContext) Fields {
	for _, fk := range fks {
		if id, ok := rc.ID(fk.Ref); ok {
			fields = fields.Set(fk.Column, id)
		}
	}
	return fields
}
