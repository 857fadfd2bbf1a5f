// Package mapping describes how source rows are written into the relational schema.
//
// A Spec is an ordered list of TableMappings. Order is processing order: a table
// can only receive a foreign key from tables declared before it, because ids are
// produced row by row while the mappings are walked front to back.
//
// The document format keeps the keys used by the original spreadsheet importer:
//
//	{
//	  "TB_ORGAO": {
//	    "colunas": {"orgao": "ORG_NOME"},
//	    "campo_unico": "ORG_NOME",
//	    "id_coluna": "ORG_ID"
//	  },
//	  "TB_EMPENHO": {
//	    "colunas": {"valor": "EMP_VALOR_CONVERTIDO"},
//	    "fks": {"EMP_ORGID": "TB_ORGAO"},
//	    "tipos": {"EMP_VALOR_CONVERTIDO": "numeric"}
//	  }
//	}
//
// A table key may carry a discriminator after KeySeparator ("TB_PESSOA#autor")
// so the same physical table can be written more than once per row.
package mapping

import "strings"

// KeySeparator splits a table key into physical table and discriminator.
const KeySeparator = "#"

// ValueType selects how a source cell is converted before it is written.
type ValueType string

const (
	TypeText    ValueType = "text"
	TypeNumeric ValueType = "numeric"
	TypeDate    ValueType = "date"
	TypeInteger ValueType = "integer"
	TypeBool    ValueType = "bool"
)

var validTypes = map[ValueType]bool{
	TypeText:    true,
	TypeNumeric: true,
	TypeDate:    true,
	TypeInteger: true,
	TypeBool:    true,
}

// Column maps a source field to a destination column.
type Column struct {
	Source string
	Dest   string
}

// ForeignKey fills Column with the id produced for table key Ref in the same row.
type ForeignKey struct {
	Column string
	Ref    string
}

// TableMapping governs one logical table: projection, FK wiring and dedup.
type TableMapping struct {
	Key         string // logical key, possibly "table#discriminator"
	Table       string // physical table name
	Columns     []Column
	ForeignKeys []ForeignKey
	UniqueField string // natural key column; empty means always insert
	IDColumn    string // primary key column; required with UniqueField
	Types       map[string]ValueType
}

// Deduplicates reports whether records are looked up by their natural key before insert.
func (t TableMapping) Deduplicates() bool {
	return t.UniqueField != ""
}

// TypeOf returns the declared type of a destination column, defaulting to text.
func (t TableMapping) TypeOf(dest string) ValueType {
	if vt, ok := t.Types[dest]; ok {
		return vt
	}
	return TypeText
}

// Spec is the immutable, ordered set of table mappings.
type Spec struct {
	tables []TableMapping
	index  map[string]int
}

func newSpec(tables []TableMapping) *Spec {
	s := &Spec{
		tables: tables,
		index:  make(map[string]int, len(tables)),
	}
	for i, t := range tables {
		s.index[t.Key] = i
	}
	return s
}

// Tables returns the table mappings in processing order.
// The returned slice is a copy; the Spec itself never changes after loading.
func (s *Spec) Tables() []TableMapping {
	out := make([]TableMapping, len(s.tables))
	copy(out, s.tables)
	return out
}

// Len returns the number of table mappings.
func (s *Spec) Len() int {
	return len(s.tables)
}

// Table returns the mapping for a table key.
func (s *Spec) Table(key string) (TableMapping, bool) {
	i, ok := s.index[key]
	if !ok {
		return TableMapping{}, false
	}
	return s.tables[i], true
}

// Position returns the processing position of a table key.
func (s *Spec) Position(key string) (int, bool) {
	i, ok := s.index[key]
	return i, ok
}

// PhysicalTables returns the distinct physical tables in first-seen order.
func (s *Spec) PhysicalTables() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range s.tables {
		if !seen[t.Table] {
			seen[t.Table] = true
			out = append(out, t.Table)
		}
	}
	return out
}

// ForwardReference is a foreign key pointing at a table processed later in the row.
// Such a key always resolves to null.
type ForwardReference struct {
	Table  string // referencing table key
	Column string
	Ref    string // referenced table key
}

// ForwardReferences lists foreign keys whose target is declared at or after the
// referencing table.
func (s *Spec) ForwardReferences() []ForwardReference {
	var out []ForwardReference
	for i, t := range s.tables {
		for _, fk := range t.ForeignKeys {
			if pos, ok := s.index[fk.Ref]; ok && pos >= i {
				out = append(out, ForwardReference{Table: t.Key, Column: fk.Column, Ref: fk.Ref})
			}
		}
	}
	return out
}

// PhysicalTable returns the physical table name for a table key.
func PhysicalTable(key string) string {
	name, _, _ := strings.Cut(key, KeySeparator)
	return strings.TrimSpace(name)
}
