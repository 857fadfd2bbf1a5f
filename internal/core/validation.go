package core

// validation.go checks a source header against the mapping before rows are
// processed.
//
// A mapped field that the header lacks is not an error: every row reads it as
// null, like an empty cell. The check exists so the run can say so once
// instead of leaving the operator to find whole columns of nulls.

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/empenhos/internal/mapping"
	"github.com/JonMunkholm/empenhos/internal/source"
)

// MissingField is a mapped source field absent from the header.
type MissingField struct {
	Field  string   // source field name as the mapping spells it
	Tables []string // table keys that map it
}

func (m MissingField) String() string {
	return fmt.Sprintf("%s (used by %s)", m.Field, strings.Join(m.Tables, ", "))
}

// ValidateHeaders lists the mapped fields the header does not provide, in
// mapping order. Header names are matched the way rows are read.
func ValidateHeaders(header []string, spec *mapping.Spec) []MissingField {
	idx := source.NewHeader(header)

	var (
		missing []MissingField
		pos     = make(map[string]int)
	)
	for _, t := range spec.Tables() {
		for _, c := range t.Columns {
			if _, ok := idx.Index(c.Source); ok {
				continue
			}
			if i, seen := pos[c.Source]; seen {
				if last := missing[i].Tables; last[len(last)-1] != t.Key {
					missing[i].Tables = append(missing[i].Tables, t.Key)
				}
				continue
			}
			pos[c.Source] = len(missing)
			missing = append(missing, MissingField{Field: c.Source, Tables: []string{t.Key}})
		}
	}
	return missing
}
