package mapping

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrTableNotFound is returned by a Catalog when a table does not exist.
var ErrTableNotFound = errors.New("table not found")

// CatalogTable is a table as the live schema spells it.
type CatalogTable struct {
	Name    string
	Columns []string
}

// Catalog exposes the store's schema for identifier checks.
type Catalog interface {
	LookupTable(ctx context.Context, name string) (CatalogTable, error)
}

// Resolve checks every identifier in the mapping against the catalog and returns a
// spec using the catalog's spelling. Identifiers are matched exactly first and
// then case-insensitively; an ambiguous or missing identifier is a ConfigError.
//
// Catalog failures other than ErrTableNotFound are returned as-is so callers can
// tell an unreachable store from a bad mapping.
func (s *Spec) Resolve(ctx context.Context, cat Catalog) (*Spec, error) {
	var p problems
	cache := make(map[string]CatalogTable)
	resolved := make([]TableMapping, 0, len(s.tables))

	for _, t := range s.tables {
		ct, ok := cache[t.Table]
		if !ok {
			var err error
			ct, err = cat.LookupTable(ctx, t.Table)
			if errors.Is(err, ErrTableNotFound) {
				p.addf("%s: table %q does not exist", t.Key, t.Table)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("inspect table %s: %w", t.Table, err)
			}
			cache[t.Table] = ct
		}

		column := func(what, name string) string {
			if name == "" {
				return ""
			}
			actual, ok := matchName(ct.Columns, name)
			if !ok {
				p.addf("%s: %s %q is not a column of %s", t.Key, what, name, ct.Name)
				return name
			}
			return actual
		}

		r := TableMapping{
			Key:         t.Key,
			Table:       ct.Name,
			Columns:     make([]Column, len(t.Columns)),
			ForeignKeys: make([]ForeignKey, len(t.ForeignKeys)),
			UniqueField: column("campo_unico", t.UniqueField),
			IDColumn:    column("id_coluna", t.IDColumn),
		}
		for i, c := range t.Columns {
			r.Columns[i] = Column{Source: c.Source, Dest: column("column", c.Dest)}
		}
		for i, fk := range t.ForeignKeys {
			r.ForeignKeys[i] = ForeignKey{Column: column("fk column", fk.Column), Ref: fk.Ref}
		}
		if len(t.Types) > 0 {
			r.Types = make(map[string]ValueType, len(t.Types))
			for col, vt := range t.Types {
				r.Types[column("typed column", col)] = vt
			}
		}
		resolved = append(resolved, r)
	}

	if err := p.err("schema"); err != nil {
		return nil, err
	}
	return newSpec(resolved), nil
}

func matchName(candidates []string, name string) (string, bool) {
	for _, c := range candidates {
		if c == name {
			return c, true
		}
	}
	found := ""
	for _, c := range candidates {
		if strings.EqualFold(c, name) {
			if found != "" {
				return "", false
			}
			found = c
		}
	}
	return found, found != ""
}
