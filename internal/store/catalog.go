package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/JonMunkholm/empenhos/internal/mapping"
)

// Catalog reads table and column names from the live schema.
type Catalog struct {
	db      *sql.DB
	dialect Dialect
}

// NewCatalog returns a catalog over db.
func NewCatalog(db *sql.DB, dialect Dialect) *Catalog {
	return &Catalog{db: db, dialect: dialect}
}

const (
	postgresColumnsQuery = `SELECT table_name, column_name
FROM information_schema.columns
WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema())
  AND lower(table_name) = lower($2)
ORDER BY table_name, ordinal_position`

	mysqlColumnsQuery = `SELECT table_name, column_name
FROM information_schema.columns
WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
  AND lower(table_name) = lower(?)
ORDER BY table_name, ordinal_position`

	sqliteTablesQuery = `SELECT name FROM sqlite_master
WHERE type IN ('table', 'view') AND lower(name) = lower(?)
ORDER BY name`

	sqliteColumnsQuery = `SELECT name FROM pragma_table_info(?) ORDER BY cid`
)

// LookupTable implements mapping.Catalog. The name may be schema-qualified.
// When several tables differ only by case, the exact spelling wins.
func (c *Catalog) LookupTable(ctx context.Context, name string) (mapping.CatalogTable, error) {
	schema, table := splitQualified(name)

	var (
		byTable map[string][]string
		order   []string
		err     error
	)
	if c.dialect.Name == SQLite.Name {
		byTable, order, err = c.sqliteColumns(ctx, table)
	} else {
		query := postgresColumnsQuery
		if c.dialect.Name == MySQL.Name {
			query = mysqlColumnsQuery
		}
		byTable, order, err = c.schemaColumns(ctx, query, schema, table)
	}
	if err != nil {
		return mapping.CatalogTable{}, fmt.Errorf("inspect %s: %w", name, err)
	}

	actual, ok := pickTable(order, table)
	if !ok {
		return mapping.CatalogTable{}, mapping.ErrTableNotFound
	}

	full := actual
	if schema != "" {
		full = schema + "." + actual
	}
	return mapping.CatalogTable{Name: full, Columns: byTable[actual]}, nil
}

func (c *Catalog) schemaColumns(ctx context.Context, query, schema, table string) (map[string][]string, []string, error) {
	rows, err := c.db.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	byTable := make(map[string][]string)
	var order []string
	for rows.Next() {
		var t, col string
		if err := rows.Scan(&t, &col); err != nil {
			return nil, nil, err
		}
		if _, seen := byTable[t]; !seen {
			order = append(order, t)
		}
		byTable[t] = append(byTable[t], col)
	}
	return byTable, order, rows.Err()
}

func (c *Catalog) sqliteColumns(ctx context.Context, table string) (map[string][]string, []string, error) {
	rows, err := c.db.QueryContext(ctx, sqliteTablesQuery, table)
	if err != nil {
		return nil, nil, err
	}
	var order []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			rows.Close()
			return nil, nil, err
		}
		order = append(order, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	byTable := make(map[string][]string, len(order))
	for _, t := range order {
		cols, err := c.sqliteTableInfo(ctx, t)
		if err != nil {
			return nil, nil, err
		}
		byTable[t] = cols
	}
	return byTable, order, nil
}

func (c *Catalog) sqliteTableInfo(ctx context.Context, table string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, sqliteColumnsQuery, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func pickTable(candidates []string, name string) (string, bool) {
	for _, c := range candidates {
		if c == name {
			return c, true
		}
	}
	if len(candidates) == 1 && strings.EqualFold(candidates[0], name) {
		return candidates[0], true
	}
	return "", false
}

func splitQualified(name string) (schema, table string) {
	if s, t, ok := strings.Cut(name, "."); ok {
		return s, t
	}
	return "", name
}
