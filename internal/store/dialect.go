// Package store opens the target database and hides the SQL differences
// between the supported engines: placeholder syntax, identifier quoting,
// how generated ids come back, and how a failed statement affects the
// surrounding transaction.
package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect describes one SQL engine.
type Dialect struct {
	Name string

	quote    byte
	numbered bool

	// Returning reports whether INSERT ... RETURNING yields generated ids.
	// Otherwise the driver's LastInsertId is used.
	Returning bool

	// AbortsOnError reports whether a failed statement poisons the open
	// transaction until it is rolled back to a savepoint.
	AbortsOnError bool
}

var (
	Postgres = Dialect{Name: "postgres", quote: '"', numbered: true, Returning: true, AbortsOnError: true}
	MySQL    = Dialect{Name: "mysql", quote: '`'}
	SQLite   = Dialect{Name: "sqlite", quote: '"'}
)

// DialectFor returns the dialect for a configured driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Placeholder returns the bind parameter for the n-th argument (1-based).
func (d Dialect) Placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Placeholders returns n bind parameters starting at from, joined by commas.
func (d Dialect) Placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = d.Placeholder(from + i)
	}
	return strings.Join(parts, ", ")
}

// Quote quotes an identifier. Each part of a schema-qualified name is quoted
// separately and embedded quote characters are doubled.
func (d Dialect) Quote(name string) string {
	q := string(d.quote)
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = q + strings.ReplaceAll(p, q, q+q) + q
	}
	return strings.Join(parts, ".")
}

// QuoteList quotes each identifier and joins them with commas.
func (d Dialect) QuoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.Quote(n)
	}
	return strings.Join(quoted, ", ")
}

func (d Dialect) String() string {
	return d.Name
}
