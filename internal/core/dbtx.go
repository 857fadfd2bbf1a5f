package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/empenhos/internal/mapping"
	"github.com/JonMunkholm/empenhos/internal/store"
)

// DBTX is the subset of *sql.DB and *sql.Tx the engine writes through.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const lookupSavepoint = "empenhos_lookup"

// LookupSQL builds the natural-key existence query for a table mapping.
func LookupSQL(d store.Dialect, t mapping.TableMapping) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s LIMIT 1",
		d.Quote(t.IDColumn), d.Quote(t.Table), d.Quote(t.UniqueField), d.Placeholder(1))
}

// FindExisting returns the id of the first record whose unique column equals
// value. Any query failure is a *LookupError; callers treat it as not found.
func FindExisting(ctx context.Context, q DBTX, d store.Dialect, t mapping.TableMapping, value any) (int64, bool, error) {
	var id sql.NullInt64
	err := q.QueryRowContext(ctx, LookupSQL(d, t), value).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &LookupError{Table: t.Key, Column: t.UniqueField, Err: err}
	}
	if !id.Valid {
		return 0, false, nil
	}
	return id.Int64, true, nil
}

// findInSavepoint runs FindExisting so that a failed lookup leaves the
// transaction usable on dialects that abort it after any error.
// The returned error is a *LookupError for the lookup itself; anything else
// means the transaction can no longer be used.
func findInSavepoint(ctx context.Context, q DBTX, d store.Dialect, t mapping.TableMapping, value any) (int64, bool, error) {
	if !d.AbortsOnError {
		return FindExisting(ctx, q, d, t, value)
	}

	if _, err := q.ExecContext(ctx, "SAVEPOINT "+lookupSavepoint); err != nil {
		return 0, false, fmt.Errorf("savepoint: %w", err)
	}
	id, found, err := FindExisting(ctx, q, d, t, value)
	if err != nil {
		if _, rbErr := q.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+lookupSavepoint); rbErr != nil {
			return 0, false, fmt.Errorf("rollback to savepoint: %w", rbErr)
		}
		return 0, false, err
	}
	if _, err := q.ExecContext(ctx, "RELEASE SAVEPOINT "+lookupSavepoint); err != nil {
		return 0, false, fmt.Errorf("release savepoint: %w", err)
	}
	return id, found, nil
}

// InsertSQL builds the insert statement for a payload. With returning set the
// statement also yields the id column.
func InsertSQL(d store.Dialect, t mapping.TableMapping, columns []string, returning bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(t.Table), d.QuoteList(columns), d.Placeholders(1, len(columns)))
	if returning {
		fmt.Fprintf(&b, " RETURNING %s", d.Quote(t.IDColumn))
	}
	return b.String()
}

// Insert writes one record and returns its generated id when the store
// reports one. A failure is an *InsertError.
func Insert(ctx context.Context, q DBTX, d store.Dialect, t mapping.TableMapping, fields Fields) (int64, bool, error) {
	if len(fields) == 0 {
		return 0, false, nil
	}

	if d.Returning && t.IDColumn != "" {
		var id sql.NullInt64
		err := q.QueryRowContext(ctx, InsertSQL(d, t, fields.Columns(), true), fields.Values()...).Scan(&id)
		if err != nil {
			return 0, false, &InsertError{Table: t.Key, Class: store.Classify(err), Err: err}
		}
		return id.Int64, id.Valid, nil
	}

	res, err := q.ExecContext(ctx, InsertSQL(d, t, fields.Columns(), false), fields.Values()...)
	if err != nil {
		return 0, false, &InsertError{Table: t.Key, Class: store.Classify(err), Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		return 0, false, nil
	}
	return id, true, nil
}
