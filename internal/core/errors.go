package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/empenhos/internal/mapping"
	"github.com/JonMunkholm/empenhos/internal/store"
)

// ConnectivityError reports that the store could not be reached.
type ConnectivityError = store.ConnectivityError

// ValueError reports a source cell that cannot be converted to its column type.
type ValueError struct {
	Field  string
	Column string
	Type   mapping.ValueType
	Value  string
	Err    error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("cannot convert field %q to %s for column %s: %v", e.Field, e.Type, e.Column, e.Err)
}

func (e *ValueError) Unwrap() error {
	return e.Err
}

// LookupError reports a failed existence check. It never fails a row: the
// record is treated as not found and inserted.
type LookupError struct {
	Table  string
	Column string
	Err    error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s.%s: %v", e.Table, e.Column, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// InsertError reports a failed insert into a physical table.
type InsertError struct {
	Table string
	Class store.Class
	Err   error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("insert into %s: %v", e.Table, e.Err)
}

func (e *InsertError) Unwrap() error {
	return e.Err
}

// RowError is the failure that ended a row. Table is the table key being
// processed when it happened, empty for failures outside any table.
type RowError struct {
	Ordinal int
	Line    int
	Table   string
	Err     error
}

func (e *RowError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("row %d: %v", e.Ordinal, e.Err)
	}
	return fmt.Sprintf("row %d, table %s: %v", e.Ordinal, e.Table, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// kindOf classifies the cause of a row failure.
func kindOf(err error) Kind {
	var (
		valueErr  *ValueError
		insertErr *InsertError
	)
	switch {
	case errors.As(err, &valueErr):
		return KindValue
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case store.IsConnectivity(err):
		return KindConnectivity
	case errors.As(err, &insertErr):
		return KindInsert
	default:
		return KindTransaction
	}
}
