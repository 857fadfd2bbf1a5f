package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Class groups driver errors by what the caller can do about them.
type Class int

const (
	ClassUnknown      Class = iota
	ClassConstraint         // the data violates a constraint; the row is bad
	ClassData               // a value could not be stored as the column's type
	ClassStatement          // the SQL refers to something that is not there
	ClassConnectivity       // the store is unreachable; the run should stop
	ClassCanceled           // the context ended
)

func (c Class) String() string {
	switch c {
	case ClassConstraint:
		return "constraint"
	case ClassData:
		return "data"
	case ClassStatement:
		return "statement"
	case ClassConnectivity:
		return "connectivity"
	case ClassCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ConnectivityError reports that the store could not be reached.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("database unreachable (%s): %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// IsConnectivity reports whether err means the store is unreachable.
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	if errors.As(err, &ce) {
		return true
	}
	return Classify(err) == ClassConnectivity
}

// Classify inspects a driver error.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassCanceled
	}
	var ce *ConnectivityError
	if errors.As(err, &ce) {
		return ClassConnectivity
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, mysql.ErrInvalidConn) {
		return ClassConnectivity
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifySQLState(pgErr.Code)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return ClassConnectivity
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return classifyMySQL(myErr.Number)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return classifySQLite(liteErr.Code())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassConnectivity
	}

	return classifyMessage(err.Error())
}

// classifySQLState maps a PostgreSQL SQLSTATE by class.
func classifySQLState(code string) Class {
	if len(code) < 2 {
		return ClassUnknown
	}
	switch code[:2] {
	case "23": // Integrity Constraint Violation
		return ClassConstraint
	case "22": // Data Exception
		return ClassData
	case "42": // Syntax Error or Access Rule Violation
		return ClassStatement
	case "08", // Connection Exception
		"57", // Operator Intervention
		"53": // Insufficient Resources
		return ClassConnectivity
	}
	return ClassUnknown
}

func classifyMySQL(number uint16) Class {
	switch number {
	case 1048, // column cannot be null
		1062, // duplicate entry
		1216, 1217, 1451, 1452, // foreign key
		1364, // field has no default
		3819: // check constraint
		return ClassConstraint
	case 1264, 1265, 1292, 1366, 1406: // out of range, truncated, bad value
		return ClassData
	case 1054, 1064, 1146: // unknown column, syntax, unknown table
		return ClassStatement
	case 1040, 1045, 1053, 2002, 2003, 2006, 2013: // connection limits, auth, server gone
		return ClassConnectivity
	}
	return ClassUnknown
}

func classifySQLite(code int) Class {
	switch code & 0xff {
	case sqlite3.SQLITE_CONSTRAINT:
		return ClassConstraint
	case sqlite3.SQLITE_MISMATCH, sqlite3.SQLITE_TOOBIG:
		return ClassData
	case sqlite3.SQLITE_ERROR:
		return ClassStatement
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_IOERR:
		return ClassConnectivity
	}
	return ClassUnknown
}

// classifyMessage is the fallback for errors that lost their type on the way up.
func classifyMessage(msg string) Class {
	msg = strings.ToLower(msg)
	switch {
	case containsAny(msg, "duplicate key", "unique constraint", "foreign key constraint",
		"violates not-null", "violates check constraint", "constraint failed"):
		return ClassConstraint
	case containsAny(msg, "connection refused", "connection reset", "broken pipe",
		"bad connection", "no such host", "i/o timeout", "server closed"):
		return ClassConnectivity
	}
	return ClassUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
