package core

// # Error Codes Reference
//
// Every failed row and every fatal run error maps to a code that operators can
// quote when reporting a problem.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: a record with this key already exists
//	        Patterns: "duplicate key", "duplicate entry"
//	DB002 - Unique constraint: value must be unique but already exists
//	        Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key: referenced record does not exist
//	        Patterns: "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused: unable to connect to the database
//	        Types: *ConnectivityError; Patterns: "connection refused"
//	DB005 - Connection reset: connection was interrupted
//	        Patterns: "connection reset", "broken pipe"
//	DB006 - Timeout: operation timed out
//	        Patterns: "timeout", "lock wait"
//	DB007 - Deadlock: conflicting operations
//	        Patterns: "deadlock"
//	DB008 - Missing value: a required column received no value
//	        Patterns: "not null constraint", "violates not-null", "cannot be null"
//
// # Mapping Errors (MAP001-MAP099)
//
//	MAP001 - Mapping unreadable: the mapping file could not be read or parsed
//	MAP002 - Mapping invalid: the mapping document has structural problems
//	MAP003 - Schema mismatch: a mapped table or column does not exist
//	MAP004 - Forward reference: a foreign key points at a later table
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - Unsupported source: the file could not be opened as a sheet
//	SRC002 - No header: the source has no header row
//	SRC003 - Unreadable line: one line of the source could not be parsed
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Invalid value: a cell could not be converted to its column type
//	RUN002 - Cancelled: the run was interrupted or a row timed out
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: check the logs for the technical error
//
// Typed errors are matched first. Remaining errors fall back to
// case-insensitive substring patterns; the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/empenhos/internal/mapping"
	"github.com/JonMunkholm/empenhos/internal/source"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgMappingUnreadable = UserMessage{
		Message: "The mapping file could not be read",
		Action:  "Check MAPPING_PATH and that the file is valid JSON or YAML",
		Code:    "MAP001",
	}
	msgMappingInvalid = UserMessage{
		Message: "The mapping file is invalid",
		Action:  "Fix the problems listed in the log and run validate again",
		Code:    "MAP002",
	}
	msgSchemaMismatch = UserMessage{
		Message: "The mapping does not match the database schema",
		Action:  "Check table and column names against the database",
		Code:    "MAP003",
	}
	msgForwardReference = UserMessage{
		Message: "A foreign key refers to a table that is processed later",
		Action:  "Move the referenced table earlier in the mapping",
		Code:    "MAP004",
	}
	msgUnsupportedSource = UserMessage{
		Message: "The source file could not be opened",
		Action:  "Use an .xlsx or .csv file",
		Code:    "SRC001",
	}
	msgNoHeader = UserMessage{
		Message: "The source file has no header row",
		Action:  "Make sure the first non-blank line holds the column names",
		Code:    "SRC002",
	}
	msgUnreadableLine = UserMessage{
		Message: "A line of the source file could not be read",
		Action:  "Check the quoting on the reported line",
		Code:    "SRC003",
	}
	msgInvalidValue = UserMessage{
		Message: "A value could not be converted to its column type",
		Action:  "Correct the cell or change the column type in the mapping",
		Code:    "RUN001",
	}
	msgCancelled = UserMessage{
		Message: "The import was interrupted",
		Action:  "Run the import again; imported rows are reused",
		Code:    "RUN002",
	}
	msgUnreachable = UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are matched with strings.Contains against the lowercased
// error text. Specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this key already exists",
			Action:  "Review the unique column configured for this table",
			Code:    "DB001",
		},
	},
	{
		pattern: "duplicate entry",
		msg: UserMessage{
			Message: "A record with this key already exists",
			Action:  "Review the unique column configured for this table",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Set campo_unico so existing records are reused",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Set campo_unico so existing records are reused",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Ensure the referenced table is mapped before this one",
			Code:    "DB003",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Ensure the referenced table is mapped before this one",
			Code:    "DB003",
		},
	},
	{
		pattern: "not null constraint",
		msg: UserMessage{
			Message: "A required column received no value",
			Action:  "Map a source field to the column or fill the empty cells",
			Code:    "DB008",
		},
	},
	{
		pattern: "violates not-null",
		msg: UserMessage{
			Message: "A required column received no value",
			Action:  "Map a source field to the column or fill the empty cells",
			Code:    "DB008",
		},
	},
	{
		pattern: "cannot be null",
		msg: UserMessage{
			Message: "A required column received no value",
			Action:  "Map a source field to the column or fill the empty cells",
			Code:    "DB008",
		},
	},
	{
		pattern: "connection refused",
		msg:     msgUnreachable,
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "broken pipe",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "lock wait",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Lower IMPORT_WORKERS or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Raise IMPORT_ROW_TIMEOUT or try again later",
			Code:    "DB006",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for the technical error",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	err := errors.New("duplicate key value violates unique constraint")
//	msg := MapError(err)
//	// msg.Code == "DB001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	if msg, ok := mapTyped(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

func mapTyped(err error) (UserMessage, bool) {
	var (
		cfgErr   *mapping.ConfigError
		readErr  *source.ReadError
		valueErr *ValueError
		connErr  *ConnectivityError
	)
	switch {
	case errors.As(err, &cfgErr):
		return mapConfigError(cfgErr), true
	case errors.As(err, &valueErr):
		return msgInvalidValue, true
	case errors.As(err, &readErr):
		return msgUnreadableLine, true
	case errors.Is(err, source.ErrUnsupportedFormat):
		return msgUnsupportedSource, true
	case errors.Is(err, source.ErrNoHeader):
		return msgNoHeader, true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return msgCancelled, true
	case errors.As(err, &connErr):
		return msgUnreachable, true
	}
	return UserMessage{}, false
}

func mapConfigError(err *mapping.ConfigError) UserMessage {
	for _, p := range err.Problems {
		if strings.Contains(p, "processed later") {
			return msgForwardReference
		}
	}
	switch {
	case err.Source == "schema":
		return msgSchemaMismatch
	case err.Err != nil:
		return msgMappingUnreadable
	default:
		return msgMappingInvalid
	}
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
