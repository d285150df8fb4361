package core

// # Error Codes Reference
//
// Errors shown to users carry a code they can quote to support staff.
// Codes are grouped by category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: upload exceeds the configured size limit
//	          Action: Split the file or compress it with gzip
//	FILE002 - No file: the request carried no file part
//	          Action: Attach the file in the "file" form field
//	FILE003 - Source unavailable: the file could not be opened or read
//	          Action: Check that the file exists and is readable
//
// # Stream Errors (STR001-STR099)
//
//	STR001 - Not UTF-8: UTF-8 was requested but the file is not UTF-8
//	         Action: Leave the encoding unset to auto-detect it
//	STR002 - Unsupported encoding: the requested encoding is unknown
//	         Action: Use UTF-8 or ISO-8859-1
//	STR003 - Malformed row: quoting is broken somewhere in the file
//	         Action: Check the reported line for stray quote characters
//	STR004 - Stream closed: the file was already released
//	         Action: Open the file again
//
// # Inspection Errors (INS001-INS099)
//
//	INS001 - System busy: too many inspections in progress
//	         Action: Wait a moment and try again
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled
//	REQ002 - Request timed out
//	REQ003 - Bad option: a form field could not be parsed
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Table not found: the load target does not exist
//	DB002 - Column mismatch: header names do not match the table
//	DB003 - Connection refused: database unreachable
//	DB004 - Database disabled: no database is configured
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the application logs for the
// original error.
//
// Sentinel errors are matched with errors.Is first; remaining entries are
// matched case-insensitively against the error text. The first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/fileprocessor/internal/detect"
	"github.com/JonMunkholm/fileprocessor/internal/record"
	"github.com/JonMunkholm/fileprocessor/internal/scratch"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern maps an error to a user message, either by sentinel (target)
// or by a lower-case substring of the error text (pattern).
type errorPattern struct {
	target  error
	pattern string
	msg     UserMessage
}

func (ep errorPattern) matches(err error, text string) bool {
	if ep.target != nil {
		return errors.Is(err, ep.target)
	}
	return strings.Contains(text, ep.pattern)
}

var errorPatterns = []errorPattern{
	// Stream errors come first: they are usually wrapped inside a source
	// or request error whose text would match a broader entry.
	{
		target: scratch.ErrInvalidUTF8,
		msg: UserMessage{
			Message: "The file is not valid UTF-8",
			Action:  "Leave the encoding unset to auto-detect it",
			Code:    "STR001",
		},
	},
	{
		target: detect.ErrUnsupportedEncoding,
		msg: UserMessage{
			Message: "The requested encoding is not supported",
			Action:  "Use UTF-8 or ISO-8859-1",
			Code:    "STR002",
		},
	},
	{
		target: record.ErrBareQuote,
		msg:    malformedRow,
	},
	{
		target: record.ErrQuote,
		msg:    malformedRow,
	},
	{
		target: record.ErrUnterminatedQuote,
		msg:    malformedRow,
	},
	{
		target: ErrStreamClosed,
		msg: UserMessage{
			Message: "The file was already released",
			Action:  "Open the file again",
			Code:    "STR004",
		},
	},

	// File errors
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file or compress it with gzip",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was provided",
			Action:  `Attach the file in the "file" form field`,
			Code:    "FILE002",
		},
	},
	{
		target: ErrSourceUnavailable,
		msg: UserMessage{
			Message: "The file could not be read",
			Action:  "Check that the file exists and is readable",
			Code:    "FILE003",
		},
	},

	// Inspection and request errors
	{
		target: ErrTooManyInspections,
		msg: UserMessage{
			Message: "System is busy processing other files",
			Action:  "Please wait a moment and try again",
			Code:    "INS001",
		},
	},
	{
		target: context.Canceled,
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		target: context.DeadlineExceeded,
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "REQ002",
		},
	},

	{
		pattern: "invalid request field",
		msg: UserMessage{
			Message: "A request option is invalid",
			Action:  "Check the option named in the error and resend",
			Code:    "REQ003",
		},
	},

	// Database errors, matched by text since they come from the driver.
	{
		pattern: "does not exist (sqlstate 42p01)",
		msg: UserMessage{
			Message: "Target table not found",
			Action:  "Verify the table name is correct",
			Code:    "DB001",
		},
	},
	{
		pattern: "(sqlstate 42703)",
		msg: UserMessage{
			Message: "File headers do not match the table columns",
			Action:  "Rename the header row to the table's column names",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB003",
		},
	},
	{
		pattern: "database not configured",
		msg: UserMessage{
			Message: "Loading into a database is not enabled",
			Action:  "Set DATABASE_URL and restart the service",
			Code:    "DB004",
		},
	},
}

var malformedRow = UserMessage{
	Message: "The file contains a malformed row",
	Action:  "Check the reported line for stray quote characters",
	Code:    "STR003",
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. If
// nothing matches, a generic fallback with code ERR000 is returned.
//
// Example:
//
//	_, err := core.Open(path, core.Options{Encoding: "utf-8"})
//	msg := core.MapError(err)
//	// msg.Code == "STR001" for a Latin-1 file
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	text := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if ep.matches(err, text) {
			return ep.msg
		}
	}
	return defaultMessage
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

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
