package core

// error_messages.go maps technical errors to user-facing messages with a code
// that can be quoted to support.
//
//	IMP001-IMP099  import pipeline (meet, swimmer resolution, limiter)
//	FILE001-FILE099  documents (size, encoding, layout)
//	DB001-DB099  storage
//	REQ001-REQ099  request handling (cancelled, timed out)
//	ERR000  anything else; check the logs

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var (
	msgMeetNotFound = UserMessage{
		Message: "Meet not found",
		Action:  "Create the meet before importing its entries or results",
		Code:    "IMP001",
	}
	msgSwimmerNotFound = UserMessage{
		Message: "Swimmer not found",
		Action:  "Import the meet entries before its results",
		Code:    "IMP002",
	}
	msgAmbiguousSwimmer = UserMessage{
		Message: "More than one swimmer has this name",
		Action:  "Resolve the duplicate swimmers before re-importing",
		Code:    "IMP003",
	}
	msgTooManyImports = UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "IMP004",
	}
	msgResultsURL = UserMessage{
		Message: "Remote results are not configured",
		Action:  "Set RESULTS_URL or upload the results file",
		Code:    "IMP005",
	}
	msgInvalidRecord = UserMessage{
		Message: "A record contains an invalid value",
		Action:  "Check the failed rows and correct the source file",
		Code:    "IMP006",
	}
	msgUnknownDataset = UserMessage{
		Message: "Unknown dataset",
		Action:  "Use entries or results",
		Code:    "IMP007",
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Please select a file to import",
		Code:    "FILE004",
	}
	msgDocument = UserMessage{
		Message: "The file could not be read",
		Action:  "Check that the file is a valid entries export or results page",
		Code:    "FILE002",
	}
	msgStore = UserMessage{
		Message: "The database rejected the import",
		Action:  "Please try again; contact support if it persists",
		Code:    "DB001",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}
	msgDeadline = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "REQ002",
	}
)

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns refine a DocumentError or StoreError by its text.
var errorPatterns = []errorPattern{
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save file as UTF-8 encoding",
			Code:    "FILE003",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "header has",
		msg: UserMessage{
			Message: "The entries file has too few columns",
			Action:  "Export the entries again using the full vendor layout",
			Code:    "FILE006",
		},
	},
	{
		pattern: "unexpected status code",
		msg: UserMessage{
			Message: "The results page could not be downloaded",
			Action:  "Check RESULTS_URL or upload the results file",
			Code:    "FILE007",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
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
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB006",
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
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-facing message.
// Known sentinels and error types are matched first; DocumentError and
// StoreError are then refined by text, case-insensitively.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, ErrMeetNotFound):
		return msgMeetNotFound
	case errors.Is(err, ErrAmbiguousSwimmer):
		return msgAmbiguousSwimmer
	case errors.Is(err, ErrSwimmerNotFound):
		return msgSwimmerNotFound
	case errors.Is(err, ErrTooManyImports):
		return msgTooManyImports
	case errors.Is(err, ErrResultsURLNotConfigured):
		return msgResultsURL
	case errors.Is(err, ErrNoDocuments):
		return msgNoFile
	case errors.Is(err, ErrUnknownDataset):
		return msgUnknownDataset
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgDeadline
	}

	errStr := strings.ToLower(err.Error())
	refine := func(fallback UserMessage) UserMessage {
		for _, ep := range errorPatterns {
			if strings.Contains(errStr, ep.pattern) {
				return ep.msg
			}
		}
		return fallback
	}

	var docErr *DocumentError
	var storeErr *StoreError
	var recErr *RecordParseError
	switch {
	case errors.As(err, &docErr):
		return refine(msgDocument)
	case errors.As(err, &storeErr):
		return refine(msgStore)
	case errors.As(err, &recErr):
		return msgInvalidRecord
	}
	return refine(defaultMessage)
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
