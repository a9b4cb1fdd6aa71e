package core

// error_messages.go maps technical errors to user-facing messages with
// codes for support reference.
//
//	JOIN001 - No common field: the uploaded files share no column name
//	          Action: Upload files with a shared column, or enable stacking
//
//	RULE001 - Invalid threshold: fuzzy threshold outside 0-100
//	          Action: Enter a threshold between 0 and 100
//
//	RULE002 - Invalid rule: unknown field, mode or match type
//	          Action: Pick a field from the table and a valid mode and match type
//
//	FILE001 - File too large
//	FILE002 - Invalid CSV
//	FILE003 - Unsupported file type
//	FILE004 - No file provided
//	FILE005 - Empty file
//	FILE006 - Too many files
//
//	SES001  - Session not found: the session expired or was deleted
//
//	UPL001  - System busy: all load slots are taken
//	UPL002  - Request cancelled
//	UPL003  - Request timeout
//
//	EXP001  - Database export disabled
//	EXP002  - Invalid table name
//	EXP003  - Database error during export
//
//	RATE001 - Rate limited
//	ERR000  - Unknown error
//
// Known sentinel errors are matched first with errors.Is. Errors that only
// carry text (driver errors, wrapped library errors) are then matched
// case-insensitively by substring. The first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/FuzzyCleanse/internal/export"
	"github.com/JonMunkholm/FuzzyCleanse/internal/filter"
	"github.com/JonMunkholm/FuzzyCleanse/internal/join"
	"github.com/JonMunkholm/FuzzyCleanse/internal/loader"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var (
	msgNoCommonField = UserMessage{
		Message: "The uploaded files share no column name",
		Action:  "Upload files with at least one shared column, or enable stacking",
		Code:    "JOIN001",
	}
	msgInvalidThreshold = UserMessage{
		Message: "Threshold must be between 0 and 100",
		Action:  "Enter a threshold between 0 and 100",
		Code:    "RULE001",
	}
	msgInvalidRule = UserMessage{
		Message: "The filter rule is not valid",
		Action:  "Pick a field from the table and a valid mode and match type",
		Code:    "RULE002",
	}
	msgFileTooLarge = UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}
	msgInvalidCSV = UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Ensure the file is comma-separated with balanced quotes",
		Code:    "FILE002",
	}
	msgUnsupported = UserMessage{
		Message: "Unsupported file type",
		Action:  "Upload .csv, .xlsx, .xlsm or .xls files",
		Code:    "FILE003",
	}
	msgNoFiles = UserMessage{
		Message: "No file was selected",
		Action:  "Please select at least one file to upload",
		Code:    "FILE004",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a file with a header row",
		Code:    "FILE005",
	}
	msgTooManyFiles = UserMessage{
		Message: "Too many files in one upload",
		Action:  "Upload fewer files at once",
		Code:    "FILE006",
	}
	msgSessionNotFound = UserMessage{
		Message: "Session not found",
		Action:  "The session may have expired. Please upload your files again",
		Code:    "SES001",
	}
	msgBusy = UserMessage{
		Message: "Too many uploads in progress",
		Action:  "Please wait a moment and try again",
		Code:    "UPL001",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL002",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try smaller files or check your connection",
		Code:    "UPL003",
	}
	msgSinkDisabled = UserMessage{
		Message: "Database export is not configured",
		Action:  "Download the result as CSV or Excel instead",
		Code:    "EXP001",
	}
	msgInvalidTable = UserMessage{
		Message: "Invalid table name",
		Action:  "Use lowercase letters, digits and underscores, starting with a letter",
		Code:    "EXP002",
	}
	msgDatabase = UserMessage{
		Message: "Database export failed",
		Action:  "Please try again in a few moments",
		Code:    "EXP003",
	}
	msgRateLimited = UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}
)

// errorTarget maps a sentinel error to its user message.
type errorTarget struct {
	target error
	msg    UserMessage
}

var errorTargets = []errorTarget{
	{join.ErrNoCommonField, msgNoCommonField},
	{filter.ErrInvalidThreshold, msgInvalidThreshold},
	{filter.ErrInvalidRule, msgInvalidRule},
	{loader.ErrFileTooLarge, msgFileTooLarge},
	{loader.ErrUnsupportedFormat, msgUnsupported},
	{loader.ErrEmptyFile, msgEmptyFile},
	{ErrNoFiles, msgNoFiles},
	{ErrTooManyFiles, msgTooManyFiles},
	{ErrSessionNotFound, msgSessionNotFound},
	{ErrTooManyLoads, msgBusy},
	{context.Canceled, msgCancelled},
	{context.DeadlineExceeded, msgTimeout},
	{export.ErrSinkDisabled, msgSinkDisabled},
	{export.ErrInvalidTableName, msgInvalidTable},
}

// errorPattern defines a substring to match and its user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is matched after errorTargets. More specific patterns come
// first.
var errorPatterns = []errorPattern{
	{"invalid csv", msgInvalidCSV},
	{"file too large", msgFileTooLarge},
	{"unsupported file type", msgUnsupported},
	{"rate limit", msgRateLimited},
	{"connection refused", msgDatabase},
	{"copy into", msgDatabase},
	{"create table", msgDatabase},
	{"timeout", msgTimeout},
}

// defaultMessage is returned when nothing matches (ERR000). Support staff
// should check the logs for the original error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. A nil
// error yields the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, et := range errorTargets {
		if errors.Is(err, et.target) {
			return et.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a display string: "Message (Code: XXX). Action".
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

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
