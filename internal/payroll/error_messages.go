package payroll

// # Error Codes Reference
//
// MapError turns any error returned from this package, package xlsx or a
// Store into a UserMessage with a code users can quote to support.
//
//	XLSX001  file is not a zip package              xlsx.ErrArchive
//	XLSX002  package has no worksheet               xlsx.ErrMissingWorksheet
//	XLSX003  worksheet or string table is damaged   xlsx.ErrMarkup
//	XLSX004  cell points past the string table      xlsx.ErrSharedStringIndex
//	XLSX005  cell coordinate has no column letters  xlsx.ErrInvalidColumn
//
//	VAL001   month not written as YYYY-MM           ErrInvalidMonth
//	VAL002   identity column missing                ErrMissingColumn
//	VAL003   lookup field left empty                ErrInvalidInput
//
//	FILE001  upload over the size limit             ErrFileTooLarge
//	FILE002  not an .xlsx upload                    ErrUnsupportedFile
//	FILE003  nothing uploaded                       ErrEmptyFile, "no file provided"
//
//	UPL001   all import slots busy                  ErrTooManyUploads
//	UPL002   request cancelled                      context.Canceled
//	UPL003   import ran past its deadline           context.DeadlineExceeded
//
//	QRY001   no employee with that identity         ErrEmployeeNotFound
//	QRY002   no record for that month               ErrRecordNotFound
//
//	AUTH001  wrong username or password             "invalid credentials"
//	AUTH002  admin page without a session           "login required"
//
//	RATE001  request throttled                      "rate limit"
//
//	DB001    database unreachable                   "connection refused"
//	DB002    database connection dropped            "connection reset"
//	DB003    data directory full                    "no space left"
//	DB004    data directory not writable            "permission denied", "read-only file system"
//
//	ERR000   anything else; check the logs for the underlying error
//
// Typed matches run first so wrapped errors map by identity. Text patterns
// are matched case-insensitively with strings.Contains, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/paystub/internal/xlsx"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorMatch struct {
	target error
	msg    UserMessage
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorMatches = []errorMatch{
	{xlsx.ErrArchive, UserMessage{
		Message: "The file is not a valid Excel workbook",
		Action:  "Save the sheet as .xlsx and upload it again",
		Code:    "XLSX001",
	}},
	{xlsx.ErrMissingWorksheet, UserMessage{
		Message: "The workbook does not contain a worksheet",
		Action:  "Check that the salary sheet was saved into the workbook",
		Code:    "XLSX002",
	}},
	{xlsx.ErrMarkup, UserMessage{
		Message: "The workbook is damaged and could not be read",
		Action:  "Open the file in a spreadsheet editor, save it again and retry",
		Code:    "XLSX003",
	}},
	{xlsx.ErrSharedStringIndex, UserMessage{
		Message: "The workbook refers to text it does not contain",
		Action:  "Open the file in a spreadsheet editor, save it again and retry",
		Code:    "XLSX004",
	}},
	{xlsx.ErrInvalidColumn, UserMessage{
		Message: "The workbook contains an invalid cell reference",
		Action:  "Re-export the sheet from your spreadsheet editor",
		Code:    "XLSX005",
	}},

	{ErrInvalidMonth, UserMessage{
		Message: "Month must be written as YYYY-MM",
		Action:  "Enter a month such as 2024-01",
		Code:    "VAL001",
	}},
	{ErrMissingColumn, UserMessage{
		Message: "The sheet is missing a required column",
		Action:  "Make sure the first row contains " + ColumnName + " and " + ColumnCard,
		Code:    "VAL002",
	}},
	{ErrInvalidInput, UserMessage{
		Message: "Name, card number and month are all required",
		Action:  "Enter your name, the last 6 digits of your bank card and pick a month",
		Code:    "VAL003",
	}},

	{ErrFileTooLarge, UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Remove unused sheets or images from the workbook and try again",
		Code:    "FILE001",
	}},
	{ErrUnsupportedFile, UserMessage{
		Message: "Only Excel .xlsx files are supported",
		Action:  "Save the sheet as .xlsx (Excel 2007 or later) and upload it again",
		Code:    "FILE002",
	}},
	{ErrEmptyFile, UserMessage{
		Message: "No file was uploaded",
		Action:  "Please select an .xlsx file to upload",
		Code:    "FILE003",
	}},

	{ErrTooManyUploads, UserMessage{
		Message: "System busy: too many uploads in progress",
		Action:  "Please wait a moment and try again",
		Code:    "UPL001",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL002",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "The import took too long",
		Action:  "Try a smaller workbook or try again later",
		Code:    "UPL003",
	}},

	{ErrEmployeeNotFound, UserMessage{
		Message: "No employee matches that name and card number",
		Action:  "Check your name and the last 6 digits of your bank card",
		Code:    "QRY001",
	}},
	{ErrRecordNotFound, UserMessage{
		Message: "No salary record for that month",
		Action:  "Pick another month or ask payroll whether it has been uploaded",
		Code:    "QRY002",
	}},
}

var errorPatterns = []errorPattern{
	{"no file provided", UserMessage{
		Message: "No file was uploaded",
		Action:  "Please select an .xlsx file to upload",
		Code:    "FILE003",
	}},
	{"invalid credentials", UserMessage{
		Message: "Wrong username or password",
		Action:  "Check your credentials and try again",
		Code:    "AUTH001",
	}},
	{"login required", UserMessage{
		Message: "Please log in first",
		Action:  "Log in with the administrator account",
		Code:    "AUTH002",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB001",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB002",
	}},
	{"no space left", UserMessage{
		Message: "The server has run out of storage space",
		Action:  "Contact the administrator",
		Code:    "DB003",
	}},
	{"permission denied", UserMessage{
		Message: "The server cannot write its data files",
		Action:  "Contact the administrator",
		Code:    "DB004",
	}},
	{"read-only file system", UserMessage{
		Message: "The server cannot write its data files",
		Action:  "Contact the administrator",
		Code:    "DB004",
	}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// A nil error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, m := range errorMatches {
		if errors.Is(err, m.target) {
			msg := m.msg
			var mc *MissingColumnError
			if errors.As(err, &mc) {
				msg.Message = fmt.Sprintf("The sheet is missing the required column %s", mc.Column)
			}
			return msg
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

// FormatUserError renders err as "Message (Code: XXX). Action".
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
