package core

// error_messages.go turns conversion errors into coded messages a user can
// act on. Codes by prefix:
//
//	SCH  schema definitions and lookups (SCH001 invalid, SCH002 unknown, SCH003 not a superset)
//	HDR  input headers against the source schema
//	ROW  rows that do not fit their schema
//	OBS  observers (OBS001 contract, OBS002 unknown, OBS003 mapping file)
//	PK   primary keys (PK001 duplicate, PK002 invalid)
//	CFG  reject policy values
//	FILE request bodies: size, CSV, encoding, empty input, JSON paths
//	DB   table loads: unique and foreign keys, connectivity, missing tables
//	CNV  the conversion itself: busy, cancelled, timed out
//	ERR000 anything else; the log has the technical error
//
// Typed errors are matched with errors.As and errors.Is before any text
// matching, so wrapping never hides a specific code. Text patterns are
// tried in order and compared case-insensitively.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/seconvert/internal/schema"
)

// UserMessage is what a user sees for an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var (
	msgSchemaDefinition = UserMessage{"Invalid schema definition", "Fix the schema file and reload", "SCH001"}
	msgSchemaUnknown    = UserMessage{"Unknown schema", "Check the schema id against the schema list", "SCH002"}
	msgSchemaSuperset   = UserMessage{"Schema is not a superset of the other schema", "Add the missing fields or align the primary keys", "SCH003"}
	msgHeaderMismatch   = UserMessage{"Input headers do not match the source schema", "Rename, add or remove the listed columns", "HDR001"}
	msgRowCodec         = UserMessage{"A row does not fit its schema", "Check the row for missing cells or unexpected fields", "ROW001"}
	msgObserverContract = UserMessage{"Observer parameters do not match the source schema", "Declare exactly the source schema's field ids", "OBS001"}
	msgObserverUnknown  = UserMessage{"Unknown observer", "Check the observer name against the observer list", "OBS002"}
	msgMappingInvalid   = UserMessage{"Invalid mapping file", "Fix the mapping file and try again", "OBS003"}
	msgDuplicatePK      = UserMessage{"Duplicate primary key", "Remove the duplicate rows or relax the duplicate policy", "PK001"}
	msgInvalidPK        = UserMessage{"Invalid primary key", "Fill in the key fields or relax the invalid policy", "PK002"}
	msgPolicy           = UserMessage{"Invalid reject policy", "Use drop, keep or error", "CFG001"}
	msgTooMany          = UserMessage{"System is busy processing other conversions", "Please wait a moment and try again", "CNV001"}
	msgCancelled        = UserMessage{"Request was cancelled", "Please try again", "CNV002"}
	msgDeadline         = UserMessage{"Request timed out", "Try a smaller file or try again later", "CNV003"}
)

// errorPatterns maps lowercase fragments of technical error text to
// messages. More specific fragments come first.
var errorPatterns = []struct {
	fragment string
	msg      UserMessage
}{
	{"unknown schema", msgSchemaUnknown},
	{"unknown observer", msgObserverUnknown},
	{"mapping file", msgMappingInvalid},
	{"invalid definition for schema", msgSchemaDefinition},
	{"duplicate primary key", msgDuplicatePK},
	{"invalid primary key", msgInvalidPK},

	{"file too large", UserMessage{"File exceeds the maximum size limit", "Split the file into smaller chunks", "FILE001"}},
	{"invalid csv", UserMessage{"File is not a valid CSV", "Check quoting and the configured delimiter", "FILE002"}},
	{"encoding error", UserMessage{"File contains invalid characters", "Save the file as UTF-8", "FILE003"}},
	{"no file provided", UserMessage{"No file was provided", "Send the file as the request body", "FILE004"}},
	{"empty file", UserMessage{"The file is empty", "Provide a file with a header row", "FILE005"}},
	{"json path element", UserMessage{"The JSON data path was not found", "Check the data path against the document", "FILE006"}},
	{"json elements must be objects", UserMessage{"The JSON data is not an array of objects", "Check the data path against the document", "FILE006"}},
	{"invalid character", UserMessage{"File is not valid JSON", "Check the document with a JSON validator", "FILE006"}},

	{"duplicate key", UserMessage{"A record with this key already exists in the table", "Remove existing rows or load into an empty table", "DB001"}},
	{"violates unique", UserMessage{"A record with this key already exists in the table", "Remove existing rows or load into an empty table", "DB001"}},
	{"violates foreign key", UserMessage{"Referenced record does not exist", "Load parent tables first", "DB003"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},
	{"does not exist", UserMessage{"Table not found", "Create the target table before loading", "DB008"}},
	{"table not found", UserMessage{"Table not found", "Give the target table name", "DB008"}},
}

var fallbackMessage = UserMessage{"An unexpected error occurred", "Please try again or contact support", "ERR000"}

// MapError converts a technical error to a user-friendly message. It
// returns the zero UserMessage for a nil error and the ERR000 fallback when
// nothing matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	if msg, ok := mapTyped(err); ok {
		return msg
	}

	text := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(text, p.fragment) {
			return p.msg
		}
	}
	return fallbackMessage
}

func mapTyped(err error) (UserMessage, bool) {
	var (
		pkErr       *PrimaryKeyViolation
		contractErr *ObserverContractError
		headerErr   *schema.HeaderMismatchError
		codecErr    *schema.RowCodecError
		defErr      *schema.DefinitionError
		supersetErr *schema.IncompatibleError
	)
	switch {
	case errors.As(err, &pkErr):
		if pkErr.Kind == ViolationDuplicate {
			return msgDuplicatePK, true
		}
		return msgInvalidPK, true
	case errors.As(err, &contractErr):
		return msgObserverContract, true
	case errors.As(err, &headerErr):
		return msgHeaderMismatch, true
	case errors.As(err, &codecErr):
		return msgRowCodec, true
	case errors.As(err, &defErr):
		return msgSchemaDefinition, true
	case errors.As(err, &supersetErr):
		return msgSchemaSuperset, true
	case errors.Is(err, ErrInvalidPolicy):
		return msgPolicy, true
	case errors.Is(err, ErrTooManyConversions):
		return msgTooMany, true
	case errors.Is(err, context.Canceled):
		return msgCancelled, true
	case errors.Is(err, context.DeadlineExceeded):
		return msgDeadline, true
	}
	return UserMessage{}, false
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}
	msg := MapError(err)
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != fallbackMessage.Code
}
