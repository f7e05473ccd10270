package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrInvalidPolicy is returned for a reject policy other than drop, keep or
// error.
var ErrInvalidPolicy = errors.New("invalid reject policy")

// recordPreviewLen bounds how much of a record is rendered into errors.
const recordPreviewLen = 160

// ObserverContractError reports that an adapted function's declared
// parameters do not line up with the source schema's field ids.
type ObserverContractError struct {
	Schema     string
	Undeclared []string // declared parameters that are not schema field ids
	Unconsumed []string // schema field ids the function does not declare
}

func (e *ObserverContractError) Error() string {
	var parts []string
	if len(e.Undeclared) > 0 {
		parts = append(parts, fmt.Sprintf("observer parameters do not match '%s' schema field ids: %s",
			e.Schema, strings.Join(e.Undeclared, ", ")))
	}
	if len(e.Unconsumed) > 0 {
		parts = append(parts, fmt.Sprintf("observer must consume remaining parameters for these '%s' schema field ids: %s",
			e.Schema, strings.Join(e.Unconsumed, ", ")))
	}
	return strings.Join(parts, "; ")
}

// ViolationKind distinguishes the two primary key violations.
type ViolationKind string

const (
	ViolationInvalid   ViolationKind = "invalid"
	ViolationDuplicate ViolationKind = "duplicate"
)

// PrimaryKeyViolation reports an output row whose primary key is incomplete
// or already seen, under the error policy.
type PrimaryKeyViolation struct {
	Kind   ViolationKind
	Fields []string
	Key    []any
}

func (e *PrimaryKeyViolation) Error() string {
	return fmt.Sprintf("%s primary key value %s", e.Kind, formatKey(e.Key))
}

// RowError wraps a failure while processing one input record.
type RowError struct {
	Record string // truncated rendering of the input record
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%v\nwhen parsing this row data:\n%s", e.Err, e.Record)
}

func (e *RowError) Unwrap() error { return e.Err }

// ConversionError wraps any failure of a conversion with its position.
type ConversionError struct {
	Row  int // input data rows read when the failure occurred
	From string
	To   string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("error when converting element %d of data, expected to have an input schema of :%s, and an output schema :%s, but: %v",
		e.Row, e.From, e.To, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

func formatKey(key []any) string {
	parts := make([]string, len(key))
	for i, v := range key {
		if v == nil {
			parts[i] = "nil"
			continue
		}
		parts[i] = fmt.Sprintf("%q", formatValue(v))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
