package schema

import (
	"fmt"
	"strings"
)

// DefinitionError reports a malformed schema definition: a field without an
// id, a duplicated field id, or a primary key naming an unknown field.
type DefinitionError struct {
	Schema   string
	Problems []string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("invalid definition for schema :%s: %s", e.Schema, strings.Join(e.Problems, "; "))
}

// HeaderMismatchError reports every schema field whose header is missing
// from, or duplicated in, an input header row.
type HeaderMismatchError struct {
	Schema     string
	Headers    []string
	Missing    []Field
	Duplicated []Field
}

func (e *HeaderMismatchError) Error() string {
	var reasons []string
	for _, f := range e.Missing {
		reasons = append(reasons, fmt.Sprintf("'%s' is missing (field %s)", f.Header, f.ID))
	}
	for _, f := range e.Duplicated {
		reasons = append(reasons, fmt.Sprintf("'%s' is duplicated (field %s)", f.Header, f.ID))
	}
	return fmt.Sprintf("these header fields are invalid for schema :%s, %q, because %s",
		e.Schema, e.Headers, strings.Join(reasons, "; "))
}

// RowCodecError reports a violation of the IDHash or Row contracts.
type RowCodecError struct {
	Schema string
	Reason string
}

func (e *RowCodecError) Error() string {
	return fmt.Sprintf("schema :%s: %s", e.Schema, e.Reason)
}

// IncompatibleError reports that a schema is not a structural superset of
// another.
type IncompatibleError struct {
	Schema  string
	Other   string
	Reason  string
	Missing []string
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("schema :%s is not a superset of :%s because %s", e.Schema, e.Other, e.Reason)
}

func codecErrorf(schemaID, format string, args ...any) error {
	return &RowCodecError{Schema: schemaID, Reason: fmt.Sprintf(format, args...)}
}
