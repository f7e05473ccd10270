package core

import (
	"encoding/csv"
	"io"
	"log/slog"

	"github.com/JonMunkholm/seconvert/internal/schema"
)

// InputOptions controls how CSV input is parsed. The zero value reads
// comma-separated data. Empty lines are skipped by the CSV reader; a row of
// empty cells is data and reaches the observer.
type InputOptions struct {
	Comma            rune // field delimiter, ',' when zero
	Comment          rune // lines starting with this rune are ignored
	LazyQuotes       bool
	TrimLeadingSpace bool
}

// OutputOptions controls how CSV output is written.
type OutputOptions struct {
	Comma   rune // field delimiter, ',' when zero
	UseCRLF bool
}

// Options configures a Converter.
type Options struct {
	From     *schema.Schema
	To       *schema.Schema
	Observer Observer

	Input  InputOptions
	Output OutputOptions

	// RejectDuplicatePKs applies when an output row repeats a primary key
	// already written. Empty means RejectKeep.
	RejectDuplicatePKs RejectPolicy
	// RejectInvalidPKs applies when an output primary key component is nil
	// or empty. Empty means RejectKeep.
	RejectInvalidPKs RejectPolicy

	Logger *slog.Logger
}

func (o InputOptions) reader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	if o.Comma != 0 {
		cr.Comma = o.Comma
	}
	cr.Comment = o.Comment
	cr.LazyQuotes = o.LazyQuotes
	cr.TrimLeadingSpace = o.TrimLeadingSpace
	// Ragged rows are reported by the schema codec with better context.
	cr.FieldsPerRecord = -1
	return cr
}

func (o OutputOptions) writer(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	if o.Comma != 0 {
		cw.Comma = o.Comma
	}
	cw.UseCRLF = o.UseCRLF
	return cw
}
