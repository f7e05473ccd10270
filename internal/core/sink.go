package core

import (
	"encoding/csv"
	"io"
)

// RowWriter receives encoded output rows.
type RowWriter interface {
	WriteRow(row []any) error
}

// RowSink is a RowWriter with a lifecycle: the header is written once before
// any row and Flush is called after the last one.
type RowSink interface {
	RowWriter
	WriteHeader(headers []string) error
	Flush() error
}

// CSVSink writes rows as CSV.
type CSVSink struct {
	w   *csv.Writer
	buf []string
}

// NewCSVSink returns a sink writing to w.
func NewCSVSink(w io.Writer, opts OutputOptions) *CSVSink {
	return &CSVSink{w: opts.writer(w)}
}

func (s *CSVSink) WriteHeader(headers []string) error {
	return s.w.Write(headers)
}

func (s *CSVSink) WriteRow(row []any) error {
	s.buf = formatRow(row, s.buf)
	return s.w.Write(s.buf)
}

func (s *CSVSink) Flush() error {
	s.w.Flush()
	return s.w.Error()
}

// SliceSink collects rows in memory.
type SliceSink struct {
	Header []string
	Rows   [][]any
}

func (s *SliceSink) WriteHeader(headers []string) error {
	s.Header = append([]string(nil), headers...)
	return nil
}

func (s *SliceSink) WriteRow(row []any) error {
	s.Rows = append(s.Rows, row)
	return nil
}

func (s *SliceSink) Flush() error { return nil }
