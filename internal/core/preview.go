package core

import (
	"errors"
	"io"
)

// DefaultPreviewRows is the number of output rows a preview returns when no
// limit is given.
const DefaultPreviewRows = 20

var errPreviewFull = errors.New("preview limit reached")

// Preview is the result of a dry run over the start of an input.
type Preview struct {
	Headers   []string   `json:"headers"`
	Rows      [][]string `json:"rows"`
	Truncated bool       `json:"truncated"` // input had more output rows than the limit
	Stats     Stats      `json:"stats"`
}

type previewSink struct {
	SliceSink
	limit int
}

func (s *previewSink) WriteRow(row []any) error {
	if len(s.Rows) >= s.limit {
		return errPreviewFull
	}
	return s.SliceSink.WriteRow(row)
}

// Preview converts CSV input until limit output rows have been produced and
// returns them rendered as output cells. Nothing is written anywhere. The
// observer's OnEnd is only called when the whole input fit in the preview.
func (c *Converter) Preview(input io.Reader, limit int) (*Preview, error) {
	if limit <= 0 {
		limit = DefaultPreviewRows
	}
	sink := &previewSink{limit: limit}

	err := c.ConvertCSV(input, sink)
	truncated := errors.Is(err, errPreviewFull)
	if err != nil && !truncated {
		return nil, err
	}

	p := &Preview{
		Headers:   sink.Header,
		Rows:      make([][]string, len(sink.Rows)),
		Truncated: truncated,
		Stats:     c.stats,
	}
	for i, row := range sink.Rows {
		p.Rows[i] = formatRow(row, nil)
	}
	return p, nil
}
