package core

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/seconvert/internal/schema"
)

// Stats counts what happened during the most recent conversion.
type Stats struct {
	RowsRead    int   `json:"rows_read"`
	RowsWritten int   `json:"rows_written"`
	Dropped     int   `json:"rows_dropped"`
	Kept        int   `json:"violations_kept"`
	BytesRead   int64 `json:"bytes_read"`
}

// Converter runs an observer over input rows of one schema and writes
// output rows of another. A Converter may be reused for several
// conversions but is not safe for concurrent use; each conversion starts
// with an empty primary key registry.
type Converter struct {
	from, to   *schema.Schema
	observer   Observer
	input      InputOptions
	output     OutputOptions
	dupPolicy  RejectPolicy
	badPolicy  RejectPolicy
	logger     *slog.Logger
	primaryKey []string

	stats Stats
}

// NewConverter validates opts and returns a Converter.
func NewConverter(opts Options) (*Converter, error) {
	var errs []error
	if opts.From == nil {
		errs = append(errs, errors.New("source schema is required"))
	}
	if opts.To == nil {
		errs = append(errs, errors.New("destination schema is required"))
	}
	if opts.Observer == nil {
		errs = append(errs, errors.New("observer is required"))
	}
	if fo, ok := opts.Observer.(*FuncObserver); ok && fo.fn == nil {
		errs = append(errs, errors.New("observer function is nil"))
	}

	dup := opts.RejectDuplicatePKs.orDefault()
	if err := dup.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("duplicate primary keys: %w", err))
	}
	bad := opts.RejectInvalidPKs.orDefault()
	if err := bad.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("invalid primary keys: %w", err))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if b, ok := opts.Observer.(SchemaBinder); ok {
		if err := b.Bind(opts.From, opts.To); err != nil {
			return nil, err
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Converter{
		from:       opts.From,
		to:         opts.To,
		observer:   opts.Observer,
		input:      opts.Input,
		output:     opts.Output,
		dupPolicy:  dup,
		badPolicy:  bad,
		logger:     logger.With("from", opts.From.ID(), "to", opts.To.ID()),
		primaryKey: opts.To.PrimaryKey(),
	}, nil
}

// From returns the source schema.
func (c *Converter) From() *schema.Schema { return c.from }

// To returns the destination schema.
func (c *Converter) To() *schema.Schema { return c.to }

// Stats returns the counters of the most recent conversion.
func (c *Converter) Stats() Stats { return c.stats }

// EachRow converts CSV input to CSV output.
//
// The first input row is the header; it is validated against the source
// schema and handed to the observer. The output header is the destination
// schema's field headers. input and output are closed on return if they
// implement io.Closer.
func (c *Converter) EachRow(input io.Reader, output io.Writer) (err error) {
	defer closeStreams(input, output, &err)
	return c.ConvertCSV(input, NewCSVSink(output, c.output))
}

// ConvertCSV converts CSV input into sink. Unlike EachRow it does not close
// input.
func (c *Converter) ConvertCSV(input io.Reader, sink RowSink) (err error) {
	c.stats = Stats{}
	row := 0
	defer func() {
		if err != nil {
			err = c.wrap(row, err)
		}
	}()

	in, counter := sanitizeInput(input)
	defer func() { c.stats.BytesRead = counter.BytesRead() }()

	cr := c.input.reader(in)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return errors.New("empty file: input has no header row")
	}
	if err != nil {
		return fmt.Errorf("invalid csv: %w", err)
	}

	fm, err := c.from.ValidateHeaders(header)
	if err != nil {
		return err
	}
	if err := c.observer.OnHeader(header, fm); err != nil {
		return err
	}
	if err := sink.WriteHeader(c.to.FieldHeaders()); err != nil {
		return err
	}

	rows := func(yield func(schema.Record, error) bool) {
		for {
			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("invalid csv: %w", err))
				return
			}
			row++
			h, err := c.from.IDHash(rec, fm)
			if err != nil {
				err = &RowError{Record: truncate(strings.Join(rec, ","), recordPreviewLen), Err: err}
			}
			if !yield(h, err) {
				return
			}
		}
	}

	if err := c.transform(rows, sink); err != nil {
		return err
	}
	if err := c.observer.OnEnd(); err != nil {
		return err
	}
	if err := sink.Flush(); err != nil {
		return err
	}

	c.logger.Info("conversion complete",
		"rows_read", c.stats.RowsRead,
		"rows_written", c.stats.RowsWritten,
		"rows_dropped", c.stats.Dropped,
		"bytes_read", counter.BytesRead(),
	)
	return nil
}

// Transform runs the observer over already-decoded source records and
// writes the encoded results to out. It applies the primary key policies
// but does not call the observer's OnHeader or OnEnd.
func (c *Converter) Transform(rows iter.Seq2[schema.Record, error], out RowWriter) error {
	c.stats = Stats{}
	if err := c.transform(rows, out); err != nil {
		return c.wrap(c.stats.RowsRead, err)
	}
	return nil
}

func (c *Converter) transform(rows iter.Seq2[schema.Record, error], out RowWriter) error {
	reg := &keyRegistry{}
	for rec, err := range rows {
		if err != nil {
			return err
		}
		c.stats.RowsRead++
		if err := c.transformOne(rec, reg, out); err != nil {
			return &RowError{Record: truncate(fmt.Sprint(rec), recordPreviewLen), Err: err}
		}
	}
	return nil
}

func (c *Converter) transformOne(rec schema.Record, reg *keyRegistry, out RowWriter) error {
	var emitErr error
	err := c.observer.OnRow(rec, func(h schema.Record) error {
		if emitErr == nil {
			emitErr = c.emit(h, reg, out)
		}
		return emitErr
	})
	if emitErr != nil {
		return emitErr
	}
	return err
}

// emit encodes one observer result and applies the primary key policies
// before writing it.
func (c *Converter) emit(rec schema.Record, reg *keyRegistry, out RowWriter) error {
	row, err := c.to.Row(rec)
	if err != nil {
		return err
	}

	if len(c.primaryKey) > 0 {
		key := make([]any, len(c.primaryKey))
		parts := make([]string, len(c.primaryKey))
		valid := true
		for i, id := range c.primaryKey {
			key[i] = rec[id]
			s, ok := keyComponent(rec[id])
			if !ok {
				valid = false
			}
			parts[i] = s
		}

		var write bool
		switch {
		case !valid:
			write, err = c.reject(ViolationInvalid, c.badPolicy, key)
		case !reg.add(parts):
			write, err = c.reject(ViolationDuplicate, c.dupPolicy, key)
		default:
			write = true
		}
		if err != nil {
			return err
		}
		if !write {
			c.stats.Dropped++
			return nil
		}
	}

	if err := out.WriteRow(row); err != nil {
		return err
	}
	c.stats.RowsWritten++
	return nil
}

func (c *Converter) reject(kind ViolationKind, policy RejectPolicy, key []any) (bool, error) {
	switch policy {
	case RejectDrop:
		c.logger.Warn(fmt.Sprintf("%s primary key value %s - dropping row", kind, formatKey(key)),
			"violation", string(kind))
		return false, nil
	case RejectError:
		return false, &PrimaryKeyViolation{Kind: kind, Fields: c.primaryKey, Key: key}
	default:
		c.logger.Warn(fmt.Sprintf("%s primary key value %s - keeping row", kind, formatKey(key)),
			"violation", string(kind))
		c.stats.Kept++
		return true, nil
	}
}

func (c *Converter) wrap(row int, err error) error {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return err
	}
	return &ConversionError{Row: row, From: c.from.ID(), To: c.to.ID(), Err: err}
}

// closeStreams closes r and w if they are closers, keeping the first error.
func closeStreams(r io.Reader, w io.Writer, errp *error) {
	if rc, ok := r.(io.Closer); ok {
		rc.Close()
	}
	if wc, ok := w.(io.Closer); ok {
		if err := wc.Close(); err != nil && *errp == nil {
			*errp = err
		}
	}
}
