package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/JonMunkholm/seconvert/internal/schema"
)

// JSONConvert converts a JSON array of objects into CSV output.
//
// dataPath locates the array inside the document: each element is an
// object key or, for arrays, a decimal index. An empty path means the
// document itself is the array. Each object's keys are the input headers;
// they are validated against the source schema whenever they differ from
// the previous object's keys. The document is decoded as a stream, so only
// one element is held in memory at a time.
//
// input and output are closed on return if they implement io.Closer.
func (c *Converter) JSONConvert(input io.Reader, dataPath []string, output io.Writer) (err error) {
	defer closeStreams(input, output, &err)
	return c.ConvertJSON(input, dataPath, NewCSVSink(output, c.output))
}

// ConvertJSON is JSONConvert writing into sink. It does not close input.
func (c *Converter) ConvertJSON(input io.Reader, dataPath []string, sink RowSink) (err error) {
	c.stats = Stats{}
	row := 0
	defer func() {
		if err != nil {
			err = c.wrap(row, err)
		}
	}()

	in, counter := sanitizeInput(input)
	defer func() { c.stats.BytesRead = counter.BytesRead() }()

	dec := json.NewDecoder(in)
	dec.UseNumber()

	if err := descend(dec, dataPath); err != nil {
		return err
	}
	if err := expectDelim(dec, '['); err != nil {
		return fmt.Errorf("data at path %q: %w", dataPath, err)
	}
	if err := sink.WriteHeader(c.to.FieldHeaders()); err != nil {
		return err
	}

	var (
		prevKeys []string
		fm       schema.FieldMap
	)
	rows := func(yield func(schema.Record, error) bool) {
		for dec.More() {
			row++
			keys, values, err := readObject(dec)
			if err != nil {
				yield(nil, err)
				return
			}
			if fm == nil || !slices.Equal(keys, prevKeys) {
				fm, err = c.from.ValidateHeaders(keys)
				if err == nil {
					err = c.observer.OnHeader(keys, fm)
				}
				if err != nil {
					yield(nil, err)
					return
				}
				prevKeys = keys
			}
			h, err := c.from.IDHashValues(values, fm)
			if !yield(h, err) {
				return
			}
		}
	}

	if err := c.transform(rows, sink); err != nil {
		return err
	}
	if err := expectDelim(dec, ']'); err != nil {
		return err
	}
	if err := c.observer.OnEnd(); err != nil {
		return err
	}
	if err := sink.Flush(); err != nil {
		return err
	}

	c.logger.Info("json conversion complete",
		"rows_read", c.stats.RowsRead,
		"rows_written", c.stats.RowsWritten,
		"rows_dropped", c.stats.Dropped,
		"bytes_read", counter.BytesRead(),
	)
	return nil
}

// descend advances dec to the value found by following path.
func descend(dec *json.Decoder, path []string) error {
	for depth, seg := range path {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("reading json at %q: %w", path[:depth], err)
		}
		switch tok {
		case json.Delim('{'):
			found := false
			for dec.More() {
				key, err := dec.Token()
				if err != nil {
					return err
				}
				if key == seg {
					found = true
					break
				}
				if err := skipValue(dec); err != nil {
					return err
				}
			}
			if !found {
				return fmt.Errorf("json path element %q not found", path[:depth+1])
			}
		case json.Delim('['):
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 {
				return fmt.Errorf("json path element %q is not an array index", seg)
			}
			for i := 0; i < idx; i++ {
				if !dec.More() {
					return fmt.Errorf("json path element %q: index out of range", path[:depth+1])
				}
				if err := skipValue(dec); err != nil {
					return err
				}
			}
			if !dec.More() {
				return fmt.Errorf("json path element %q: index out of range", path[:depth+1])
			}
		default:
			return fmt.Errorf("json path element %q: cannot descend into a scalar", path[:depth+1])
		}
	}
	return nil
}

func skipValue(dec *json.Decoder) error {
	var raw json.RawMessage
	return dec.Decode(&raw)
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("expected %q, found end of input", want)
		}
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, found %v", want, tok)
	}
	return nil
}

// readObject decodes one object, keeping its keys in document order.
func readObject(dec *json.Decoder) ([]string, []any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if tok != json.Delim('{') {
		return nil, nil, fmt.Errorf("incoming json elements must be objects, found %v", tok)
	}

	var (
		keys   []string
		values []any
	)
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := kt.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("decoding %q: %w", key, err)
		}
		keys = append(keys, key)
		values = append(values, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, values, nil
}
