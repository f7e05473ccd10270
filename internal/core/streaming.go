package core

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// countingReader counts the raw bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (c *countingReader) BytesRead() int64 { return c.n }

// sanitizeInput drops a leading UTF-8 byte order mark from r and replaces
// invalid UTF-8 with U+FFFD. Errors from r are returned unchanged. The
// counter reports the bytes taken from r, before any rewriting.
func sanitizeInput(r io.Reader) (io.Reader, *countingReader) {
	counter := &countingReader{r: r}
	return transform.NewReader(counter, unicode.UTF8BOM.NewDecoder()), counter
}
