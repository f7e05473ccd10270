package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ConvertFiles converts the CSV file at inPath into outPath. A failed run
// never leaves a partial file at outPath.
func (c *Converter) ConvertFiles(inPath, outPath string) error {
	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer in.Close()

	return WriteFileAtomic(outPath, func(w io.Writer) error {
		return c.EachRow(in, w)
	})
}

// WriteFileAtomic calls write with a temporary file in path's directory
// and renames it to path only when write succeeds. On failure the
// temporary file is removed and whatever was at path is left untouched.
// write may close the file it is given.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}

	err = write(tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil && !errors.Is(cerr, os.ErrClosed) {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("moving output into place: %w", err)
	}
	return nil
}
