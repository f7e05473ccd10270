package core

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bom stripped", "\xEF\xBB\xBFId,Name", "Id,Name"},
		{"no bom", "Id,Name", "Id,Name"},
		{"empty", "", ""},
		{"only bom", "\xEF\xBB\xBF", ""},
		{"bom mid stream kept", "a\xEF\xBB\xBFb", "a\uFEFFb"},
		{"valid multibyte", "Zürich,東京", "Zürich,東京"},
		{"invalid byte", "Glob\xffex", "Glob\uFFFDex"},
		{"truncated sequence at end", "caf\xc3", "caf\uFFFD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, counter := sanitizeInput(strings.NewReader(tt.input))
			got, err := io.ReadAll(in)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if counter.BytesRead() != int64(len(tt.input)) {
				t.Errorf("BytesRead = %d, want %d", counter.BytesRead(), len(tt.input))
			}
		})
	}
}

func TestSanitizeInput_SplitReads(t *testing.T) {
	// One byte per read splits both the BOM and every multi-byte rune.
	input := "\xEF\xBB\xBFnaïve,€5\n"
	in, _ := sanitizeInput(iotest.OneByteReader(strings.NewReader(input)))
	got, err := io.ReadAll(in)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if want := "naïve,€5\n"; string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSanitizeInput_PassesErrorsThrough(t *testing.T) {
	boom := errors.New("boom")
	in, _ := sanitizeInput(io.MultiReader(strings.NewReader("Id\n"), iotest.ErrReader(boom)))
	if _, err := io.ReadAll(in); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}
