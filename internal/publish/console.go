package publish

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// ConsoleSink writes each message to w, framed by a separator line.
// It is used for dry runs.
type ConsoleSink struct {
	w io.Writer
	n int
}

// NewConsoleSink creates a ConsoleSink writing to w.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

// Emit writes text to the underlying writer.
func (s *ConsoleSink) Emit(_ context.Context, text string) error {
	s.n++
	header := fmt.Sprintf("----- message %d (%d chars) ", s.n, utf8.RuneCountInString(text))
	if pad := 60 - len(header); pad > 0 {
		header += strings.Repeat("-", pad)
	}
	_, err := fmt.Fprintf(s.w, "%s\n%s\n", header, text)
	return err
}
