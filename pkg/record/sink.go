package record

import (
	"fmt"
	"io"
)

// Sink consumes records. The pipeline fans every record to all
// configured sinks and logs write errors without stopping acquisition.
type Sink interface {
	Write(Record) error
	Close() error
}

var _ Sink = (*LineWriter)(nil)

// LineWriter writes newline-terminated record lines to an io.Writer.
// It does not own the writer; the caller closes files.
type LineWriter struct {
	w io.Writer
}

// NewLineWriter creates a sink around w.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// Write appends one record line.
func (s *LineWriter) Write(r Record) error {
	if _, err := fmt.Fprintln(s.w, r); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Comment writes a "#"-prefixed banner line so record files are
// self-describing.
func (s *LineWriter) Comment(line string) error {
	if _, err := fmt.Fprintf(s.w, "# %s\n", line); err != nil {
		return fmt.Errorf("failed to write comment: %w", err)
	}
	return nil
}

// Close implements Sink. The underlying writer stays open.
func (s *LineWriter) Close() error { return nil }
