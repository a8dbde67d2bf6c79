// Package output provides column-aware terminal formatting for
// package listings.
package output

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-runewidth"
)

// DefaultColumns is used when the terminal width cannot be
// determined.
const DefaultColumns = 80

// MaxColumns returns the terminal width from the COLUMNS environment
// variable, falling back to DefaultColumns.
func MaxColumns() int {
	if v := os.Getenv("COLUMNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultColumns
}

// LineWriter packs package identifiers onto lines no wider than
// maxcols, using Unicode-aware width calculation.
type LineWriter struct {
	w       io.Writer
	maxcols int
	cur     int
}

// NewLineWriter returns a writer wrapping at maxcols columns.
func NewLineWriter(w io.Writer, maxcols int) *LineWriter {
	if maxcols <= 0 {
		maxcols = DefaultColumns
	}
	return &LineWriter{w: w, maxcols: maxcols}
}

// Print appends one identifier, starting a new line when it would
// overflow the configured width.
func (lw *LineWriter) Print(s string) {
	width := runewidth.StringWidth(s) + 1
	if lw.cur > 0 && lw.cur+width > lw.maxcols {
		fmt.Fprintln(lw.w)
		lw.cur = 0
	}
	fmt.Fprintf(lw.w, " %s", s)
	lw.cur += width
}

// Flush terminates the current line if anything was printed.
func (lw *LineWriter) Flush() {
	if lw.cur > 0 {
		fmt.Fprintln(lw.w)
		lw.cur = 0
	}
}
