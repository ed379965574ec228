// Package ui holds the small set of ANSI-colored console helpers used by the
// fitmode tool and the server log.
package ui

import (
	"fmt"
	"io"
	"os"
)

// Out is where every helper in this package writes. Tests swap it for a
// buffer.
var Out io.Writer = os.Stdout

const (
	reset  = "\033[0m"
	red    = "\033[31m"
	yellow = "\033[33m"
	green  = "\033[92m"
	orange = "\033[93m"
)

// RedWriter wraps an io.Writer and emits red-colored output. It is meant as
// the destination of a log.Logger for errors.
type RedWriter struct{ w io.Writer }

func (r RedWriter) Write(p []byte) (int, error) {
	out := make([]byte, 0, len(red)+len(p)+len(reset))
	out = append(out, red...)
	out = append(out, p...)
	out = append(out, reset...)
	if _, err := r.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

// NewRedWriter returns a RedWriter wrapping the provided io.Writer.
func NewRedWriter(w io.Writer) RedWriter { return RedWriter{w: w} }

func colorf(color, format string, a ...interface{}) {
	fmt.Fprint(Out, color)
	fmt.Fprintf(Out, format, a...)
	fmt.Fprint(Out, reset)
}

// Debugf prints a yellow debug message when enabled is true.
func Debugf(enabled bool, format string, a ...interface{}) {
	if enabled {
		colorf(yellow, "[DEBUG] "+format, a...)
	}
}

// Greenf prints a light green message.
func Greenf(format string, a ...interface{}) {
	colorf(green, format, a...)
}

// Warningf prints a bright yellow/orange warning.
func Warningf(format string, a ...interface{}) {
	colorf(orange, format, a...)
}
