//go:build !linux

package main

import (
	"io"
	"os"
)

// isTerminal reports whether w looks like a character device (a console).
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
