package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// logFollower reads lines appended to a file after it was opened.
//
// Content present at open time is skipped. Bytes written without a trailing
// newline are held back until the rest of the line arrives.
type logFollower struct {
	f       *os.File
	r       *bufio.Reader
	partial []byte
}

// openLogFollower opens path and positions the read cursor at end-of-file.
func openLogFollower(path string) (*logFollower, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek log file: %w", err)
	}
	return &logFollower{
		f: f,
		r: bufio.NewReader(f),
	}, nil
}

// nextLine returns the next complete line, without its line terminator.
// ok is false when no complete line has been appended yet.
//
// Invalid UTF-8 sequences are dropped rather than reported.
func (lf *logFollower) nextLine() (line string, ok bool, err error) {
	chunk, err := lf.r.ReadBytes('\n')
	lf.partial = append(lf.partial, chunk...)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", false, nil
		}
		return "", false, err
	}

	line = strings.ToValidUTF8(string(lf.partial), "")
	lf.partial = lf.partial[:0]
	return strings.TrimRight(line, "\r\n"), true, nil
}

func (lf *logFollower) name() string {
	return lf.f.Name()
}

func (lf *logFollower) Close() error {
	return lf.f.Close()
}
