package main

import "errors"

var (
	// ErrInputFormat is returned when a startup value is not a number or not a known option.
	ErrInputFormat = errors.New("invalid input format")

	// ErrDomain is returned for acoustic parameters outside their mathematical domain
	// (non-positive impedance or DAC voltage).
	ErrDomain = errors.New("parameter out of domain")

	ErrDirectoryNotFound = errors.New("directory not found")
	ErrNoLogFiles        = errors.New("no log files found")

	// ErrMalformedLine marks a log line that is skipped. It never leaves the monitor loop.
	ErrMalformedLine = errors.New("malformed log line")
)
