package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// LogSample is one parsed loudness meter line. It lives for a single loop iteration.
type LogSample struct {
	Fields       []string
	LoudnessLKFS float64
}

// parseLogSample splits a CSV line and extracts the loudness column.
// Lines with too few fields or a non-numeric or non-finite loudness value
// return ErrMalformedLine.
func parseLogSample(line string) (LogSample, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < minLogFields {
		return LogSample{}, fmt.Errorf("%w: %d fields, need at least %d", ErrMalformedLine, len(fields), minLogFields)
	}

	raw := strings.TrimSpace(fields[loudnessFieldIndex])
	loudness, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return LogSample{}, fmt.Errorf("%w: loudness %q is not numeric", ErrMalformedLine, raw)
	}
	// NaN and Inf parse but have no SPL meaning and cannot be encoded as JSON.
	if math.IsNaN(loudness) || math.IsInf(loudness, 0) {
		return LogSample{}, fmt.Errorf("%w: loudness %q is not finite", ErrMalformedLine, raw)
	}

	return LogSample{Fields: fields, LoudnessLKFS: loudness}, nil
}
