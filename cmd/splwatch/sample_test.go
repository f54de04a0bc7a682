package main

import (
	"errors"
	"strings"
	"testing"
)

// logLine builds a meter log line with the given loudness value in column 14.
func logLine(loudness string) string {
	fields := make([]string, 16)
	for i := range fields {
		fields[i] = "0"
	}
	fields[0] = "12:00:00"
	fields[loudnessFieldIndex] = loudness
	return strings.Join(fields, ",")
}

func TestParseLogSample(t *testing.T) {
	s, err := parseLogSample(logLine(" -14.0 "))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.LoudnessLKFS != -14.0 {
		t.Fatalf("loudness = %v, want -14.0", s.LoudnessLKFS)
	}
	if len(s.Fields) != 16 {
		t.Fatalf("fields = %d, want 16", len(s.Fields))
	}
}

func TestParseLogSample_ExactlyMinimumFields(t *testing.T) {
	line := strings.Repeat("1,", minLogFields-1) + "-23.5"
	s, err := parseLogSample(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.LoudnessLKFS != -23.5 {
		t.Fatalf("loudness = %v, want -23.5", s.LoudnessLKFS)
	}
}

func TestParseLogSample_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"ten fields", "a,b,c,d,e,f,g,h,i,j"},
		{"header", logLine("Integrated")},
		{"empty loudness", logLine("")},
		{"blank", ""},
		{"nan", logLine("NaN")},
		{"inf", logLine("inf")},
		{"negative inf", logLine("-Inf")},
		{"plus infinity", logLine("+Infinity")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseLogSample(tt.line); !errors.Is(err, ErrMalformedLine) {
				t.Fatalf("expected ErrMalformedLine, got %v", err)
			}
		})
	}
}
