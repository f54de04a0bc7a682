package main

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestStatusPrinter_NonTerminalWritesPlainLines(t *testing.T) {
	var buf bytes.Buffer
	p := newStatusPrinter(&buf)

	if p.inPlace {
		t.Fatalf("a buffer is not a terminal")
	}

	s := exampleSession(t)
	p.Banner(s)
	p.Status(s.Observe(LogSample{LoudnessLKFS: -14}, time.Now()))
	p.Summary(s.PeakSPL)

	out := buf.String()
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("unexpected ANSI escape in %q", out)
	}
	if strings.Contains(out, "\r") {
		t.Fatalf("unexpected carriage return in %q", out)
	}

	for _, want := range []string{
		"--- SUCCESS: Connected to Newest Log ---",
		"File: /logs/a.csv",
		"Hardware Max: 115.0 dB | Current Attenuation: -12.0 dB",
		"SPL:  89.0 dB | Vol for 75dB: 22.4% | PEAK:  89.0 dB | !! DANGER !!",
		"Session Ended. Peak reached: 89.0 dB",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatReading(t *testing.T) {
	r := Reading{SPL: 72.345, VolumeForTarget: 100, PeakSPL: 75.01, Status: StatusSafe}
	want := "SPL:  72.3 dB | Vol for 75dB: 100.0% | PEAK:  75.0 dB"
	if got := formatReading(r); got != want {
		t.Fatalf("formatReading() = %q, want %q", got, want)
	}
}
