package main

import (
	"math"
	"testing"
	"time"
)

func exampleSession(t *testing.T) *MonitoringSession {
	t.Helper()
	hw, err := NewHardwareProfile(101, UnitDBPerMW, 60, 1.23)
	if err != nil {
		t.Fatalf("NewHardwareProfile: %v", err)
	}
	vol := NewVolumeSetting(50, TaperSquare)
	return newMonitoringSession("/logs/a.csv", hw, vol, time.Unix(1000, 0).UTC())
}

func TestMonitoringSession_ExampleReadingIsDanger(t *testing.T) {
	s := exampleSession(t)

	r := s.Observe(LogSample{LoudnessLKFS: -14.0}, time.Unix(1001, 0).UTC())

	if math.Abs(r.SPL-88.96) > 0.05 {
		t.Fatalf("SPL = %v, expected about 88.96", r.SPL)
	}
	if r.Status != StatusDanger {
		t.Fatalf("status = %s, want %s", r.Status, StatusDanger)
	}
	if r.PeakSPL != r.SPL {
		t.Fatalf("peak = %v, want %v", r.PeakSPL, r.SPL)
	}
	if s.Accepted != 1 {
		t.Fatalf("accepted = %d, want 1", s.Accepted)
	}
}

func TestMonitoringSession_PeakNeverDecreases(t *testing.T) {
	s := exampleSession(t)
	at := time.Unix(1001, 0).UTC()

	if s.PeakSPL != initialPeakSPL {
		t.Fatalf("initial peak = %v, want %v", s.PeakSPL, initialPeakSPL)
	}

	prev := s.PeakSPL
	for _, lkfs := range []float64{-30, -14, -40, math.NaN(), -20, -9, -60} {
		r := s.Observe(LogSample{LoudnessLKFS: lkfs}, at)
		if r.PeakSPL < prev || math.IsNaN(r.PeakSPL) {
			t.Fatalf("loudness=%v: peak went from %v to %v", lkfs, prev, r.PeakSPL)
		}
		prev = r.PeakSPL
	}

	want := s.Hardware.MaxHWSPL - 9 + s.Volume.AttenuationDB
	if math.Abs(s.PeakSPL-want) > 1e-9 {
		t.Fatalf("peak = %v, want %v", s.PeakSPL, want)
	}
}

func TestMonitoringSession_DiscardDoesNotTouchPeak(t *testing.T) {
	s := exampleSession(t)
	s.Observe(LogSample{LoudnessLKFS: -20}, time.Now())
	peak := s.PeakSPL

	// A 10-field line never becomes a sample.
	if _, err := parseLogSample("a,b,c,d,e,f,g,h,i,j"); err == nil {
		t.Fatalf("expected parse error")
	}
	s.Discard()

	if s.PeakSPL != peak {
		t.Fatalf("peak changed from %v to %v", peak, s.PeakSPL)
	}
	if s.Discarded != 1 || s.Accepted != 1 {
		t.Fatalf("counters = %d accepted / %d discarded", s.Accepted, s.Discarded)
	}
}

func TestClassify(t *testing.T) {
	if classify(80) != StatusSafe {
		t.Fatalf("80 dB should be SAFE (threshold is exclusive)")
	}
	if classify(80.01) != StatusDanger {
		t.Fatalf("80.01 dB should be DANGER")
	}
	if StatusDanger.Label() != "!! DANGER !!" || StatusSafe.Label() != "SAFE" {
		t.Fatalf("unexpected labels %q %q", StatusDanger.Label(), StatusSafe.Label())
	}
}

func TestMonitoringSession_SnapshotCopiesState(t *testing.T) {
	s := exampleSession(t)
	s.Observe(LogSample{LoudnessLKFS: -14}, time.Now())

	snap := s.Snapshot()
	if snap.SessionID != s.ID || snap.File != s.File {
		t.Fatalf("snapshot identity mismatch: %+v", snap)
	}
	if snap.PeakSPL != s.PeakSPL || snap.MaxHWSPL != s.Hardware.MaxHWSPL {
		t.Fatalf("snapshot values mismatch: %+v", snap)
	}
	if snap.TargetSPL != referenceTargetSPL || snap.DangerSPL != dangerThresholdSPL {
		t.Fatalf("snapshot thresholds mismatch: %+v", snap)
	}
}
