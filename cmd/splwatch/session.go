package main

import (
	"time"

	"github.com/google/uuid"
)

// This file holds the monitor's reducer: it turns parsed samples into
// readings and owns the session's mutable state (peak, counters).
//
// It performs no I/O. The monitor loop in monitor.go reads lines, calls
// Observe/Discard, and renders or broadcasts what comes back.

// Status classifies a reading against the danger threshold.
type Status string

const (
	StatusSafe   Status = "SAFE"
	StatusDanger Status = "DANGER"
)

// Label is the console text for a status.
func (s Status) Label() string {
	if s == StatusDanger {
		return "!! DANGER !!"
	}
	return string(s)
}

func classify(splDB float64) Status {
	if splDB > dangerThresholdSPL {
		return StatusDanger
	}
	return StatusSafe
}

// Reading is the result of reducing one LogSample.
type Reading struct {
	At              time.Time
	LoudnessLKFS    float64
	SPL             float64
	VolumeForTarget float64 // percent needed to hit referenceTargetSPL at this loudness
	PeakSPL         float64
	Status          Status
}

// MonitoringSession is the mutable state of one monitor run.
// Hardware and Volume are fixed at creation; PeakSPL never decreases.
type MonitoringSession struct {
	ID        uuid.UUID
	File      string
	StartedAt time.Time

	Hardware HardwareProfile
	Volume   VolumeSetting

	PeakSPL   float64
	Accepted  int
	Discarded int
}

func newMonitoringSession(file string, hw HardwareProfile, vol VolumeSetting, now time.Time) *MonitoringSession {
	return &MonitoringSession{
		ID:        uuid.New(),
		File:      file,
		StartedAt: now,
		Hardware:  hw,
		Volume:    vol,
		PeakSPL:   initialPeakSPL,
	}
}

// Observe folds a sample into the session and returns the resulting reading.
func (s *MonitoringSession) Observe(sample LogSample, at time.Time) Reading {
	spl := s.Hardware.MaxHWSPL + sample.LoudnessLKFS + s.Volume.AttenuationDB
	volForTarget := VolumeForTargetSPL(referenceTargetSPL, s.Hardware.MaxHWSPL, sample.LoudnessLKFS, s.Volume.Law)

	// calc passes --loudness through unparsed; NaN must not poison the peak.
	if spl > s.PeakSPL {
		s.PeakSPL = spl
	}
	s.Accepted++

	return Reading{
		At:              at,
		LoudnessLKFS:    sample.LoudnessLKFS,
		SPL:             spl,
		VolumeForTarget: volForTarget,
		PeakSPL:         s.PeakSPL,
		Status:          classify(spl),
	}
}

// Discard records a skipped line. It does not touch the peak.
func (s *MonitoringSession) Discard() {
	s.Discarded++
}
