package main

import "time"

// Acoustic model constants
const (
	referenceImpedanceOhms = 1000.0 // dB/V and dB/mW ratings coincide at 1 kOhm
	silenceAttenuationDB   = -100.0 // Attenuation reported for a volume of 0% (or below)
	fullVolumePercent      = 100.0

	squareLawMultiplier = 40.0 // -40 dB/decade
	cubeLawMultiplier   = 60.0 // -60 dB/decade
)

// Monitoring policy
const (
	referenceTargetSPL = 75.0   // Target used for the "volume for 75 dB" recommendation (dB SPL)
	dangerThresholdSPL = 80.0   // Readings strictly above this are DANGER (dB SPL)
	initialPeakSPL     = -100.0 // Peak before the first sample

	defaultPollInterval = 100 * time.Millisecond // Idle wait when no new line is available
	defaultLogExtension = ".csv"

	// Loudness meter CSV layout: the long-term loudness value lives in column 15.
	loudnessFieldIndex = 14
	minLogFields       = loudnessFieldIndex + 1
)

// Status feed defaults
const (
	defaultStatusPath    = "/ws"
	defaultReadTimeoutMS = 500 // Default timeout for reading CamillaDSP websocket responses (ms)
)

// defaultLogDirParts is joined under the user's home directory.
var defaultLogDirParts = []string{"Documents", "Orban Audio Loudness Meter"}
