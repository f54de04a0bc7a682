package main

import (
	"errors"
	"math"
	"testing"
)

const eps = 1e-9

func mustMaxSPL(t *testing.T, sens, ohms, vmax float64) float64 {
	t.Helper()
	got, err := MaxSPL(sens, ohms, vmax)
	if err != nil {
		t.Fatalf("MaxSPL(%v, %v, %v) error: %v", sens, ohms, vmax, err)
	}
	return got
}

func TestVoltageToPowerSensitivity_ReferenceImpedanceIsIdentity(t *testing.T) {
	got, err := VoltageToPowerSensitivity(112, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-112) > eps {
		t.Fatalf("got %v, want 112", got)
	}
}

func TestVoltageToPowerSensitivity_MonotonicInImpedance(t *testing.T) {
	prev := math.Inf(-1)
	for _, ohms := range []float64{8, 16, 32, 60, 150, 300, 600, 1000, 2000} {
		got, err := VoltageToPowerSensitivity(100, ohms)
		if err != nil {
			t.Fatalf("ohms=%v: unexpected error: %v", ohms, err)
		}
		if !(got > prev) {
			t.Fatalf("ohms=%v: got %v, expected > %v", ohms, got, prev)
		}
		prev = got
	}
}

func TestVoltageToPowerSensitivity_DomainError(t *testing.T) {
	for _, ohms := range []float64{0, -32, math.NaN()} {
		if _, err := VoltageToPowerSensitivity(100, ohms); !errors.Is(err, ErrDomain) {
			t.Fatalf("ohms=%v: expected ErrDomain, got %v", ohms, err)
		}
	}
}

func TestMaxSPL_Example(t *testing.T) {
	got := mustMaxSPL(t, 101, 60, 1.23)
	want := 101 + 10*math.Log10((1.23*1.23/60)*1000)
	if math.Abs(got-want) > eps {
		t.Fatalf("MaxSPL = %v, want %v", got, want)
	}
	if math.Abs(got-115.0) > 0.05 {
		t.Fatalf("MaxSPL = %v, expected about 115.0", got)
	}
}

func TestMaxSPL_DomainError(t *testing.T) {
	tests := []struct {
		name string
		ohms float64
		vmax float64
	}{
		{"zero impedance", 0, 1.23},
		{"negative impedance", -60, 1.23},
		{"zero voltage", 60, 0},
		{"negative voltage", 60, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := MaxSPL(101, tt.ohms, tt.vmax); !errors.Is(err, ErrDomain) {
				t.Fatalf("expected ErrDomain, got %v", err)
			}
		})
	}
}

func TestVolumeToAttenuation(t *testing.T) {
	tests := []struct {
		name    string
		percent float64
		law     TaperLaw
		want    float64
	}{
		{"full square", 100, TaperSquare, 0},
		{"full cube", 100, TaperCube, 0},
		{"half square", 50, TaperSquare, 40 * math.Log10(0.5)},
		{"half cube", 50, TaperCube, 60 * math.Log10(0.5)},
		{"tenth square", 10, TaperSquare, -40},
		{"zero", 0, TaperSquare, -100},
		{"negative", -5, TaperCube, -100},
		{"above full is gain", 200, TaperSquare, 40 * math.Log10(2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VolumeToAttenuation(tt.percent, tt.law)
			if math.Abs(got-tt.want) > eps {
				t.Fatalf("VolumeToAttenuation(%v, %s) = %v, want %v", tt.percent, tt.law, got, tt.want)
			}
		})
	}

	if got := VolumeToAttenuation(50, TaperSquare); math.Abs(got-(-12.04)) > 0.01 {
		t.Fatalf("50%% square = %v, expected about -12.04", got)
	}
}

func TestVolumeForAttenuation_InvertsVolumeToAttenuation(t *testing.T) {
	for _, law := range []TaperLaw{TaperSquare, TaperCube} {
		for _, pct := range []float64{1, 12.5, 50, 73, 100} {
			db := VolumeToAttenuation(pct, law)
			if got := VolumeForAttenuation(db, law); math.Abs(got-pct) > 1e-6 {
				t.Fatalf("law=%s pct=%v: round trip gave %v", law, pct, got)
			}
		}
		if got := VolumeForAttenuation(-100, law); got != 0 {
			t.Fatalf("law=%s: silence should map to 0%%, got %v", law, got)
		}
	}
}

func TestVolumeForTargetSPL_RoundTrip(t *testing.T) {
	maxHW := mustMaxSPL(t, 101, 60, 1.23)

	for _, law := range []TaperLaw{TaperSquare, TaperCube} {
		for _, loudness := range []float64{-30, -23, -14, -9} {
			pct := VolumeForTargetSPL(referenceTargetSPL, maxHW, loudness, law)
			if pct >= 100 {
				continue
			}
			spl := maxHW + loudness + VolumeToAttenuation(pct, law)
			if math.Abs(spl-referenceTargetSPL) > 1e-6 {
				t.Fatalf("law=%s loudness=%v: pct=%v gives %v dB, want %v", law, loudness, pct, spl, referenceTargetSPL)
			}
		}
	}
}

func TestVolumeForTargetSPL_Bounds(t *testing.T) {
	inputs := []float64{-1e308, -1e6, -500, -100, -14, 0, 14, 500, 1e6, 1e308}
	for _, law := range []TaperLaw{TaperSquare, TaperCube} {
		for _, target := range inputs {
			for _, loudness := range inputs {
				got := VolumeForTargetSPL(target, 115, loudness, law)
				if got < 0 || got > 100 || math.IsNaN(got) {
					t.Fatalf("law=%s target=%v loudness=%v: got %v, want within [0, 100]", law, target, loudness, got)
				}
			}
		}
	}
}

func TestVolumeForTargetSPL_Saturation(t *testing.T) {
	// Far too quiet: the target needs more gain than float64 can express.
	if got := VolumeForTargetSPL(75, 115, -1e308, TaperSquare); got != 0 {
		t.Fatalf("overflow should saturate to 0, got %v", got)
	}
	// Quiet but representable: capped at full volume.
	if got := VolumeForTargetSPL(75, 115, -80, TaperSquare); got != 100 {
		t.Fatalf("expected cap at 100, got %v", got)
	}
}

func TestNewHardwareProfile(t *testing.T) {
	hw, err := NewHardwareProfile(101, UnitDBPerMW, 60, 1.23)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hw.SensitivityDBMW != 101 {
		t.Fatalf("sensitivity = %v, want 101", hw.SensitivityDBMW)
	}
	if math.Abs(hw.MaxHWSPL-mustMaxSPL(t, 101, 60, 1.23)) > eps {
		t.Fatalf("MaxHWSPL = %v", hw.MaxHWSPL)
	}

	// A dB/V rating at 1 kOhm equals the dB/mW rating.
	hwV, err := NewHardwareProfile(101, UnitDBPerV, 1000, 1.23)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(hwV.SensitivityDBMW-101) > eps {
		t.Fatalf("converted sensitivity = %v, want 101", hwV.SensitivityDBMW)
	}

	if _, err := NewHardwareProfile(101, UnitDBPerV, 0, 1.23); !errors.Is(err, ErrDomain) {
		t.Fatalf("expected ErrDomain, got %v", err)
	}
}

func TestParseTaperLaw(t *testing.T) {
	tests := []struct {
		in      string
		want    TaperLaw
		wantErr bool
	}{
		{"square", TaperSquare, false},
		{"1", TaperSquare, false},
		{" Cube ", TaperCube, false},
		{"2", TaperCube, false},
		{"linear", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTaperLaw(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInputFormat) {
				t.Fatalf("ParseTaperLaw(%q): expected ErrInputFormat, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseTaperLaw(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}
