package main

import (
	"fmt"
	"math"
	"strings"
)

// TaperLaw selects the curve relating a volume control's position to its attenuation.
//
//   - square: 40*log10(p/100), roughly -40 dB per decade of travel
//   - cube:   60*log10(p/100), roughly -60 dB per decade of travel
type TaperLaw string

const (
	TaperSquare TaperLaw = "square"
	TaperCube   TaperLaw = "cube"
)

// ParseTaperLaw converts a user-supplied string into a TaperLaw.
func ParseTaperLaw(s string) (TaperLaw, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "square", "1":
		return TaperSquare, nil
	case "cube", "2":
		return TaperCube, nil
	default:
		return "", fmt.Errorf("%w: taper law %q (must be square or cube)", ErrInputFormat, s)
	}
}

func (l TaperLaw) multiplier() float64 {
	if l == TaperCube {
		return cubeLawMultiplier
	}
	return squareLawMultiplier
}

// SensitivityUnit tells whether a sensitivity rating is referenced to 1 mW or to 1 V.
type SensitivityUnit string

const (
	UnitDBPerMW SensitivityUnit = "mw"
	UnitDBPerV  SensitivityUnit = "v"
)

// ParseSensitivityUnit converts a user-supplied string into a SensitivityUnit.
func ParseSensitivityUnit(s string) (SensitivityUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mw", "dbmw", "db/mw":
		return UnitDBPerMW, nil
	case "v", "dbv", "db/v":
		return UnitDBPerV, nil
	default:
		return "", fmt.Errorf("%w: sensitivity unit %q (must be mw or v)", ErrInputFormat, s)
	}
}

// VoltageToPowerSensitivity converts a dB/V sensitivity rating into dB/mW for
// a headphone of the given impedance.
func VoltageToPowerSensitivity(sensitivityDBV, impedanceOhms float64) (float64, error) {
	if !(impedanceOhms > 0) {
		return 0, fmt.Errorf("%w: impedance must be > 0 ohms, got %g", ErrDomain, impedanceOhms)
	}
	return sensitivityDBV - 10*math.Log10(referenceImpedanceOhms/impedanceOhms), nil
}

// MaxSPL returns the loudest SPL the hardware can reach: the headphone's dB/mW
// sensitivity plus the power (in mW) the DAC delivers at full scale.
func MaxSPL(sensitivityDBMW, impedanceOhms, vMaxDAC float64) (float64, error) {
	if !(impedanceOhms > 0) {
		return 0, fmt.Errorf("%w: impedance must be > 0 ohms, got %g", ErrDomain, impedanceOhms)
	}
	if !(vMaxDAC > 0) {
		return 0, fmt.Errorf("%w: DAC voltage must be > 0 V, got %g", ErrDomain, vMaxDAC)
	}
	maxPowerMW := (vMaxDAC * vMaxDAC / impedanceOhms) * 1000
	return sensitivityDBMW + 10*math.Log10(maxPowerMW), nil
}

// VolumeToAttenuation maps a volume percentage to dB relative to full scale.
// Zero or negative percentages return the silence sentinel (-100 dB). Values
// above 100% are not clamped and yield a positive gain.
func VolumeToAttenuation(percent float64, law TaperLaw) float64 {
	if percent <= 0 {
		return silenceAttenuationDB
	}
	return law.multiplier() * math.Log10(percent/fullVolumePercent)
}

// VolumeForAttenuation is the inverse of VolumeToAttenuation.
func VolumeForAttenuation(attenuationDB float64, law TaperLaw) float64 {
	if attenuationDB <= silenceAttenuationDB {
		return 0
	}
	return fullVolumePercent * math.Pow(10, attenuationDB/law.multiplier())
}

// VolumeForTargetSPL returns the volume percentage at which
// maxHWSPL + loudness + attenuation equals targetSPL, capped at 100%.
//
// When the required gain is so large that the power computation overflows,
// the result saturates to 0 rather than reporting an error.
func VolumeForTargetSPL(targetSPL, maxHWSPL, loudness float64, law TaperLaw) float64 {
	required := targetSPL - maxHWSPL - loudness
	scale := math.Pow(10, required/law.multiplier())
	if math.IsInf(scale, 0) || math.IsNaN(scale) {
		return 0
	}
	return math.Min(fullVolumePercent*scale, fullVolumePercent)
}

// HardwareProfile is the static description of the playback chain.
// MaxHWSPL is derived once in NewHardwareProfile.
type HardwareProfile struct {
	SensitivityDBMW float64
	ImpedanceOhms   float64
	VMaxDAC         float64
	MaxHWSPL        float64
}

// NewHardwareProfile validates the raw parameters, converts the sensitivity to
// dB/mW if needed and computes the hardware maximum SPL.
func NewHardwareProfile(sensitivity float64, unit SensitivityUnit, impedanceOhms, vMaxDAC float64) (HardwareProfile, error) {
	sensMW := sensitivity
	if unit == UnitDBPerV {
		var err error
		sensMW, err = VoltageToPowerSensitivity(sensitivity, impedanceOhms)
		if err != nil {
			return HardwareProfile{}, err
		}
	}

	maxSPL, err := MaxSPL(sensMW, impedanceOhms, vMaxDAC)
	if err != nil {
		return HardwareProfile{}, err
	}

	return HardwareProfile{
		SensitivityDBMW: sensMW,
		ImpedanceOhms:   impedanceOhms,
		VMaxDAC:         vMaxDAC,
		MaxHWSPL:        maxSPL,
	}, nil
}

// VolumeSetting is the fixed volume position for a session.
type VolumeSetting struct {
	Percent       float64
	Law           TaperLaw
	AttenuationDB float64
}

// NewVolumeSetting derives the attenuation from a percent position.
func NewVolumeSetting(percent float64, law TaperLaw) VolumeSetting {
	return VolumeSetting{
		Percent:       percent,
		Law:           law,
		AttenuationDB: VolumeToAttenuation(percent, law),
	}
}

// VolumeSettingFromAttenuation builds a setting from a known dB attenuation
// (e.g. a DSP fader) and reports the equivalent percent under law.
func VolumeSettingFromAttenuation(attenuationDB float64, law TaperLaw) VolumeSetting {
	return VolumeSetting{
		Percent:       VolumeForAttenuation(attenuationDB, law),
		Law:           law,
		AttenuationDB: attenuationDB,
	}
}
