package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// promptHardware asks for the four numeric hardware values and stores them in
// cfg. The first answer that is not a number aborts with ErrInputFormat; there
// is no retry.
func promptHardware(in io.Reader, out io.Writer, cfg *Config) error {
	sc := bufio.NewScanner(in)

	unitLabel := "dB/mw"
	if u, err := ParseSensitivityUnit(cfg.Headphone.Unit); err == nil && u == UnitDBPerV {
		unitLabel = "dB/V"
	}

	questions := []struct {
		label string
		dst   *float64
	}{
		{fmt.Sprintf("Enter headphone sensitivity in %s (e.g., 101): ", unitLabel), &cfg.Headphone.Sensitivity},
		{"Enter headphone impedance in ohms (e.g., 60): ", &cfg.Headphone.ImpedanceOhms},
		{"Enter maximum rms voltage of DAC (e.g., 1.23): ", &cfg.DAC.VMax},
		{"Enter volume percentage (0-100): ", &cfg.Volume.Percent},
	}

	for _, q := range questions {
		fmt.Fprint(out, q.label)
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return fmt.Errorf("%w: please enter numeric values only", ErrInputFormat)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(sc.Text()), 64)
		if err != nil {
			return fmt.Errorf("%w: please enter numeric values only", ErrInputFormat)
		}
		*q.dst = v
	}
	return nil
}
