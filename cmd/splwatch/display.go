package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// statusPrinter renders the monitor's console output.
//
// On a terminal each reading overwrites the previous one (carriage return,
// no newline). When stdout is redirected every reading gets its own line.
type statusPrinter struct {
	out     io.Writer
	inPlace bool

	title  lipgloss.Style
	muted  lipgloss.Style
	safe   lipgloss.Style
	danger lipgloss.Style
}

func newStatusPrinter(out io.Writer) *statusPrinter {
	// Bind the renderer to out so color is only emitted when out supports it.
	r := lipgloss.NewRenderer(out)
	return &statusPrinter{
		out:     out,
		inPlace: isTerminal(out),
		title:   r.NewStyle().Foreground(lipgloss.Color("#74c7ec")).Bold(true),
		muted:   r.NewStyle().Foreground(lipgloss.Color("#a6adc8")),
		safe:    r.NewStyle().Foreground(lipgloss.Color("#a6e3a1")).Bold(true),
		danger:  r.NewStyle().Foreground(lipgloss.Color("#f38ba8")).Bold(true),
	}
}

// Banner prints the session header once streaming starts.
func (p *statusPrinter) Banner(s *MonitoringSession) {
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, p.title.Render("--- SUCCESS: Connected to Newest Log ---"))
	fmt.Fprintf(p.out, "File: %s\n", s.File)
	fmt.Fprintf(p.out, "Hardware Max: %.1f dB | Current Attenuation: %.1f dB\n", s.Hardware.MaxHWSPL, s.Volume.AttenuationDB)
	fmt.Fprintln(p.out, p.muted.Render("Monitoring BS.1770 Long-Term... Press Ctrl+C to stop."))
	fmt.Fprintln(p.out, strings.Repeat("-", 60))
}

// Status prints one reading.
func (p *statusPrinter) Status(r Reading) {
	label := p.safe.Render(r.Status.Label())
	if r.Status == StatusDanger {
		label = p.danger.Render(r.Status.Label())
	}

	end := "\n"
	if p.inPlace {
		end = "\r"
	}
	fmt.Fprintf(p.out, "%s | %s    %s", formatReading(r), label, end)
}

// Summary prints the end-of-session line.
func (p *statusPrinter) Summary(peakSPL float64) {
	if p.inPlace {
		// Move off the in-place status line.
		fmt.Fprintln(p.out)
	}
	fmt.Fprintf(p.out, "\nSession Ended. Peak reached: %.1f dB\n", peakSPL)
}

// formatReading renders the numeric part of a status line.
func formatReading(r Reading) string {
	return fmt.Sprintf("SPL: %5.1f dB | Vol for %.0fdB: %4.1f%% | PEAK: %5.1f dB",
		r.SPL, referenceTargetSPL, r.VolumeForTarget, r.PeakSPL)
}
