package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for splwatch.
//
// Defaults and validation live here so the monitor can assume a well-formed
// config. Sources are applied in order: DefaultConfig, the YAML file, flag
// overrides, then interactive prompts for anything the user still has to type.
type Config struct {
	Headphone HeadphoneConfig `yaml:"headphone"`
	DAC       DACConfig       `yaml:"dac"`
	Volume    VolumeConfig    `yaml:"volume"`

	// Log discovery and tailing
	Monitor MonitorConfig `yaml:"monitor"`

	// Only used when volume.source is "camilladsp"
	CamillaDSP CamillaDSPConfig `yaml:"camilladsp"`

	// Optional websocket feed of live readings
	StatusWS StatusWSConfig `yaml:"status_ws"`

	Logging LoggingConfig `yaml:"logging"`
}

type HeadphoneConfig struct {
	Sensitivity   float64 `yaml:"sensitivity"`
	Unit          string  `yaml:"unit"` // "mw" (dB/mW) or "v" (dB/V)
	ImpedanceOhms float64 `yaml:"impedance_ohms"`
}

type DACConfig struct {
	VMax float64 `yaml:"v_max"` // full-scale RMS output voltage
}

type VolumeConfig struct {
	Source  string  `yaml:"source"` // "percent" or "camilladsp"
	Percent float64 `yaml:"percent"`
	Law     string  `yaml:"law"` // "square" or "cube"
}

type MonitorConfig struct {
	LogDir         string `yaml:"log_dir"`
	Extension      string `yaml:"extension"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
	Watch          string `yaml:"watch"` // "notify" or "poll"
}

type CamillaDSPConfig struct {
	WsURL     string `yaml:"ws_url"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type StatusWSConfig struct {
	Listen string `yaml:"listen"` // e.g. "127.0.0.1:3002"; empty disables the feed
	Path   string `yaml:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// VolumeSource selects where the session's attenuation comes from.
type VolumeSource string

const (
	VolumeSourcePercent    VolumeSource = "percent"
	VolumeSourceCamillaDSP VolumeSource = "camilladsp"
)

// DefaultConfig returns a fully-populated Config with defaults.
// Hardware values are zero: they must come from the file, flags or prompts.
func DefaultConfig() Config {
	return Config{
		Headphone: HeadphoneConfig{
			Unit: string(UnitDBPerMW),
		},
		Volume: VolumeConfig{
			Source:  string(VolumeSourcePercent),
			Percent: fullVolumePercent,
			Law:     string(TaperSquare),
		},
		Monitor: MonitorConfig{
			LogDir:         filepath.Join(append([]string{"~"}, defaultLogDirParts...)...),
			Extension:      defaultLogExtension,
			PollIntervalMS: int(defaultPollInterval / time.Millisecond),
			Watch:          string(WatchModeNotify),
		},
		CamillaDSP: CamillaDSPConfig{
			WsURL:     "ws://127.0.0.1:1234",
			TimeoutMS: defaultReadTimeoutMS,
		},
		StatusWS: StatusWSConfig{
			Listen: "",
			Path:   defaultStatusPath,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) and only a single YAML
// document is accepted.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries values from command-line flags. A nil pointer means
// "flag not given"; a non-nil pointer is applied even if it holds a zero value.
type FlagOverrides struct {
	Sensitivity   *float64
	Unit          *string
	ImpedanceOhms *float64
	VMax          *float64

	VolumePercent *float64
	VolumeLaw     *string
	VolumeSource  *string

	LogDir         *string
	PollIntervalMS *int
	Watch          *string

	CamillaWsURL *string

	StatusListen *string

	LogLevel *string
}

// HasHardware reports whether any headphone/DAC/volume value came from flags.
func (o FlagOverrides) HasHardware() bool {
	return o.Sensitivity != nil || o.ImpedanceOhms != nil || o.VMax != nil || o.VolumePercent != nil
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}

	if o.Sensitivity != nil {
		cfg.Headphone.Sensitivity = *o.Sensitivity
	}
	if o.Unit != nil {
		cfg.Headphone.Unit = *o.Unit
	}
	if o.ImpedanceOhms != nil {
		cfg.Headphone.ImpedanceOhms = *o.ImpedanceOhms
	}
	if o.VMax != nil {
		cfg.DAC.VMax = *o.VMax
	}

	if o.VolumePercent != nil {
		cfg.Volume.Percent = *o.VolumePercent
	}
	if o.VolumeLaw != nil {
		cfg.Volume.Law = *o.VolumeLaw
	}
	if o.VolumeSource != nil {
		cfg.Volume.Source = *o.VolumeSource
	}

	if o.LogDir != nil {
		cfg.Monitor.LogDir = *o.LogDir
	}
	if o.PollIntervalMS != nil {
		cfg.Monitor.PollIntervalMS = *o.PollIntervalMS
	}
	if o.Watch != nil {
		cfg.Monitor.Watch = *o.Watch
	}

	if o.CamillaWsURL != nil {
		cfg.CamillaDSP.WsURL = *o.CamillaWsURL
	}
	if o.StatusListen != nil {
		cfg.StatusWS.Listen = *o.StatusListen
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Acoustic parameters outside their domain wrap ErrDomain; unparseable option
// values wrap ErrInputFormat.
func (c *Config) Validate() error {
	// Headphone / DAC
	if _, err := ParseSensitivityUnit(c.Headphone.Unit); err != nil {
		return fmt.Errorf("headphone.unit: %w", err)
	}
	if math.IsNaN(c.Headphone.Sensitivity) || math.IsInf(c.Headphone.Sensitivity, 0) {
		return fmt.Errorf("%w: headphone.sensitivity must be a finite number", ErrInputFormat)
	}
	if !(c.Headphone.ImpedanceOhms > 0) || math.IsInf(c.Headphone.ImpedanceOhms, 0) {
		return fmt.Errorf("%w: headphone.impedance_ohms must be > 0", ErrDomain)
	}
	if !(c.DAC.VMax > 0) || math.IsInf(c.DAC.VMax, 0) {
		return fmt.Errorf("%w: dac.v_max must be > 0", ErrDomain)
	}

	// Volume
	if _, err := ParseTaperLaw(c.Volume.Law); err != nil {
		return fmt.Errorf("volume.law: %w", err)
	}
	switch VolumeSource(c.Volume.Source) {
	case VolumeSourcePercent:
		if math.IsNaN(c.Volume.Percent) || math.IsInf(c.Volume.Percent, 0) {
			return fmt.Errorf("%w: volume.percent must be a finite number", ErrInputFormat)
		}
	case VolumeSourceCamillaDSP:
		if c.CamillaDSP.WsURL == "" {
			return errors.New("volume.source is camilladsp but camilladsp.ws_url is empty")
		}
		if c.CamillaDSP.TimeoutMS <= 0 {
			return errors.New("camilladsp.timeout_ms must be > 0")
		}
	default:
		return fmt.Errorf("%w: volume.source must be %q or %q", ErrInputFormat, VolumeSourcePercent, VolumeSourceCamillaDSP)
	}

	// Monitor
	if c.Monitor.LogDir == "" {
		return errors.New("monitor.log_dir must not be empty")
	}
	if c.Monitor.Extension == "" {
		return errors.New("monitor.extension must not be empty")
	}
	if c.Monitor.PollIntervalMS <= 0 || c.Monitor.PollIntervalMS > 10000 {
		return errors.New("monitor.poll_interval_ms must be between 1 and 10000")
	}
	if w := WatchMode(c.Monitor.Watch); w != WatchModeNotify && w != WatchModePoll {
		return fmt.Errorf("%w: monitor.watch must be %q or %q", ErrInputFormat, WatchModeNotify, WatchModePoll)
	}

	// Status feed
	if c.StatusWS.Listen != "" && (c.StatusWS.Path == "" || c.StatusWS.Path[0] != '/') {
		return errors.New("status_ws.path must start with '/'")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// HardwareProfile derives the session's hardware profile. Call after Validate.
func (c *Config) HardwareProfile() (HardwareProfile, error) {
	unit, err := ParseSensitivityUnit(c.Headphone.Unit)
	if err != nil {
		return HardwareProfile{}, err
	}
	return NewHardwareProfile(c.Headphone.Sensitivity, unit, c.Headphone.ImpedanceOhms, c.DAC.VMax)
}

// TaperLaw returns the parsed volume law, defaulting to square.
func (c *Config) TaperLaw() TaperLaw {
	law, err := ParseTaperLaw(c.Volume.Law)
	if err != nil {
		return TaperSquare
	}
	return law
}

// PollInterval returns the idle wait between reads.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Monitor.PollIntervalMS) * time.Millisecond
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
