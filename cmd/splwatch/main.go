package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "[!] ERROR: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "splwatch",
		Short:         "Live headphone SPL estimate from a loudness meter log",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newMonitorCmd())
	root.AddCommand(newCalcCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// settingsFlags holds the flags shared by monitor and calc. Values are only
// applied when the flag was set on the command line.
type settingsFlags struct {
	configPath string

	sensitivity   float64
	unit          string
	impedanceOhms float64
	vMax          float64

	volumePercent float64
	volumeLaw     string
	volumeSource  string

	camillaWsURL string
	logLevel     string
}

func (f *settingsFlags) register(fs *pflag.FlagSet) {
	def := DefaultConfig()

	fs.StringVar(&f.configPath, "config", "", "path to YAML config file")

	fs.Float64Var(&f.sensitivity, "sensitivity", 0, "headphone sensitivity (dB/mW or dB/V, see --unit)")
	fs.StringVar(&f.unit, "unit", def.Headphone.Unit, "sensitivity unit: mw|v")
	fs.Float64Var(&f.impedanceOhms, "impedance", 0, "headphone impedance in ohms")
	fs.Float64Var(&f.vMax, "vmax", 0, "maximum RMS output voltage of the DAC")

	fs.Float64Var(&f.volumePercent, "volume", def.Volume.Percent, "volume control position in percent (0-100)")
	fs.StringVar(&f.volumeLaw, "law", def.Volume.Law, "volume taper law: square|cube")
	fs.StringVar(&f.volumeSource, "volume-source", def.Volume.Source, "where the attenuation comes from: percent|camilladsp")

	fs.StringVar(&f.camillaWsURL, "camilladsp-ws-url", def.CamillaDSP.WsURL, "CamillaDSP websocket URL (volume-source camilladsp)")
	fs.StringVar(&f.logLevel, "log-level", def.Logging.Level, "log level: error|warn|info|debug")
}

func (f *settingsFlags) overrides(fs *pflag.FlagSet) FlagOverrides {
	var o FlagOverrides
	if fs.Changed("sensitivity") {
		o.Sensitivity = &f.sensitivity
	}
	if fs.Changed("unit") {
		o.Unit = &f.unit
	}
	if fs.Changed("impedance") {
		o.ImpedanceOhms = &f.impedanceOhms
	}
	if fs.Changed("vmax") {
		o.VMax = &f.vMax
	}
	if fs.Changed("volume") {
		o.VolumePercent = &f.volumePercent
	}
	if fs.Changed("law") {
		o.VolumeLaw = &f.volumeLaw
	}
	if fs.Changed("volume-source") {
		o.VolumeSource = &f.volumeSource
	}
	if fs.Changed("camilladsp-ws-url") {
		o.CamillaWsURL = &f.camillaWsURL
	}
	if fs.Changed("log-level") {
		o.LogLevel = &f.logLevel
	}
	return o
}

// loadConfig merges defaults, the config file and flag overrides.
func (f *settingsFlags) loadConfig(o FlagOverrides) (Config, error) {
	cfg := DefaultConfig()
	if f.configPath != "" {
		var err error
		cfg, err = LoadConfigFile(f.configPath)
		if err != nil {
			return Config{}, err
		}
	}
	o.Apply(&cfg)
	return cfg, nil
}

// ============================================================================
// monitor
// ============================================================================

type monitorFlags struct {
	settingsFlags

	interactive    bool
	logDir         string
	pollIntervalMS int
	watch          string
	statusListen   string
}

func newMonitorCmd() *cobra.Command {
	var f monitorFlags

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Follow the newest loudness log and report live SPL",
		Long: "Attaches to the most recently modified log in the log directory, skips\n" +
			"existing content and prints an SPL estimate for every appended sample.\n" +
			"Stop with Ctrl+C to print the session peak.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.run(cmd)
		},
	}

	def := DefaultConfig()
	fs := cmd.Flags()
	f.register(fs)
	fs.BoolVar(&f.interactive, "interactive", false, "prompt for hardware values even when a config file is given")
	fs.StringVar(&f.logDir, "log-dir", def.Monitor.LogDir, "directory containing loudness meter logs")
	fs.IntVar(&f.pollIntervalMS, "poll-interval-ms", def.Monitor.PollIntervalMS, "idle wait between reads in ms")
	fs.StringVar(&f.watch, "watch", def.Monitor.Watch, "wait strategy: notify|poll")
	fs.StringVar(&f.statusListen, "status-listen", "", "serve the websocket status feed on this address (e.g. 127.0.0.1:3002)")

	return cmd
}

func (f *monitorFlags) overrides(fs *pflag.FlagSet) FlagOverrides {
	o := f.settingsFlags.overrides(fs)
	if fs.Changed("log-dir") {
		o.LogDir = &f.logDir
	}
	if fs.Changed("poll-interval-ms") {
		o.PollIntervalMS = &f.pollIntervalMS
	}
	if fs.Changed("watch") {
		o.Watch = &f.watch
	}
	if fs.Changed("status-listen") {
		o.StatusListen = &f.statusListen
	}
	return o
}

func (f *monitorFlags) run(cmd *cobra.Command) error {
	o := f.overrides(cmd.Flags())
	cfg, err := f.loadConfig(o)
	if err != nil {
		return err
	}

	if f.interactive || (f.configPath == "" && !o.HasHardware()) {
		if err := promptHardware(cmd.InOrStdin(), cmd.OutOrStdout(), &cfg); err != nil {
			return err
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	hw, err := cfg.HardwareProfile()
	if err != nil {
		return err
	}
	vol, err := resolveVolumeSetting(&cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return monitorWithFeed(ctx, &cfg, hw, vol, newStatusPrinter(cmd.OutOrStdout()), logger)
}

// monitorWithFeed runs the monitor and, when configured, the status feed
// alongside it. The feed has its own lifetime: it ends only after the
// broadcaster has forwarded session_ended, and the hub then flushes client
// queues before closing connections.
func monitorWithFeed(ctx context.Context, cfg *Config, hw HardwareProfile, vol VolumeSetting, printer *statusPrinter, logger *slog.Logger) error {
	if cfg.StatusWS.Listen == "" {
		_, err := runMonitor(ctx, cfg, hw, vol, printer, nil, logger)
		return err
	}

	srv := NewServer(logger, ServerConfig{})
	mux := http.NewServeMux()
	srv.Register(mux, cfg.StatusWS.Path)

	feed := make(chan StateBroadcast, 64)
	feedCtx, stopFeed := context.WithCancel(context.Background())
	defer stopFeed()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		srv.Hub().Run(feedCtx)
		return nil
	})
	g.Go(func() error {
		// The monitor closes feed on exit. The broadcaster forwards what is
		// left, then stops the hub and the HTTP server.
		defer stopFeed()
		RunBroadcaster(feedCtx, srv, feed, logger)
		return nil
	})
	g.Go(func() error {
		return runStatusServer(feedCtx, cfg.StatusWS.Listen, mux, logger)
	})
	g.Go(func() error {
		defer close(feed)
		_, err := runMonitor(gctx, cfg, hw, vol, printer, feed, logger)
		return err
	})

	return g.Wait()
}

// ============================================================================
// calc
// ============================================================================

func newCalcCmd() *cobra.Command {
	var f settingsFlags
	var loudness float64

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Compute SPL and the volume for 75 dB at a given loudness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.loadConfig(f.overrides(cmd.Flags()))
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			hw, err := cfg.HardwareProfile()
			if err != nil {
				return err
			}
			vol, err := resolveVolumeSetting(&cfg, logger)
			if err != nil {
				return err
			}

			at := time.Now()
			s := newMonitoringSession("", hw, vol, at)
			r := s.Observe(LogSample{LoudnessLKFS: loudness}, at)
			printCalc(cmd.OutOrStdout(), hw, vol, r)
			return nil
		},
	}

	f.register(cmd.Flags())
	cmd.Flags().Float64Var(&loudness, "loudness", 0, "program loudness in LKFS")
	return cmd
}

func printCalc(w io.Writer, hw HardwareProfile, vol VolumeSetting, r Reading) {
	_, _ = fmt.Fprintf(w, "Hardware Max: %.1f dB\n", hw.MaxHWSPL)
	_, _ = fmt.Fprintf(w, "Volume: %.1f%% (%s law) | Attenuation: %.1f dB\n", vol.Percent, vol.Law, vol.AttenuationDB)
	_, _ = fmt.Fprintf(w, "Loudness: %.1f LKFS\n", r.LoudnessLKFS)
	_, _ = fmt.Fprintf(w, "%s | %s\n", formatReading(r), r.Status.Label())
}

// ============================================================================
// version
// ============================================================================

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "splwatch v%s\n", version)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Live headphone SPL monitor for BS.1770 loudness logs")
		},
	}
}
