package main

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// runMonitor attaches to the newest log in the configured directory and
// streams one reading per appended sample until ctx is canceled.
//
// It returns the finished session so callers can inspect the peak. Errors are
// only returned for setup failures (missing directory, no logs, open failure);
// cancellation is a normal exit.
//
// feed may be nil. Broadcasts are sent without blocking, so a stalled
// status feed never delays the console.
func runMonitor(
	ctx context.Context,
	cfg *Config,
	hw HardwareProfile,
	vol VolumeSetting,
	printer *statusPrinter,
	feed chan<- StateBroadcast,
	logger *slog.Logger,
) (*MonitoringSession, error) {
	dir := ExpandPath(cfg.Monitor.LogDir)

	path, err := findNewestLog(dir, cfg.Monitor.Extension)
	if err != nil {
		return nil, err
	}

	follower, err := openLogFollower(path)
	if err != nil {
		return nil, err
	}
	defer follower.Close()

	waiter := newIdleWaiter(WatchMode(cfg.Monitor.Watch), path, cfg.PollInterval(), logger)
	defer waiter.Close()

	session := newMonitoringSession(follower.name(), hw, vol, time.Now())
	logger.Info("monitoring log file",
		"file", session.File,
		"session_id", session.ID,
		"max_hw_spl_db", hw.MaxHWSPL,
		"attenuation_db", vol.AttenuationDB,
	)

	printer.Banner(session)
	publish(feed, BroadcastSessionStarted{Snapshot: session.Snapshot()}, logger)

	for {
		if ctx.Err() != nil {
			break
		}

		line, ok, err := follower.nextLine()
		if err != nil {
			logger.Warn("log read failed", "file", session.File, "error", err)
			ok = false
		}

		if !ok || strings.TrimSpace(line) == "" {
			if err := waiter.Wait(ctx); err != nil {
				break
			}
			continue
		}

		sample, err := parseLogSample(line)
		if err != nil {
			session.Discard()
			logger.Debug("discarding log line", "error", err)
			continue
		}

		reading := session.Observe(sample, time.Now())
		printer.Status(reading)
		publish(feed, BroadcastReading{SessionID: session.ID, Reading: reading}, logger)
	}

	printer.Summary(session.PeakSPL)
	publish(feed, BroadcastSessionEnded{
		SessionID: session.ID,
		PeakSPL:   session.PeakSPL,
		Accepted:  session.Accepted,
		Discarded: session.Discarded,
		At:        time.Now(),
	}, logger)

	logger.Info("session ended",
		"session_id", session.ID,
		"peak_spl_db", session.PeakSPL,
		"accepted", session.Accepted,
		"discarded", session.Discarded,
	)

	return session, nil
}
