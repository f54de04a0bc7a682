package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchMode selects how the monitor waits for new data.
type WatchMode string

const (
	WatchModeNotify WatchMode = "notify" // filesystem notifications, bounded by the poll interval
	WatchModePoll   WatchMode = "poll"   // fixed sleep only
)

// idleWaiter blocks the monitor loop until new data may be available.
// Wait returns ctx.Err() when ctx is canceled and nil otherwise.
type idleWaiter interface {
	Wait(ctx context.Context) error
	Close() error
}

// newIdleWaiter returns a notify-based waiter for path, falling back to plain
// polling when the watcher cannot be set up.
func newIdleWaiter(mode WatchMode, path string, interval time.Duration, logger *slog.Logger) idleWaiter {
	if mode == WatchModeNotify {
		w, err := newNotifyWaiter(path, interval, logger)
		if err == nil {
			return w
		}
		logger.Warn("file notifications unavailable; falling back to polling", "error", err, "interval", interval)
	}
	return pollWaiter{interval: interval}
}

type pollWaiter struct {
	interval time.Duration
}

func (p pollWaiter) Wait(ctx context.Context) error {
	t := time.NewTimer(p.interval)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (pollWaiter) Close() error { return nil }

// notifyWaiter wakes on any fsnotify event for the followed file. The poll
// interval still bounds each wait so a missed event only costs one interval.
type notifyWaiter struct {
	watcher  *fsnotify.Watcher
	interval time.Duration
	logger   *slog.Logger
}

func newNotifyWaiter(path string, interval time.Duration, logger *slog.Logger) (*notifyWaiter, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	return &notifyWaiter{
		watcher:  watcher,
		interval: interval,
		logger:   logger,
	}, nil
}

func (n *notifyWaiter) Wait(ctx context.Context) error {
	t := time.NewTimer(n.interval)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()

	case <-t.C:
		return nil

	case ev, ok := <-n.watcher.Events:
		if ok {
			n.logger.Debug("log file event", "op", ev.Op.String())
		}
		return nil

	case err, ok := <-n.watcher.Errors:
		if ok {
			n.logger.Warn("file watcher error", "error", err)
		}
		return nil
	}
}

func (n *notifyWaiter) Close() error {
	return n.watcher.Close()
}
