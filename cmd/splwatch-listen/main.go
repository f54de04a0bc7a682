package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "[!] ERROR: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		wsURL string
		raw   bool
	)

	cmd := &cobra.Command{
		Use:           "splwatch-listen",
		Short:         "Print the live status feed of a running splwatch monitor",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			return listen(ctx, wsURL, raw, cmd.OutOrStdout(), logger)
		},
	}

	cmd.Flags().StringVar(&wsURL, "url", "ws://127.0.0.1:3002/ws", "splwatch status feed URL")
	cmd.Flags().BoolVar(&raw, "raw", false, "print messages as received (JSON)")
	return cmd
}

// envelope mirrors the status feed wire format.
type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type sessionInit struct {
	SessionID     string  `json:"session_id"`
	File          string  `json:"file"`
	MaxHWSPL      float64 `json:"max_hw_spl_db"`
	AttenuationDB float64 `json:"attenuation_db"`
	PeakSPL       float64 `json:"peak_spl_db"`
	TargetSPL     float64 `json:"target_spl_db"`
	DangerSPL     float64 `json:"danger_spl_db"`
}

type reading struct {
	SPL             float64 `json:"spl_db"`
	VolumeForTarget float64 `json:"volume_for_target_pct"`
	PeakSPL         float64 `json:"peak_spl_db"`
	Status          string  `json:"status"`
}

type sessionEnded struct {
	SessionID string  `json:"session_id"`
	PeakSPL   float64 `json:"peak_spl_db"`
	Accepted  int     `json:"accepted"`
	Discarded int     `json:"discarded"`
}

func listen(ctx context.Context, wsURL string, raw bool, out io.Writer, logger *slog.Logger) error {
	u, err := url.Parse(wsURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	logger.Info("connecting", "url", u.String())
	conn, _, err := d.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	done := make(chan error, 1)
	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					done <- fmt.Errorf("websocket: %w", err)
					return
				}
				done <- nil
				return
			}
			if raw {
				_, _ = fmt.Fprintln(out, string(message))
				continue
			}
			printMessage(out, message)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		err := conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		if err != nil {
			logger.Warn("error closing connection", "error", err)
		}
		return nil
	case err := <-done:
		logger.Info("connection closed")
		return err
	}
}

// printMessage renders one feed message as a console line.
func printMessage(out io.Writer, message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		_, _ = fmt.Fprintf(out, "[TEXT] %s\n", message)
		return
	}

	switch env.Type {
	case "session_init":
		var s sessionInit
		if err := json.Unmarshal(env.Data, &s); err != nil {
			break
		}
		_, _ = fmt.Fprintf(out, "[SESSION] %s file=%s max=%.1f dB atten=%.1f dB peak=%.1f dB\n",
			s.SessionID, s.File, s.MaxHWSPL, s.AttenuationDB, s.PeakSPL)
		return

	case "reading":
		var r reading
		if err := json.Unmarshal(env.Data, &r); err != nil {
			break
		}
		_, _ = fmt.Fprintf(out, "[READING] SPL: %5.1f dB | Vol for 75dB: %4.1f%% | PEAK: %5.1f dB | %s\n",
			r.SPL, r.VolumeForTarget, r.PeakSPL, r.Status)
		return

	case "session_ended":
		var e sessionEnded
		if err := json.Unmarshal(env.Data, &e); err != nil {
			break
		}
		_, _ = fmt.Fprintf(out, "[ENDED] %s peak=%.1f dB accepted=%d discarded=%d\n",
			e.SessionID, e.PeakSPL, e.Accepted, e.Discarded)
		return
	}

	_, _ = fmt.Fprintf(out, "[%s] %s\n", env.Type, env.Data)
}
