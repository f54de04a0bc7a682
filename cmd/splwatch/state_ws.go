package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ============================================================================
// Status WebSocket: hub + per-client loops + broadcaster
// ============================================================================
//
// The monitor loop owns the MonitoringSession. It never shares it; it emits
// StateBroadcast values (copies) through a channel with a non-blocking send.
// The broadcaster turns those into JSON frames and the hub fans them out.
//
//   - Messages are JSON text frames with an envelope: {type, ts, data}.
//   - "session_init" is sent on connect with the latest session snapshot.
//   - "reading" updates are coalesced (latest-wins) every wsReadingCoalesceWindow.
//   - Slow clients are disconnected when their send buffer fills.
//   - On shutdown queued frames (session_ended) are flushed before close.
//
// ============================================================================

// StateBroadcast is a marker interface for values the monitor publishes.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastSessionStarted is published once streaming begins.
type BroadcastSessionStarted struct {
	Snapshot SessionSnapshot
}

func (BroadcastSessionStarted) broadcastMarker() {}

// BroadcastReading is published for every accepted sample.
type BroadcastReading struct {
	SessionID uuid.UUID
	Reading   Reading
}

func (BroadcastReading) broadcastMarker() {}

// BroadcastSessionEnded is published when the monitor stops.
type BroadcastSessionEnded struct {
	SessionID uuid.UUID
	PeakSPL   float64
	Accepted  int
	Discarded int
	At        time.Time
}

func (BroadcastSessionEnded) broadcastMarker() {}

// SessionSnapshot is the externally visible view of a MonitoringSession.
type SessionSnapshot struct {
	SessionID     uuid.UUID `json:"session_id"`
	File          string    `json:"file"`
	StartedAt     time.Time `json:"started_at"`
	MaxHWSPL      float64   `json:"max_hw_spl_db"`
	AttenuationDB float64   `json:"attenuation_db"`
	VolumePercent float64   `json:"volume_percent"`
	Law           TaperLaw  `json:"law"`
	PeakSPL       float64   `json:"peak_spl_db"`
	TargetSPL     float64   `json:"target_spl_db"`
	DangerSPL     float64   `json:"danger_spl_db"`
}

// Snapshot copies the session's public state.
func (s *MonitoringSession) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		SessionID:     s.ID,
		File:          s.File,
		StartedAt:     s.StartedAt,
		MaxHWSPL:      s.Hardware.MaxHWSPL,
		AttenuationDB: s.Volume.AttenuationDB,
		VolumePercent: s.Volume.Percent,
		Law:           s.Volume.Law,
		PeakSPL:       s.PeakSPL,
		TargetSPL:     referenceTargetSPL,
		DangerSPL:     dangerThresholdSPL,
	}
}

// publish hands b to the broadcaster without ever blocking the monitor.
func publish(feed chan<- StateBroadcast, b StateBroadcast, logger *slog.Logger) {
	if feed == nil {
		return
	}
	select {
	case feed <- b:
	default:
		logger.Debug("status feed queue full, dropping broadcast")
	}
}

// wsReadingData is the JSON `data` payload for "reading".
type wsReadingData struct {
	SessionID       uuid.UUID `json:"session_id"`
	LoudnessLKFS    float64   `json:"loudness_lkfs"`
	SPL             float64   `json:"spl_db"`
	VolumeForTarget float64   `json:"volume_for_target_pct"`
	PeakSPL         float64   `json:"peak_spl_db"`
	Status          Status    `json:"status"`
}

// wsSessionEndedData is the JSON `data` payload for "session_ended".
type wsSessionEndedData struct {
	SessionID uuid.UUID `json:"session_id"`
	PeakSPL   float64   `json:"peak_spl_db"`
	Accepted  int       `json:"accepted"`
	Discarded int       `json:"discarded"`
}

// wsOutboundEvent is a pre-typed, externally-consumable state event.
type wsOutboundEvent struct {
	Type string
	Data any
	At   time.Time // zero means "use now"
}

// envelope is the wire format envelope for WS messages.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

// ============================================================================
// Hub
// ============================================================================

// Hub fans serialized frames out to connected clients. One goroutine (Run)
// owns registration and delivery; client write loops only drain their queue.
type Hub struct {
	logger *slog.Logger

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	// writers counts running client write loops so shutdown can wait for
	// queued frames to reach the wire.
	writers sync.WaitGroup
	closed  bool

	sendBuf int
}

type HubConfig struct {
	SendBuf      int // per-client outbound queue (default 32)
	BroadcastBuf int // hub inbound queue (default 128)
}

// hubDrainTimeout bounds how long shutdown waits for client queues to flush.
const hubDrainTimeout = 2 * time.Second

func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	h := &Hub{
		logger:     logger,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    cfg.SendBuf,
	}
	if h.sendBuf <= 0 {
		h.sendBuf = 32
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 128
	}
	h.broadcast = make(chan []byte, bcastBuf)
	return h
}

// Run delivers frames until ctx is canceled. On shutdown it delivers frames
// that were already queued, closes every client queue so the write loops send
// a close frame, and waits (bounded) for them to finish.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("status client connected", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.drop(c, "gone")

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// deliver queues msg on every client; a client whose queue is full is dropped.
func (h *Hub) deliver(msg []byte) {
	var full []*Client

	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			full = append(full, c)
		}
	}
	h.mu.Unlock()

	for _, c := range full {
		h.drop(c, "slow_client")
	}
}

func (h *Hub) shutdown() {
	// Pending registrations first, so they receive the pending frames.
	for len(h.register) > 0 {
		c := <-h.register
		h.mu.Lock()
		h.clients[c] = struct{}{}
		h.mu.Unlock()
	}
	for len(h.broadcast) > 0 {
		h.deliver(<-h.broadcast)
	}

	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		closeQueue(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.writers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(hubDrainTimeout):
		h.logger.Warn("status clients did not drain before shutdown")
	}
}

// drop removes c and closes its connection immediately. Anything still
// queued for c is discarded.
func (h *Hub) drop(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}

	if c.conn != nil {
		_ = c.conn.Close()
	}
	closeQueue(c.send)
	h.logger.Info("status client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
}

// closeQueue closes a client queue that may already be closed.
func closeQueue(ch chan []byte) {
	defer func() { _ = recover() }()
	close(ch)
}

// BroadcastBytes queues a serialized frame without blocking; a full hub
// queue drops it.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("status feed queue full, dropping frame", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	remoteAddr string
	logger     *slog.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, hub.sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// wsReadingCoalesceWindow bounds how long a burst of readings is held
// (latest wins) before the newest one is sent.
const wsReadingCoalesceWindow = 50 * time.Millisecond

// attach registers c with the hub and starts its loops. It reports false
// once the hub has begun shutting down.
func (h *Hub) attach(c *Client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.writers.Add(1)
	h.mu.Unlock()

	h.register <- c
	go c.writeLoop()
	go c.readLoop()
	return true
}

// writeLoop sends queued frames and keepalive pings. When the hub closes the
// queue it writes everything still buffered, then a close frame.
func (c *Client) writeLoop() {
	defer c.hub.writers.Done()
	defer c.conn.Close()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session over"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logClosed("write", err)
				return
			}

		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logClosed("ping", err)
				return
			}
		}
	}
}

// readLoop discards inbound frames; its only job is noticing a dead peer.
func (c *Client) readLoop() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logClosed("read", err)
			select {
			case c.hub.unregister <- c:
			default:
			}
			return
		}
	}
}

func (c *Client) logClosed(op string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
		return
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		c.logger.Debug("status client closed", "op", op, "remote_addr", c.remoteAddr, "code", ce.Code)
		return
	}
	c.logger.Debug("status client error", "op", op, "remote_addr", c.remoteAddr, "error", err)
}

// ============================================================================
// HTTP Handler
// ============================================================================

type Server struct {
	logger *slog.Logger
	hub    *Hub

	// latest is written by the broadcaster and read by connecting clients.
	latest atomic.Pointer[SessionSnapshot]
}

type ServerConfig struct {
	Hub HubConfig
}

// NewServer constructs the status feed. Register it on a mux, then run
// Hub().Run(ctx) and RunBroadcaster.
func NewServer(logger *slog.Logger, cfg ServerConfig) *Server {
	return &Server{
		logger: logger,
		hub:    NewHub(logger, cfg.Hub),
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Register registers the WS handler on the provided mux.
func (s *Server) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleStatusWS)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStatusWS upgrades and registers a client, then sends session_init.
func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.logger)

	// Queue the snapshot before registering so it is the first frame the
	// client sees.
	if snap := s.latest.Load(); snap != nil {
		now := time.Now().UTC()
		initMsg, err := json.Marshal(envelope{Type: "session_init", Ts: &now, Data: snap})
		if err == nil {
			client.send <- initMsg
		}
	}

	// The loops outlive r.Context(); the hub and the peer end them.
	if !s.hub.attach(client) {
		_ = conn.Close()
	}
}

// ============================================================================
// Broadcaster
// ============================================================================

// RunBroadcaster reads monitor broadcasts, marshals them and fans them out.
// It returns when ctx is canceled or src is closed, flushing any pending reading.
func RunBroadcaster(ctx context.Context, s *Server, src <-chan StateBroadcast, logger *slog.Logger) {
	if s == nil || src == nil {
		return
	}
	hub := s.hub

	emit := func(ev wsOutboundEvent) {
		ts := ev.At
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		msg, err := json.Marshal(envelope{Type: ev.Type, Ts: &ts, Data: ev.Data})
		if err != nil {
			logger.Warn("ws broadcaster marshal failed", "error", err, "type", ev.Type)
			return
		}
		hub.BroadcastBytes(msg)
	}

	var pending *wsOutboundEvent
	var timer *time.Timer
	var timerCh <-chan time.Time

	flushPending := func() {
		if pending == nil {
			return
		}
		emit(*pending)
		pending = nil
	}

	stopTimer := func() {
		if timer != nil && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer = nil
		timerCh = nil
	}

	for {
		select {
		case <-ctx.Done():
			flushPending()
			stopTimer()
			return

		case <-timerCh:
			flushPending()
			stopTimer()

		case b, ok := <-src:
			if !ok {
				flushPending()
				stopTimer()
				logger.Debug("ws broadcaster stopping (source ended)")
				return
			}

			s.track(b)

			ev, ok := convertBroadcast(b)
			if !ok {
				continue
			}

			// Latest-wins for readings; the timer is not reset by new readings.
			if ev.Type == "reading" {
				copyEv := ev
				pending = &copyEv
				if timer == nil {
					timer = time.NewTimer(wsReadingCoalesceWindow)
					timerCh = timer.C
				}
				continue
			}

			flushPending()
			stopTimer()
			emit(ev)
		}
	}
}

// track keeps the snapshot served to newly connecting clients current.
func (s *Server) track(b StateBroadcast) {
	switch ev := b.(type) {
	case BroadcastSessionStarted:
		snap := ev.Snapshot
		s.latest.Store(&snap)

	case BroadcastReading:
		if cur := s.latest.Load(); cur != nil && cur.SessionID == ev.SessionID {
			next := *cur
			next.PeakSPL = ev.Reading.PeakSPL
			s.latest.Store(&next)
		}
	}
}

func convertBroadcast(b StateBroadcast) (wsOutboundEvent, bool) {
	switch ev := b.(type) {
	case BroadcastSessionStarted:
		return wsOutboundEvent{
			Type: "session_init",
			Data: ev.Snapshot,
			At:   ev.Snapshot.StartedAt,
		}, true

	case BroadcastReading:
		return wsOutboundEvent{
			Type: "reading",
			Data: wsReadingData{
				SessionID:       ev.SessionID,
				LoudnessLKFS:    ev.Reading.LoudnessLKFS,
				SPL:             ev.Reading.SPL,
				VolumeForTarget: ev.Reading.VolumeForTarget,
				PeakSPL:         ev.Reading.PeakSPL,
				Status:          ev.Reading.Status,
			},
			At: ev.Reading.At,
		}, true

	case BroadcastSessionEnded:
		return wsOutboundEvent{
			Type: "session_ended",
			Data: wsSessionEndedData{
				SessionID: ev.SessionID,
				PeakSPL:   ev.PeakSPL,
				Accepted:  ev.Accepted,
				Discarded: ev.Discarded,
			},
			At: ev.At,
		}, true

	default:
		return wsOutboundEvent{}, false
	}
}
