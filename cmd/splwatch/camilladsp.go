package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// camillaConnectAttempts bounds startup retries; the monitor cannot start
// without a volume reading.
const camillaConnectAttempts = 3

// CamillaDSPClient reads the main fader volume from CamillaDSP over its
// websocket API.
type CamillaDSPClient struct {
	mu          sync.Mutex
	conn        *websocket.Conn
	url         string
	logger      *slog.Logger
	readTimeout time.Duration
	retryDelay  time.Duration
}

// NewCamillaDSPClient creates a client and establishes the connection.
func NewCamillaDSPClient(wsURL string, logger *slog.Logger, readTimeoutMS int) (*CamillaDSPClient, error) {
	if _, err := url.Parse(wsURL); err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}

	client := &CamillaDSPClient{
		url:         wsURL,
		logger:      logger,
		readTimeout: time.Duration(readTimeoutMS) * time.Millisecond,
		retryDelay:  500 * time.Millisecond,
	}

	if err := client.connectWithRetry(); err != nil {
		return nil, err
	}

	return client, nil
}

func (c *CamillaDSPClient) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	d := websocket.Dialer{
		HandshakeTimeout: 2 * time.Second,
	}

	conn, _, err := d.Dial(c.url, nil)
	if err != nil {
		return err
	}

	c.conn = conn
	return nil
}

func (c *CamillaDSPClient) connectWithRetry() error {
	var lastErr error
	for attempt := 0; attempt < camillaConnectAttempts; attempt++ {
		err := c.connect()
		if err == nil {
			c.logger.Info("connected to CamillaDSP", "url", c.url)
			return nil
		}
		lastErr = err
		c.logger.Warn("CamillaDSP connection failed; retrying...", "error", err, "attempt", attempt+1)
		time.Sleep(c.retryDelay)
	}
	return fmt.Errorf("connect to CamillaDSP after %d attempts: %w", camillaConnectAttempts, lastErr)
}

// sendAndRead sends a command and waits for its response.
func (c *CamillaDSPClient) sendAndRead(v any) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, fmt.Errorf("no websocket connection")
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, err
	}

	c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	defer c.conn.SetReadDeadline(time.Time{})

	_, message, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	return message, nil
}

// GetVolume queries CamillaDSP for the current main volume in dB.
func (c *CamillaDSPClient) GetVolume() (float64, error) {
	response, err := c.sendAndRead("GetVolume")
	if err != nil {
		return 0, fmt.Errorf("get volume: %w", err)
	}

	var volResp struct {
		GetVolume struct {
			Result string  `json:"result"`
			Value  float64 `json:"value"`
		} `json:"GetVolume"`
	}

	if err := json.Unmarshal(response, &volResp); err != nil {
		return 0, fmt.Errorf("parse GetVolume response: %w", err)
	}
	if volResp.GetVolume.Result != "Ok" {
		return 0, fmt.Errorf("get volume: CamillaDSP returned %q", volResp.GetVolume.Result)
	}

	c.logger.Debug("GetVolume", "volume_db", volResp.GetVolume.Value)

	return volResp.GetVolume.Value, nil
}

// Close closes the WebSocket connection
func (c *CamillaDSPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	return nil
}
