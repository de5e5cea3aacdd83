package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfig configures streaming client behavior.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default streaming configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSQuoteClient streams live quotes over a WebSocket feed. One client
// carries one quote channel; subscriptions are re-sent after reconnect.
type WSQuoteClient struct {
	endpoint string
	config   WSConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	// symbols subscribed so far, kept for resubscription after reconnect
	symbols   map[string]struct{}
	symbolsMu sync.RWMutex

	quotes chan Quote

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewWSQuoteClient connects to the quote feed and starts the read and
// ping loops.
func NewWSQuoteClient(ctx context.Context, endpoint string, config *WSConfig) (*WSQuoteClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSQuoteClient{
		endpoint: endpoint,
		config:   cfg,
		symbols:  make(map[string]struct{}),
		// Blocking send ensures no quote loss; buffer absorbs bursts
		quotes: make(chan Quote, 4096),
		done:   make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// Quotes returns the stream of incoming quotes. The channel is closed
// when the client is closed.
func (c *WSQuoteClient) Quotes() <-chan Quote {
	return c.quotes
}

// connect establishes the WebSocket connection.
func (c *WSQuoteClient) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// Subscribe registers symbols for quote delivery.
func (c *WSQuoteClient) Subscribe(ctx context.Context, symbols ...string) error {
	if c.closed.Load() {
		return fmt.Errorf("client closed")
	}
	if len(symbols) == 0 {
		return nil
	}

	c.symbolsMu.Lock()
	for _, s := range symbols {
		c.symbols[s] = struct{}{}
	}
	c.symbolsMu.Unlock()

	return c.writeSubscribe(symbols)
}

// writeSubscribe sends a subscribe frame for the given symbols.
func (c *WSQuoteClient) writeSubscribe(symbols []string) error {
	req := wsSubscribeRequest{
		Op:      "subscribe",
		Symbols: symbols,
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// Close closes the connection and the quote channel.
func (c *WSQuoteClient) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.quotes)
	return nil
}

// readLoop reads messages and dispatches quotes to the channel.
func (c *WSQuoteClient) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// reconnect re-dials the feed and resubscribes registered symbols.
func (c *WSQuoteClient) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		return
	}

	c.symbolsMu.RLock()
	symbols := make([]string, 0, len(c.symbols))
	for s := range c.symbols {
		symbols = append(symbols, s)
	}
	c.symbolsMu.RUnlock()

	if len(symbols) > 0 {
		c.writeSubscribe(symbols)
	}
}

// handleMessage parses one incoming frame. Non-quote frames are ignored.
func (c *WSQuoteClient) handleMessage(message []byte) {
	var frame wsQuoteFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		return
	}
	if frame.Type != "quote" || frame.Symbol == "" {
		return
	}

	q := Quote{
		Symbol: frame.Symbol,
		Price:  frame.Price,
		Volume: frame.Volume,
		Time:   time.Unix(frame.Timestamp, 0).UTC(),
	}

	// Block until we can send - never drop quotes
	select {
	case c.quotes <- q:
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *WSQuoteClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket frame types

type wsSubscribeRequest struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

type wsQuoteFrame struct {
	Type      string  `json:"type"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	Timestamp int64   `json:"ts"`
}
