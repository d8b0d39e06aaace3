package transport

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/omnitak/takcore/errors"
	"github.com/omnitak/takcore/pkg/retry"
)

// wsConn is a Conn over a WebSocket. One WebSocket message carries one
// CoT event, so no stream framer is involved.
type wsConn struct {
	cfg     Config
	url     string
	dialer  *websocket.Dialer
	logger  *slog.Logger
	metrics *Metrics

	mu     sync.Mutex
	wc     *websocket.Conn
	closed bool

	cb callbackHolder

	connected  atomic.Bool
	sent       atomic.Int64
	received   atomic.Int64
	reconnects atomic.Int64
	lastErr    atomic.Value // string

	shutdown  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(cfg Config, rawURL string, dialer *websocket.Dialer, wc *websocket.Conn, logger *slog.Logger, metrics *Metrics) *wsConn {
	c := &wsConn{
		cfg:      cfg,
		url:      rawURL,
		dialer:   dialer,
		logger:   logger,
		metrics:  metrics,
		wc:       wc,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.applyReadLimit(wc)
	c.connected.Store(true)
	go c.dispatchLoop()
	return c
}

func (c *wsConn) applyReadLimit(wc *websocket.Conn) {
	maxSize := c.cfg.MaxEventSize
	if maxSize <= 0 {
		maxSize = DefaultMaxEventSize
	}
	wc.SetReadLimit(int64(maxSize))
}

func (c *wsConn) dispatchLoop() {
	defer close(c.done)

	for {
		c.mu.Lock()
		wc := c.wc
		c.mu.Unlock()
		if wc == nil {
			return
		}

		c.readLoop(wc)

		if c.isShutdown() {
			return
		}
		c.connected.Store(false)
		if !c.cfg.Reconnect {
			c.logger.Info("Connection lost", "url", c.url)
			return
		}
		if !c.redialLoop() {
			return
		}
	}
}

func (c *wsConn) readLoop(wc *websocket.Conn) {
	for {
		// ReadMessage allocates per message; the callback owns the
		// payload.
		_, payload, err := wc.ReadMessage()
		if err != nil {
			if !c.isShutdown() {
				c.lastErr.Store(err.Error())
				c.metrics.recordReadError(c.cfg.Address())
			}
			return
		}
		c.received.Add(1)
		c.metrics.recordReceived(c.cfg.Address(), len(payload))
		c.cb.deliver(payload)
	}
}

func (c *wsConn) redialLoop() bool {
	backoff := retry.NewBackoff(reconnectBackoff(c.cfg))

	for {
		select {
		case <-c.shutdown:
			return false
		case <-time.After(backoff.Next()):
		}

		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout(c.cfg))
		wc, _, err := c.dialer.DialContext(ctx, c.url, nil)
		cancel()

		if err == nil {
			c.applyReadLimit(wc)
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				wc.Close()
				return false
			}
			c.wc = wc
			c.mu.Unlock()

			c.connected.Store(true)
			c.reconnects.Add(1)
			c.metrics.recordReconnect(c.cfg.Address())
			c.logger.Info("Reconnected", "url", c.url, "attempts", c.reconnects.Load())
			return true
		}

		c.lastErr.Store(err.Error())
		c.logger.Warn("Reconnect failed", "url", c.url, "error", err)
	}
}

func (c *wsConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.WrapTransient(errors.ErrNoConnection, "transport", "Send", "connection closed")
	}
	if !c.connected.Load() || c.wc == nil {
		return errors.WrapTransient(errors.ErrNoConnection, "transport", "Send", "link down")
	}

	if c.cfg.WriteTimeout > 0 {
		c.wc.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if err := c.wc.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.lastErr.Store(err.Error())
		c.metrics.recordSendError(c.cfg.Address())
		return errors.WrapTransient(err, "transport", "Send", "write "+c.url)
	}
	c.sent.Add(1)
	c.metrics.recordSent(c.cfg.Address(), len(payload))
	return nil
}

func (c *wsConn) OnMessage(fn func([]byte)) {
	c.cb.set(fn)
}

func (c *wsConn) Status() Status {
	st := Status{
		Connected:        c.connected.Load(),
		MessagesSent:     c.sent.Load(),
		MessagesReceived: c.received.Load(),
		Reconnects:       c.reconnects.Load(),
	}
	if v, ok := c.lastErr.Load().(string); ok {
		st.LastError = v
	}
	return st
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.shutdown)
		c.connected.Store(false)

		c.mu.Lock()
		c.closed = true
		wc := c.wc
		c.wc = nil
		c.mu.Unlock()

		if wc != nil {
			wc.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			wc.Close()
		}
	})
	return nil
}

func (c *wsConn) isShutdown() bool {
	select {
	case <-c.shutdown:
		return true
	default:
		return false
	}
}

// dialWebSocket opens the WebSocket endpoint described by cfg. A TLS
// config upgrades the scheme to wss.
func dialWebSocket(ctx context.Context, cfg Config, logger *slog.Logger, metrics *Metrics) (Conn, error) {
	scheme := "ws"
	if cfg.TLS != nil {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: cfg.Address(), Path: cfg.Path}

	dialer := &websocket.Dialer{
		HandshakeTimeout: dialTimeout(cfg),
		TLSClientConfig:  cfg.TLS,
	}

	wc, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, errors.WrapTransient(err, "transport", "Dial", "websocket connect "+u.String())
	}

	logger.Info("Connected", "protocol", "websocket", "url", u.String())
	return newWSConn(cfg, u.String(), dialer, wc, logger, metrics), nil
}
