package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omnitak/takcore/errors"
	"github.com/omnitak/takcore/pkg/retry"
)

const (
	// DefaultReconnectDelay seeds the redial backoff when the config
	// leaves it unset.
	DefaultReconnectDelay = 5 * time.Second

	maxReconnectDelay       = time.Minute
	defaultHandshakeTimeout = 15 * time.Second
)

func dialTimeout(cfg Config) time.Duration {
	if cfg.ConnectTimeout > 0 {
		return cfg.ConnectTimeout
	}
	return defaultHandshakeTimeout
}

// reconnectBackoff maps a connection config onto the redial delay
// schedule. MaxAttempts is zero: the loop itself decides when to stop.
func reconnectBackoff(cfg Config) retry.Config {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return retry.Config{
		InitialDelay: delay,
		MaxDelay:     maxReconnectDelay,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// streamConn is a Conn over a net.Conn byte stream: TCP, TLS, or a
// connected UDP socket. Inbound bytes run through the </event> framer;
// each frame is handed to the registered callback on the connection's
// dispatch goroutine.
type streamConn struct {
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics

	// redial re-establishes the underlying socket after a lost link.
	redial func(context.Context) (net.Conn, error)

	mu     sync.Mutex
	nc     net.Conn
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

func newStreamConn(cfg Config, nc net.Conn, redial func(context.Context) (net.Conn, error), logger *slog.Logger, metrics *Metrics) *streamConn {
	c := &streamConn{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		redial:   redial,
		nc:       nc,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.connected.Store(true)
	go c.dispatchLoop()
	return c
}

func (c *streamConn) dispatchLoop() {
	defer close(c.done)

	for {
		c.mu.Lock()
		nc := c.nc
		c.mu.Unlock()
		if nc == nil {
			return
		}

		c.scan(nc)

		if c.isShutdown() {
			return
		}
		c.connected.Store(false)
		if !c.cfg.Reconnect {
			c.logger.Info("Connection lost", "address", c.cfg.Address())
			return
		}
		if !c.redialLoop() {
			return
		}
	}
}

// scan frames the stream until a read error or clean EOF; either one
// means the link is gone.
func (c *streamConn) scan(nc net.Conn) {
	maxSize := c.cfg.MaxEventSize
	if maxSize <= 0 {
		maxSize = DefaultMaxEventSize
	}

	scanner := bufio.NewScanner(nc)
	scanner.Buffer(make([]byte, 64*1024), maxSize)
	scanner.Split(splitEvents)

	for scanner.Scan() {
		// The scanner reuses its buffer across frames; the callback
		// owns its payload.
		frame := scanner.Bytes()
		payload := make([]byte, len(frame))
		copy(payload, frame)

		c.received.Add(1)
		c.metrics.recordReceived(c.cfg.Address(), len(payload))
		c.cb.deliver(payload)
	}

	if err := scanner.Err(); err != nil && !c.isShutdown() {
		c.lastErr.Store(err.Error())
		c.metrics.recordReadError(c.cfg.Address())
	}
}

// redialLoop blocks until a replacement socket is up or the connection
// is closed. Delays follow the shared backoff schedule, capped at one
// minute.
func (c *streamConn) redialLoop() bool {
	backoff := retry.NewBackoff(reconnectBackoff(c.cfg))

	for {
		select {
		case <-c.shutdown:
			return false
		case <-time.After(backoff.Next()):
		}

		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout(c.cfg))
		nc, err := c.redial(ctx)
		cancel()

		if err == nil {
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				nc.Close()
				return false
			}
			c.nc = nc
			c.mu.Unlock()

			c.connected.Store(true)
			c.reconnects.Add(1)
			c.metrics.recordReconnect(c.cfg.Address())
			c.logger.Info("Reconnected", "address", c.cfg.Address(), "attempts", c.reconnects.Load())
			return true
		}

		c.lastErr.Store(err.Error())
		c.logger.Warn("Reconnect failed", "address", c.cfg.Address(), "error", err)
	}
}

func (c *streamConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.WrapTransient(errors.ErrNoConnection, "transport", "Send", "connection closed")
	}
	if !c.connected.Load() || c.nc == nil {
		return errors.WrapTransient(errors.ErrNoConnection, "transport", "Send", "link down")
	}

	if c.cfg.WriteTimeout > 0 {
		c.nc.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if _, err := c.nc.Write(payload); err != nil {
		c.lastErr.Store(err.Error())
		c.metrics.recordSendError(c.cfg.Address())
		return errors.WrapTransient(err, "transport", "Send", "write "+c.cfg.Address())
	}
	c.sent.Add(1)
	c.metrics.recordSent(c.cfg.Address(), len(payload))
	return nil
}

func (c *streamConn) OnMessage(fn func([]byte)) {
	c.cb.set(fn)
}

func (c *streamConn) Status() Status {
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

func (c *streamConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.shutdown)
		c.connected.Store(false)

		c.mu.Lock()
		c.closed = true
		nc := c.nc
		c.nc = nil
		c.mu.Unlock()

		if nc != nil {
			nc.Close()
		}
	})
	return nil
}

func (c *streamConn) isShutdown() bool {
	select {
	case <-c.shutdown:
		return true
	default:
		return false
	}
}

// dialStream establishes the initial socket for TCP, TLS, and UDP
// endpoints and wraps it in a streamConn.
func dialStream(ctx context.Context, cfg Config, logger *slog.Logger, metrics *Metrics) (Conn, error) {
	redial := func(ctx context.Context) (net.Conn, error) {
		nd := &net.Dialer{Timeout: dialTimeout(cfg)}
		switch cfg.Protocol {
		case ProtocolTLS:
			td := &tls.Dialer{NetDialer: nd, Config: cfg.TLS}
			return td.DialContext(ctx, "tcp", cfg.Address())
		case ProtocolUDP:
			return nd.DialContext(ctx, "udp", cfg.Address())
		default:
			return nd.DialContext(ctx, "tcp", cfg.Address())
		}
	}

	nc, err := redial(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "transport", "Dial",
			string(cfg.Protocol)+" connect "+cfg.Address())
	}

	logger.Info("Connected", "protocol", string(cfg.Protocol), "address", cfg.Address())
	return newStreamConn(cfg, nc, redial, logger, metrics), nil
}
