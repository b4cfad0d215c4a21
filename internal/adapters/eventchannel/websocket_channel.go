// Package eventchannel implements ports.EventChannel over a WebSocket.
package eventchannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	maxFrameSize = 64 * 1024
	sendQueue    = 64
)

var (
	ErrNotConnected  = errors.New("event channel not connected")
	ErrSendQueueFull = errors.New("event channel send queue full")
)

// Frame is the envelope of every message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Options struct {
	URL    string
	Token  string
	Logger *slog.Logger
	// Reconnect delay bounds; defaults 1s and 30s.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	Dialer       *websocket.Dialer
}

// WebSocketChannel keeps one authenticated connection to the event server and
// redials with exponential backoff when it drops.
//
// Emit never blocks on the network: frames go through a bounded queue drained
// by the connection's writer. Frames emitted while disconnected are rejected
// with ErrNotConnected; callers re-assert state on their own schedule.
type WebSocketChannel struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	logger *slog.Logger
	minB   time.Duration
	maxB   time.Duration

	handlersMu sync.RWMutex
	handlers   map[string][]func(json.RawMessage)

	send      chan []byte
	connected atomic.Bool
}

func New(opts Options) (*WebSocketChannel, error) {
	if opts.URL == "" {
		return nil, errors.New("event channel: url is empty")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = time.Second
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = 30 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			Proxy:            http.ProxyFromEnvironment,
		}
	}

	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}

	return &WebSocketChannel{
		url:      opts.URL,
		header:   header,
		dialer:   opts.Dialer,
		logger:   opts.Logger.With("component", "eventchannel"),
		minB:     opts.ReconnectMin,
		maxB:     opts.ReconnectMax,
		handlers: make(map[string][]func(json.RawMessage)),
		send:     make(chan []byte, sendQueue),
	}, nil
}

func (c *WebSocketChannel) On(event string, handler func(data json.RawMessage)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
}

func (c *WebSocketChannel) Emit(ctx context.Context, event string, payload any) error {
	if !c.connected.Load() {
		return fmt.Errorf("emit %s: %w", event, ErrNotConnected)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("emit %s: encode payload: %w", event, err)
	}
	b, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("emit %s: encode frame: %w", event, err)
	}

	select {
	case c.send <- b:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("emit %s: %w", event, ctx.Err())
	default:
		return fmt.Errorf("emit %s: %w", event, ErrSendQueueFull)
	}
}

func (c *WebSocketChannel) Connected() bool { return c.connected.Load() }

// Run dials and serves the connection until ctx is done.
func (c *WebSocketChannel) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.minB
	b.MaxInterval = c.maxB
	b.Reset()

	for {
		conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err == nil {
			b.Reset()
			c.logger.Info("event channel connected", "url", c.url)

			err = c.serve(ctx, conn)
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("event channel disconnected", "err", err)
		} else {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("event channel dial failed", "url", c.url, "err", err)
		}

		delay := b.NextBackOff()
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// serve pumps frames on one connection. It returns when the connection fails
// or ctx is done, with the connection closed and the reader finished.
func (c *WebSocketChannel) serve(ctx context.Context, conn *websocket.Conn) error {
	c.connected.Store(true)
	defer func() {
		c.connected.Store(false)
		c.drain()
	}()

	readErr := make(chan error, 1)
	go func() { readErr <- c.readPump(conn) }()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	fail := func(err error) error {
		conn.Close()
		<-readErr
		return err
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return fail(ctx.Err())

		case err := <-readErr:
			conn.Close()
			return err

		case b := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return fail(fmt.Errorf("write frame: %w", err))
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return fail(fmt.Errorf("write ping: %w", err))
			}
		}
	}
}

func (c *WebSocketChannel) readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("read frame: %w", err)
			}
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
			c.logger.Warn("event channel frame ignored", "bytes", len(data))
			continue
		}
		c.dispatch(f)
	}
}

func (c *WebSocketChannel) dispatch(f Frame) {
	c.handlersMu.RLock()
	hs := c.handlers[f.Event]
	c.handlersMu.RUnlock()

	if len(hs) == 0 {
		c.logger.Debug("event channel frame unhandled", "event", f.Event)
		return
	}
	for _, h := range hs {
		h(f.Data)
	}
}

// drain discards frames queued for a connection that is gone.
func (c *WebSocketChannel) drain() {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}
