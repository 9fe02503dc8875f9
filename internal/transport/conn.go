package transport

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"linklearn/pkg/interfaces"
)

const (
	writeTimeout     = 5 * time.Second
	handshakeTimeout = 10 * time.Second
	writeBufferSize  = 100
	readBufferSize   = 100
)

// Dialer opens websocket connections to the session server. It implements
// interfaces.Transport.
type Dialer struct {
	dialer *websocket.Dialer
}

// NewDialer creates a websocket dialer with the standard handshake timeout.
func NewDialer() *Dialer {
	return &Dialer{
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// Dial opens a connection and starts its read and write pumps.
func (d *Dialer) Dial(ctx context.Context, endpoint string) (interfaces.Conn, error) {
	ws, _, err := d.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", endpoint, err)
	}
	return newConn(ws), nil
}

// SessionEndpoint builds the session-scoped websocket URL:
// <base>/ws/session/<sessionID>/?token=<credential>.
func SessionEndpoint(base, sessionID, token string) string {
	return fmt.Sprintf("%s/ws/session/%s/?token=%s",
		strings.TrimRight(base, "/"), sessionID, url.QueryEscape(token))
}

// Conn wraps a gorilla websocket connection. Writes are serialized through
// a single writer goroutine; reads are pumped in order onto the inbound
// channel by a single reader goroutine.
type Conn struct {
	ws      *websocket.Conn
	writeCh chan []byte
	inbound chan []byte

	done      chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	closeCode int
}

func newConn(ws *websocket.Conn) *Conn {
	c := &Conn{
		ws:      ws,
		writeCh: make(chan []byte, writeBufferSize),
		inbound: make(chan []byte, readBufferSize),
		done:    make(chan struct{}),
	}
	go c.writeLoop()
	go c.readLoop()
	return c
}

// Send queues one text frame for the writer goroutine.
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.done:
		return interfaces.ErrConnClosed
	default:
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.done:
		return interfaces.ErrConnClosed
	case <-time.After(writeTimeout):
		return ErrWriteTimeout
	}
}

// Inbound returns the ordered stream of received text frames.
func (c *Conn) Inbound() <-chan []byte {
	return c.inbound
}

// Done is closed once the connection is torn down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// CloseCode returns the close status seen when the connection ended, or 0.
func (c *Conn) CloseCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

// Close tears the connection down; idempotent.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// writeLoop is the single writer goroutine; it serializes all frames onto
// the wire with a per-write deadline.
func (c *Conn) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readLoop pumps inbound frames in wire order. On read failure it records
// the close code, closes the inbound channel, and tears down.
func (c *Conn) readLoop() {
	defer func() {
		close(c.inbound)
		c.Close()
	}()

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if closeErr, ok := err.(*websocket.CloseError); ok {
				c.mu.Lock()
				c.closeCode = closeErr.Code
				c.mu.Unlock()
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		select {
		case c.inbound <- data:
		case <-c.done:
			return
		}
	}
}
