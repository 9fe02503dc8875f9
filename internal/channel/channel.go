package channel

import (
	"context"
	"log"
	"sync"
	"time"

	"linklearn/internal/config"
	"linklearn/internal/transport"
	"linklearn/pkg/interfaces"
	"linklearn/pkg/types"
)

// forcedReconnectDelay is the pause between a forced close and the reopen
// in Reconnect. Shorter than the automatic retry delay so a user-requested
// reconnect feels immediate.
const forcedReconnectDelay = 500 * time.Millisecond

// Channel maintains one logical connection per session id, translates
// inbound envelopes into state mutations, and owns the reconnection
// policy. SessionState, the timer, and the credit balance are exclusively
// owned here; other components read snapshots and receive typed callbacks.
type Channel struct {
	baseURL        string
	sessionID      string
	token          string
	userID         string
	reconnectDelay time.Duration

	dialer interfaces.Transport

	mu             sync.Mutex
	conn           interfaces.Conn
	reconnectTimer *time.Timer
	closed         bool

	state       *types.SessionState
	credits     float64
	transcript  []types.ChatMessage
	peerPresent bool
	peerTyping  bool
	lastError   string

	onSignal    func(types.SignalPayload)
	onDocument  func(kind string, update types.DocumentUpdate)
	onState     func(types.SessionState)
	onConnected func()
}

// New creates a session channel. Connect must be called to open it.
func New(cfg *config.ServerConfig, dialer interfaces.Transport) *Channel {
	return &Channel{
		baseURL:        cfg.BaseURL,
		sessionID:      cfg.SessionID,
		token:          cfg.Token,
		userID:         cfg.UserID,
		reconnectDelay: cfg.ReconnectDelay,
		dialer:         dialer,
	}
}

// OnSignal registers the receiver for relayed peer-negotiation payloads.
// Registration must happen before Connect.
func (c *Channel) OnSignal(fn func(types.SignalPayload)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSignal = fn
}

// OnDocumentUpdate registers the receiver for code_update and
// whiteboard_update payloads; kind carries the envelope type.
func (c *Channel) OnDocumentUpdate(fn func(kind string, update types.DocumentUpdate)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDocument = fn
}

// OnSessionState registers an observer for full session snapshots.
func (c *Channel) OnSessionState(fn func(types.SessionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

// OnConnected registers an observer invoked after every successful
// connect, including reconnects. Used to re-announce negotiation
// readiness on a fresh transport.
func (c *Channel) OnConnected(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnected = fn
}

// Connect opens the transport. It is a no-op when a connection is already
// open, when the channel is closed, or when the session id or credential
// is absent or sentinel-invalid. At most one live connection exists per
// channel at a time.
func (c *Channel) Connect() {
	c.mu.Lock()
	if c.closed || c.conn != nil {
		c.mu.Unlock()
		return
	}
	if !types.IsValidSessionID(c.sessionID) || !types.IsValidToken(c.token) {
		c.mu.Unlock()
		log.Printf("session channel: not connecting, missing session id or credential")
		return
	}
	endpoint := transport.SessionEndpoint(c.baseURL, c.sessionID, c.token)
	c.mu.Unlock()

	conn, err := c.dialer.Dial(context.Background(), endpoint)
	if err != nil {
		log.Printf("session channel: dial failed: %v", err)
		c.scheduleReconnect(c.reconnectDelay)
		return
	}

	c.mu.Lock()
	if c.closed || c.conn != nil {
		// Lost a race with teardown or a concurrent connect.
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	onConnected := c.onConnected
	c.mu.Unlock()

	log.Printf("session channel: connected to session %s", c.sessionID)
	go c.readLoop(conn)
	if onConnected != nil {
		onConnected()
	}
}

// Disconnect cancels any pending reconnection and closes the transport.
// Idempotent.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// Reconnect forces a close followed by a reopen after a short fixed
// delay, superseding any in-flight automatic reconnection.
func (c *Channel) Reconnect() {
	c.Disconnect()
	c.scheduleReconnect(forcedReconnectDelay)
}

// Close tears the channel down permanently: the reconnect timer is
// cancelled, the transport closed, and no reconnection attempt racing
// with teardown can resurrect the connection.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Disconnect()
}

// IsConnected reports whether a live connection is open. Sends are
// best-effort until this is observed true.
func (c *Channel) IsConnected() bool {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return false
	}
	select {
	case <-conn.Done():
		return false
	default:
		return true
	}
}

// readLoop pumps envelopes from one connection in delivery order, then
// applies the reconnection policy when the connection dies.
func (c *Channel) readLoop(conn interfaces.Conn) {
	for data := range conn.Inbound() {
		c.dispatch(data)
	}
	<-conn.Done()

	c.mu.Lock()
	if c.closed || c.conn != conn {
		// Explicit teardown or a superseding connection; nothing to do.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	code := conn.CloseCode()
	tokenValid := types.IsValidToken(c.token)
	c.mu.Unlock()

	if code == interfaces.CloseCodeUnauthorized {
		log.Printf("session channel: terminated as unauthorized (code %d), not reconnecting", code)
		return
	}
	if !tokenValid {
		return
	}
	log.Printf("session channel: connection lost (code %d), reconnecting in %s", code, c.reconnectDelay)
	c.scheduleReconnect(c.reconnectDelay)
}

// scheduleReconnect arms exactly one pending reconnection attempt. Linear
// retry: a failed attempt re-enters the same policy.
func (c *Channel) scheduleReconnect(delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.reconnectTimer != nil {
		return
	}
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		closed := c.closed
		c.mu.Unlock()
		if !closed {
			c.Connect()
		}
	})
}
