package channel

import "linklearn/pkg/types"

// State returns a snapshot of the session mirror, or nil before the first
// session_state push.
func (c *Channel) State() *types.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return nil
	}
	state := *c.state
	if c.state.ActiveTimer != nil {
		timer := *c.state.ActiveTimer
		state.ActiveTimer = &timer
	}
	return &state
}

// Credits returns the local user's spendable balance as last pushed by
// the server.
func (c *Channel) Credits() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credits
}

// Transcript returns a copy of the chat transcript.
func (c *Channel) Transcript() []types.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	transcript := make([]types.ChatMessage, len(c.transcript))
	copy(transcript, c.transcript)
	return transcript
}

// PeerPresent reports whether the other participant is on the channel.
func (c *Channel) PeerPresent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerPresent
}

// PeerTyping reports the peer's last typing indicator.
func (c *Channel) PeerTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerTyping
}

// LastError returns the most recent server-reported error, surfaced to
// the presentation layer instead of thrown.
func (c *Channel) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// UserID returns the local participant identifier.
func (c *Channel) UserID() string {
	return c.userID
}
