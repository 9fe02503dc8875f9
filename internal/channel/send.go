package channel

import (
	"encoding/json"
	"log"

	"linklearn/pkg/types"
)

// send marshals and writes one outbound envelope. Sends while the
// transport is not open are silently dropped, not errors: callers treat
// sends as best-effort until IsConnected is observed true.
func (c *Channel) send(v any) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("session channel: failed to marshal outbound envelope: %v", err)
		return
	}
	if err := conn.Send(data); err != nil {
		log.Printf("session channel: send failed: %v", err)
	}
}

// StartTimer asks the server to start the local user's teaching timer.
func (c *Channel) StartTimer() {
	c.send(types.Envelope{Type: types.TypeTimerStart})
}

// StopTimer asks the server to stop the running teaching timer.
func (c *Channel) StopTimer() {
	c.send(types.Envelope{Type: types.TypeTimerStop})
}

// EndSession asks the server to end the session and settle credits.
func (c *Channel) EndSession() {
	c.send(types.Envelope{Type: types.TypeEndSession})
}

// SendSignal relays a peer-negotiation payload to the other participant.
func (c *Channel) SendSignal(p types.SignalPayload) {
	c.send(types.SignalEnvelope{Type: types.TypeSignal, Payload: p})
}

// SendDocumentUpdate broadcasts a full-document payload under the given
// envelope kind (code_update or whiteboard_update).
func (c *Channel) SendDocumentUpdate(kind string, update types.DocumentUpdate) {
	c.send(types.DocumentEnvelope{Type: kind, Data: update})
}

type chatEnvelope struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SendChat sends a chat message to the session.
func (c *Channel) SendChat(message string) {
	if message == "" {
		return
	}
	c.send(chatEnvelope{Type: types.TypeChatMessage, Message: message})
}

type typingEnvelope struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
}

// SendTyping reports the local typing indicator.
func (c *Channel) SendTyping(isTyping bool) {
	c.send(typingEnvelope{Type: types.TypeTyping, IsTyping: isTyping})
}
