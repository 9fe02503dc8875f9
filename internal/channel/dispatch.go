package channel

import (
	"encoding/json"
	"log"
	"time"

	"linklearn/pkg/types"
)

// dispatch routes one inbound envelope by its type tag. Malformed
// payloads are logged and dropped; they never crash dispatch or close the
// connection.
func (c *Channel) dispatch(data []byte) {
	var env types.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("session channel: dropping malformed envelope: %v", err)
		return
	}

	switch env.Type {
	case types.TypeSessionState:
		c.handleSessionState(data)
	case types.TypeTimerStarted:
		c.handleTimerStarted(data)
	case types.TypeTimerStopped:
		c.handleTimerStopped(data)
	case types.TypeSessionEnded:
		c.handleSessionEnded(data)
	case types.TypeCreditUpdate:
		c.handleCreditUpdate(data)
	case types.TypeSignal:
		c.handleSignal(data)
	case types.TypeCodeUpdate, types.TypeWhiteboardUpdate:
		c.handleDocumentUpdate(env.Type, data)
	case types.TypeChatMessage:
		c.handleChatMessage(data)
	case types.TypeTyping:
		c.handleTyping(data)
	case types.TypeUserJoined:
		c.handlePresence(data, true)
	case types.TypeUserLeft:
		c.handlePresence(data, false)
	case types.TypeError:
		c.handleError(data)
	default:
		log.Printf("session channel: dropping envelope with unknown type %q", env.Type)
	}
}

// handleSessionState replaces the session mirror wholesale: the snapshot
// is authoritative and supersedes any prior incremental patches.
func (c *Channel) handleSessionState(data []byte) {
	var p types.SessionStatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Printf("session channel: dropping malformed session_state: %v", err)
		return
	}

	c.mu.Lock()
	state := p.Session
	c.state = &state
	onState := c.onState
	snapshot := state
	c.mu.Unlock()

	if onState != nil {
		onState(snapshot)
	}
}

func (c *Channel) handleTimerStarted(data []byte) {
	var p types.TimerStartedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Printf("session channel: dropping malformed timer_started: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil || !c.state.IsActive {
		// Ended sessions are terminal; a late timer event cannot revive one.
		log.Printf("session channel: ignoring timer_started for inactive session")
		return
	}
	c.state.ActiveTimer = &types.TimerState{
		ID:          p.TimerID,
		TeacherID:   p.TeacherID,
		TeacherName: p.TeacherName,
		StartTime:   p.StartTime,
		Running:     true,
	}
}

// handleTimerStopped always clears the active timer, whether or not the
// payload carries an updated teaching total.
func (c *Channel) handleTimerStopped(data []byte) {
	var p types.TimerStoppedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Printf("session channel: dropping malformed timer_stopped: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return
	}
	c.state.ActiveTimer = nil
	if p.NewTotalTime != nil && c.state.IsActive {
		switch p.TeacherID {
		case c.state.User1.ID:
			c.state.User1TeachingTime = *p.NewTotalTime
		case c.state.User2.ID:
			c.state.User2TeachingTime = *p.NewTotalTime
		}
	}
}

func (c *Channel) handleSessionEnded(data []byte) {
	var p types.SessionEndedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Printf("session channel: dropping malformed session_ended: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != nil {
		c.state.IsActive = false
		c.state.ActiveTimer = nil
	}
	if p.YourCredits != nil {
		c.credits = *p.YourCredits
	}
}

// handleCreditUpdate applies a pushed balance for the local user. The
// balance is never computed locally from elapsed time.
func (c *Channel) handleCreditUpdate(data []byte) {
	var p types.CreditUpdatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Printf("session channel: dropping malformed credit_update: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p.UserID != c.userID {
		return
	}
	if c.state != nil && !c.state.IsActive {
		log.Printf("session channel: ignoring credit_update for ended session")
		return
	}
	c.credits = p.NewBalance
}

// handleSignal forwards the relayed negotiation payload without
// interpreting it.
func (c *Channel) handleSignal(data []byte) {
	var env types.SignalEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("session channel: dropping malformed signal: %v", err)
		return
	}

	c.mu.Lock()
	onSignal := c.onSignal
	c.mu.Unlock()

	if onSignal != nil {
		onSignal(env.Payload)
	}
}

// handleDocumentUpdate forwards a full-document payload to the sync
// engine registered for its kind, without interpreting it.
func (c *Channel) handleDocumentUpdate(kind string, data []byte) {
	var env types.DocumentEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("session channel: dropping malformed %s: %v", kind, err)
		return
	}

	c.mu.Lock()
	onDocument := c.onDocument
	c.mu.Unlock()

	if onDocument != nil {
		onDocument(kind, env.Data)
	}
}

func (c *Channel) handleChatMessage(data []byte) {
	var msg types.ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("session channel: dropping malformed chat_message: %v", err)
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript = append(c.transcript, msg)
}

func (c *Channel) handleTyping(data []byte) {
	var p types.TypingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Printf("session channel: dropping malformed typing: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p.User.ID == c.userID {
		return
	}
	c.peerTyping = p.IsTyping
}

func (c *Channel) handlePresence(data []byte, joined bool) {
	var p types.PresencePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Printf("session channel: dropping malformed presence envelope: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p.User.ID == c.userID {
		return
	}
	c.peerPresent = joined
	if !joined {
		c.peerTyping = false
	}
}

func (c *Channel) handleError(data []byte) {
	var p types.ErrorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Printf("session channel: dropping malformed error envelope: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastError = p.Message
	log.Printf("session channel: server error: %s", p.Message)
}
