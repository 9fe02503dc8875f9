package types

import (
	"encoding/json"
	"time"
)

// Server-pushed envelope types.
const (
	TypeSessionState     = "session_state"
	TypeTimerStarted     = "timer_started"
	TypeTimerStopped     = "timer_stopped"
	TypeSessionEnded     = "session_ended"
	TypeCreditUpdate     = "credit_update"
	TypeSignal           = "signal"
	TypeWhiteboardUpdate = "whiteboard_update"
	TypeCodeUpdate       = "code_update"
	TypeChatMessage      = "chat_message"
	TypeTyping           = "typing"
	TypeUserJoined       = "user_joined"
	TypeUserLeft         = "user_left"
	TypeError            = "error"
)

// Client-originated envelope types.
const (
	TypeTimerStart = "timer_start"
	TypeTimerStop  = "timer_stop"
	TypeEndSession = "end_session"
)

// Signal payload types relayed between peers during negotiation.
const (
	SignalReady     = "ready"
	SignalOffer     = "offer"
	SignalAnswer    = "answer"
	SignalCandidate = "candidate"
)

// Envelope is the transport-level unit exchanged in both directions:
// one JSON object per message, discriminated by the type tag. Payload
// fields live alongside the tag, so dispatch decodes the tag first and
// then re-decodes the same bytes into the type-specific struct.
type Envelope struct {
	Type string `json:"type"`
}

// Participant identifies one of the two paired users in a session.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TimerState describes the currently running teaching timer. At most one
// timer exists per session at any instant; the server enforces this and
// the client overwrites rather than rejecting a second start.
type TimerState struct {
	ID             string     `json:"id"`
	TeacherID      string     `json:"teacher_id"`
	TeacherName    string     `json:"teacher_name"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	ElapsedSeconds *float64   `json:"elapsed_seconds,omitempty"`
	Running        bool       `json:"is_running"`
}

// SessionState is the authoritative local mirror of the server's session
// record. A session_state envelope replaces it wholesale; incremental
// events patch individual fields. IsActive == false is terminal.
type SessionState struct {
	ID                string      `json:"id"`
	User1             Participant `json:"user1"`
	User2             Participant `json:"user2"`
	User1TeachingTime float64     `json:"user1_teaching_time"`
	User2TeachingTime float64     `json:"user2_teaching_time"`
	IsActive          bool        `json:"is_active"`
	ActiveTimer       *TimerState `json:"active_timer,omitempty"`
}

// Other returns the participant that is not the given user.
func (s *SessionState) Other(userID string) Participant {
	if s.User1.ID == userID {
		return s.User2
	}
	return s.User1
}

// SessionStatePayload carries a full session snapshot.
type SessionStatePayload struct {
	Session SessionState `json:"session"`
}

// TimerStartedPayload announces that a participant's teaching timer began.
type TimerStartedPayload struct {
	TimerID     string    `json:"timer_id"`
	TeacherID   string    `json:"teacher_id"`
	TeacherName string    `json:"teacher_name"`
	StartTime   time.Time `json:"start_time"`
}

// TimerStoppedPayload announces the running timer stopped. NewTotalTime,
// when present, is the teacher's updated accumulated teaching seconds.
type TimerStoppedPayload struct {
	TeacherID    string   `json:"teacher_id"`
	NewTotalTime *float64 `json:"new_total_time,omitempty"`
}

// SessionEndedPayload announces session termination. YourCredits, when
// present, is the local user's settled balance after credit transfer.
type SessionEndedPayload struct {
	YourCredits *float64 `json:"your_credits,omitempty"`
}

// CreditUpdatePayload pushes a new balance for a specific user. Clients
// apply it only when the user id matches their own.
type CreditUpdatePayload struct {
	UserID     string  `json:"user_id"`
	NewBalance float64 `json:"new_balance"`
}

// SignalPayload is a peer-negotiation message relayed opaquely through the
// session server. SDP and Candidate stay raw here; only the negotiation
// engine interprets them.
type SignalPayload struct {
	Type      string          `json:"type"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// SignalEnvelope wraps a relayed negotiation payload.
type SignalEnvelope struct {
	Type    string        `json:"type"`
	Payload SignalPayload `json:"payload"`
}

// DocumentEntry is one named element of a collaborative document: a source
// file with a language kind, or a stroke layer for a whiteboard surface.
type DocumentEntry struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// Document is the shared mutable artifact kept consistent between the two
// participants. It always contains at least one entry.
type Document struct {
	Entries     []DocumentEntry `json:"files"`
	ActiveIndex int             `json:"activeIndex"`
}

// Clone returns a deep copy so snapshots can cross goroutine boundaries.
func (d Document) Clone() Document {
	entries := make([]DocumentEntry, len(d.Entries))
	copy(entries, d.Entries)
	return Document{Entries: entries, ActiveIndex: d.ActiveIndex}
}

// Origin tags on document updates distinguish self-originated broadcasts
// from genuine remote edits.
const (
	OriginLocal  = "local"
	OriginRemote = "remote"
)

// DocumentUpdate is the full-document payload broadcast on every edit.
// OriginID and Seq let receivers drop echoes of their own unacknowledged
// broadcasts; Origin is the coarse local/remote tag.
type DocumentUpdate struct {
	Document
	Origin   string `json:"origin,omitempty"`
	OriginID string `json:"origin_id,omitempty"`
	Seq      uint64 `json:"seq,omitempty"`
}

// DocumentEnvelope wraps a document update for the wire.
type DocumentEnvelope struct {
	Type string         `json:"type"`
	Data DocumentUpdate `json:"data"`
}

// ErrorPayload is a server-reported failure, surfaced to the presentation
// layer rather than thrown.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ChatMessage is one entry of the in-session chat transcript.
type ChatMessage struct {
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// TypingPayload is the peer's typing indicator.
type TypingPayload struct {
	User     Participant `json:"user"`
	IsTyping bool        `json:"is_typing"`
}

// PresencePayload announces a participant joining or leaving the session
// channel.
type PresencePayload struct {
	User Participant `json:"user"`
}
