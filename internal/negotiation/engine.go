package negotiation

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/pion/webrtc/v4"

	"linklearn/internal/config"
	"linklearn/pkg/interfaces"
	"linklearn/pkg/types"
)

// Engine drives the peer-link handshake: it consumes and produces signal
// payloads relayed through the session channel and owns the local media/
// data link. One engine exists per session entry; it is destroyed and
// recreated on re-entry.
type Engine struct {
	iceServers []string
	localID    string
	source     interfaces.MediaSource
	send       func(types.SignalPayload)
	prefs      *config.Preferences
	prefsPath  string

	mu     sync.Mutex
	pc     *webrtc.PeerConnection
	peerID string
	// polite marks which side yields in a glare collision: the participant
	// with the lexicographically smaller id abandons its offer, the other
	// ignores the colliding one.
	polite bool

	// pending buffers remote candidates that outrace the offer/answer;
	// they are flushed once a remote description is applied.
	pending []webrtc.ICECandidateInit

	audio       interfaces.MediaTrack
	video       interfaces.MediaTrack
	videoSender *webrtc.RTPSender

	remoteTracks int
	closed       bool
}

// NewEngine creates a negotiation engine. send relays outbound signal
// payloads through the session channel; prefs supplies the persisted
// video/mute preference.
func NewEngine(cfg *config.MediaConfig, localID string, source interfaces.MediaSource, send func(types.SignalPayload), prefs *config.Preferences) *Engine {
	return &Engine{
		iceServers: cfg.ICEServers,
		prefsPath:  cfg.PreferencesPath,
		localID:    localID,
		source:     source,
		send:       send,
		prefs:      prefs,
	}
}

// SetPeer records the remote participant id and derives the glare role
// from it. Must be called (from the first session snapshot) before a
// collision can be resolved; until then the engine is impolite.
func (e *Engine) SetPeer(peerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.peerID = peerID
	e.polite = e.localID < peerID
}

// Start acquires local capture and constructs the peer link with all
// tracks attached; AnnounceReady then opens negotiation. Audio acquisition
// failure aborts link setup: no peer link exists, but the session channel
// is unaffected.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if e.pc != nil {
		return nil
	}

	audio, err := e.source.AcquireAudio()
	if err != nil {
		return fmt.Errorf("acquiring audio capture: %w", err)
	}
	audio.SetEnabled(!e.prefs.Muted)
	e.audio = audio

	if e.prefs.VideoEnabled {
		video, err := e.source.AcquireVideo()
		if err != nil {
			// Video is conditional; audio-only sessions are fine.
			log.Printf("negotiation: video capture unavailable: %v", err)
		} else {
			e.video = video
		}
	}

	pc, err := e.buildPeerConnectionLocked()
	if err != nil {
		e.stopTracksLocked()
		return fmt.Errorf("creating peer connection: %w", err)
	}

	e.pc = pc
	return nil
}

// buildPeerConnectionLocked constructs a peer connection with the
// configured ICE servers, attaches the acquired local tracks, and
// installs the callbacks. Caller holds e.mu.
func (e *Engine) buildPeerConnectionLocked() (*webrtc.PeerConnection, error) {
	cfg := webrtc.Configuration{}
	if len(e.iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: e.iceServers}}
	}
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}

	if _, err := pc.AddTrack(e.audio.TrackLocal()); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("attaching audio track: %w", err)
	}
	if e.video != nil {
		sender, err := pc.AddTrack(e.video.TrackLocal())
		if err != nil {
			log.Printf("negotiation: attaching video track failed: %v", err)
			_ = e.video.Stop()
			e.video = nil
		} else {
			e.videoSender = sender
		}
	}

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		e.emitCandidate(candidate.ToJSON())
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Printf("negotiation: peer connection state %s", state)
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		e.mu.Lock()
		e.remoteTracks++
		e.mu.Unlock()
		log.Printf("negotiation: remote %s track received", track.Kind())
	})

	return pc, nil
}

// resetPeerLinkLocked discards the half-negotiated connection and builds
// a fresh one with the same local tracks. Caller holds e.mu.
func (e *Engine) resetPeerLinkLocked() error {
	_ = e.pc.Close()
	e.videoSender = nil

	pc, err := e.buildPeerConnectionLocked()
	if err != nil {
		e.pc = nil
		return err
	}
	e.pc = pc
	return nil
}

// AnnounceReady tells the peer this side can negotiate. Called after
// every session-channel connect; whichever side is already waiting in
// the stable state responds with an offer.
func (e *Engine) AnnounceReady() {
	e.mu.Lock()
	ready := e.pc != nil && !e.closed
	e.mu.Unlock()
	if ready {
		e.send(types.SignalPayload{Type: types.SignalReady})
	}
}

// HandleSignal applies one relayed negotiation payload. Failures are
// logged per step and leave the link in its last valid state; nothing
// here unwinds or closes the session channel.
func (e *Engine) HandleSignal(p types.SignalPayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pc == nil || e.closed {
		return
	}

	switch p.Type {
	case types.SignalReady:
		e.handleReady()
	case types.SignalOffer:
		e.handleOffer(p.SDP)
	case types.SignalAnswer:
		e.handleAnswer(p.SDP)
	case types.SignalCandidate:
		e.handleCandidate(p.Candidate)
	default:
		log.Printf("negotiation: ignoring signal with unknown type %q", p.Type)
	}
}

// handleReady creates and emits an offer, but only from the stable state:
// the signaling-state check is the defense against a double-offer race.
func (e *Engine) handleReady() {
	if e.pc.SignalingState() != webrtc.SignalingStateStable {
		log.Printf("negotiation: ignoring ready, negotiation already in progress")
		return
	}

	offer, err := e.pc.CreateOffer(nil)
	if err != nil {
		log.Printf("negotiation: creating offer failed: %v", err)
		return
	}
	if err := e.pc.SetLocalDescription(offer); err != nil {
		log.Printf("negotiation: setting local offer failed: %v", err)
		return
	}
	e.emitDescription(types.SignalOffer, e.pc.LocalDescription())
}

// handleOffer applies a remote offer and answers it. When a local offer
// is still outstanding (glare), the polite side abandons its own offer by
// rebuilding the peer link, then answers the remote one; the impolite
// side ignores the colliding offer and waits for the peer's answer.
func (e *Engine) handleOffer(raw json.RawMessage) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		log.Printf("negotiation: dropping malformed offer: %v", err)
		return
	}

	if e.pc.SignalingState() != webrtc.SignalingStateStable {
		if !e.polite {
			log.Printf("negotiation: glare, ignoring colliding offer from %s", e.peerID)
			return
		}
		if err := e.resetPeerLinkLocked(); err != nil {
			log.Printf("negotiation: abandoning local offer failed: %v", err)
			return
		}
	}

	if err := e.pc.SetRemoteDescription(desc); err != nil {
		log.Printf("negotiation: applying remote offer failed: %v", err)
		return
	}
	e.flushPendingLocked()

	answer, err := e.pc.CreateAnswer(nil)
	if err != nil {
		log.Printf("negotiation: creating answer failed: %v", err)
		return
	}
	if err := e.pc.SetLocalDescription(answer); err != nil {
		log.Printf("negotiation: setting local answer failed: %v", err)
		return
	}
	e.emitDescription(types.SignalAnswer, e.pc.LocalDescription())
}

// handleAnswer completes a local offer. An answer arriving while already
// stable is a protocol violation and is ignored, not fatal.
func (e *Engine) handleAnswer(raw json.RawMessage) {
	if e.pc.SignalingState() == webrtc.SignalingStateStable {
		log.Printf("negotiation: ignoring unexpected answer while stable")
		return
	}

	var desc webrtc.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		log.Printf("negotiation: dropping malformed answer: %v", err)
		return
	}
	if err := e.pc.SetRemoteDescription(desc); err != nil {
		log.Printf("negotiation: applying remote answer failed: %v", err)
		return
	}
	e.flushPendingLocked()
}

// handleCandidate applies a remote candidate, buffering it when no remote
// description exists yet so candidates that outrace the offer/answer are
// not dropped.
func (e *Engine) handleCandidate(raw json.RawMessage) {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &init); err != nil {
		log.Printf("negotiation: dropping malformed candidate: %v", err)
		return
	}

	if e.pc.RemoteDescription() == nil {
		e.pending = append(e.pending, init)
		return
	}
	if err := e.pc.AddICECandidate(init); err != nil {
		log.Printf("negotiation: applying candidate failed: %v", err)
	}
}

// flushPendingLocked applies candidates buffered before the remote
// description arrived. Caller holds e.mu.
func (e *Engine) flushPendingLocked() {
	for _, init := range e.pending {
		if err := e.pc.AddICECandidate(init); err != nil {
			log.Printf("negotiation: applying buffered candidate failed: %v", err)
		}
	}
	e.pending = nil
}

func (e *Engine) emitDescription(signalType string, desc *webrtc.SessionDescription) {
	raw, err := json.Marshal(desc)
	if err != nil {
		log.Printf("negotiation: marshaling %s failed: %v", signalType, err)
		return
	}
	e.send(types.SignalPayload{Type: signalType, SDP: raw})
}

// emitCandidate sends one discovered local candidate. Candidates arrive
// in bursts but are always sent individually; order is irrelevant.
func (e *Engine) emitCandidate(init webrtc.ICECandidateInit) {
	raw, err := json.Marshal(init)
	if err != nil {
		log.Printf("negotiation: marshaling candidate failed: %v", err)
		return
	}
	e.send(types.SignalPayload{Type: types.SignalCandidate, Candidate: raw})
}

// stopTracksLocked stops every acquired capture track. Caller holds e.mu.
// Skipping this leaks capture-device handles.
func (e *Engine) stopTracksLocked() {
	if e.audio != nil {
		_ = e.audio.Stop()
		e.audio = nil
	}
	if e.video != nil {
		_ = e.video.Stop()
		e.video = nil
	}
}

// Close stops all local media tracks and closes the peer link. Idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	e.stopTracksLocked()
	e.videoSender = nil
	e.pending = nil

	if e.pc != nil {
		if err := e.pc.Close(); err != nil {
			return fmt.Errorf("closing peer connection: %w", err)
		}
		e.pc = nil
	}
	return nil
}
