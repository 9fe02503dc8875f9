package negotiation

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"

	"linklearn/internal/config"
	"linklearn/pkg/types"
)

// recorder collects emitted signal payloads. Candidate payloads arrive
// asynchronously as ICE gathering runs, so assertions filter by type.
type recorder struct {
	mu       sync.Mutex
	payloads []types.SignalPayload
}

func (r *recorder) send(p types.SignalPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
}

func (r *recorder) ofType(signalType string) []types.SignalPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.SignalPayload
	for _, p := range r.payloads {
		if p.Type == signalType {
			out = append(out, p)
		}
	}
	return out
}

func newTestEngine(t *testing.T, localID string) (*Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	cfg := &config.MediaConfig{
		PreferencesPath: filepath.Join(t.TempDir(), "prefs.json"),
	}
	prefs := config.DefaultPreferences()
	e := NewEngine(cfg, localID, NewStaticSource(), rec.send, prefs)
	t.Cleanup(func() { _ = e.Close() })
	return e, rec
}

func startedEngine(t *testing.T, localID string) (*Engine, *recorder) {
	t.Helper()
	e, rec := newTestEngine(t, localID)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return e, rec
}

// remoteOffer builds a genuine offer from a second peer connection.
func remoteOffer(t *testing.T) json.RawMessage {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("creating remote peer: %v", err)
	}
	t.Cleanup(func() { _ = pc.Close() })
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio); err != nil {
		t.Fatalf("adding remote transceiver: %v", err)
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		t.Fatalf("creating remote offer: %v", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		t.Fatalf("setting remote local description: %v", err)
	}
	raw, err := json.Marshal(offer)
	if err != nil {
		t.Fatalf("marshaling remote offer: %v", err)
	}
	return raw
}

func TestStartBuildsPeerLink(t *testing.T) {
	e, rec := startedEngine(t, "u1")

	if got := e.SignalingState(); got != webrtc.SignalingStateStable.String() {
		t.Errorf("signaling state = %q, want stable", got)
	}
	if e.Muted() {
		t.Error("audio starts muted, want enabled")
	}
	if !e.VideoEnabled() {
		t.Error("video disabled despite default preference")
	}

	e.AnnounceReady()
	if got := len(rec.ofType(types.SignalReady)); got != 1 {
		t.Errorf("ready announcements = %d, want 1", got)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	e, _ := startedEngine(t, "u1")
	if err := e.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
}

func TestReadyTriggersOffer(t *testing.T) {
	e, rec := startedEngine(t, "u1")

	e.HandleSignal(types.SignalPayload{Type: types.SignalReady})

	offers := rec.ofType(types.SignalOffer)
	if len(offers) != 1 {
		t.Fatalf("offers emitted = %d, want 1", len(offers))
	}
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(offers[0].SDP, &desc); err != nil {
		t.Fatalf("unmarshaling emitted offer: %v", err)
	}
	if desc.Type != webrtc.SDPTypeOffer || desc.SDP == "" {
		t.Errorf("emitted description = %s, want non-empty offer", desc.Type)
	}
	if got := e.SignalingState(); got != webrtc.SignalingStateHaveLocalOffer.String() {
		t.Errorf("signaling state = %q, want have-local-offer", got)
	}

	// A second ready arriving mid-negotiation must not double-offer.
	e.HandleSignal(types.SignalPayload{Type: types.SignalReady})
	if got := len(rec.ofType(types.SignalOffer)); got != 1 {
		t.Errorf("offers after duplicate ready = %d, want 1", got)
	}
}

func TestRemoteOfferAnswered(t *testing.T) {
	e, rec := startedEngine(t, "u1")

	e.HandleSignal(types.SignalPayload{Type: types.SignalOffer, SDP: remoteOffer(t)})

	answers := rec.ofType(types.SignalAnswer)
	if len(answers) != 1 {
		t.Fatalf("answers emitted = %d, want 1", len(answers))
	}
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(answers[0].SDP, &desc); err != nil {
		t.Fatalf("unmarshaling emitted answer: %v", err)
	}
	if desc.Type != webrtc.SDPTypeAnswer {
		t.Errorf("emitted description = %s, want answer", desc.Type)
	}
	if got := e.SignalingState(); got != webrtc.SignalingStateStable.String() {
		t.Errorf("signaling state = %q, want stable after answering", got)
	}
}

func TestGlarePoliteSideAbandonsOffer(t *testing.T) {
	// u1 < u2, so this side is polite and must yield its own offer.
	e, rec := startedEngine(t, "u1")
	e.SetPeer("u2")
	if !e.Polite() {
		t.Fatal("lexicographically smaller id should be polite")
	}

	e.HandleSignal(types.SignalPayload{Type: types.SignalReady})
	if got := e.SignalingState(); got != webrtc.SignalingStateHaveLocalOffer.String() {
		t.Fatalf("signaling state = %q, want have-local-offer before glare", got)
	}

	e.HandleSignal(types.SignalPayload{Type: types.SignalOffer, SDP: remoteOffer(t)})

	if got := len(rec.ofType(types.SignalAnswer)); got != 1 {
		t.Errorf("answers after yielding = %d, want 1", got)
	}
	if got := e.SignalingState(); got != webrtc.SignalingStateStable.String() {
		t.Errorf("signaling state = %q, want stable after glare resolution", got)
	}

	// The rebuilt link must negotiate normally afterwards.
	e.HandleSignal(types.SignalPayload{Type: types.SignalReady})
	if got := len(rec.ofType(types.SignalOffer)); got != 2 {
		t.Errorf("offers across both rounds = %d, want 2", got)
	}
	if got := e.SignalingState(); got != webrtc.SignalingStateHaveLocalOffer.String() {
		t.Errorf("signaling state = %q, want have-local-offer on the new round", got)
	}
}

func TestGlareImpoliteSideIgnoresOffer(t *testing.T) {
	// u2 > u1, so this side is impolite and keeps its own offer.
	e, rec := startedEngine(t, "u2")
	e.SetPeer("u1")
	if e.Polite() {
		t.Fatal("lexicographically larger id should be impolite")
	}

	e.HandleSignal(types.SignalPayload{Type: types.SignalReady})
	e.HandleSignal(types.SignalPayload{Type: types.SignalOffer, SDP: remoteOffer(t)})

	if got := len(rec.ofType(types.SignalAnswer)); got != 0 {
		t.Errorf("answers from impolite side = %d, want 0", got)
	}
	if got := e.SignalingState(); got != webrtc.SignalingStateHaveLocalOffer.String() {
		t.Errorf("signaling state = %q, want have-local-offer preserved", got)
	}
}

func TestAnswerWhileStableIgnored(t *testing.T) {
	e, _ := startedEngine(t, "u1")

	e.HandleSignal(types.SignalPayload{
		Type: types.SignalAnswer,
		SDP:  json.RawMessage(`{"type":"answer","sdp":"v=0"}`),
	})
	if got := e.SignalingState(); got != webrtc.SignalingStateStable.String() {
		t.Errorf("signaling state = %q, want stable unchanged", got)
	}
}

func TestCandidatesBufferedUntilRemoteDescription(t *testing.T) {
	e, _ := startedEngine(t, "u1")

	candidate := json.RawMessage(`{"candidate":"candidate:1 1 udp 2130706431 127.0.0.1 54321 typ host","sdpMid":"0","sdpMLineIndex":0}`)
	e.HandleSignal(types.SignalPayload{Type: types.SignalCandidate, Candidate: candidate})
	e.HandleSignal(types.SignalPayload{Type: types.SignalCandidate, Candidate: candidate})

	e.mu.Lock()
	buffered := len(e.pending)
	e.mu.Unlock()
	if buffered != 2 {
		t.Fatalf("buffered candidates = %d, want 2", buffered)
	}

	e.HandleSignal(types.SignalPayload{Type: types.SignalOffer, SDP: remoteOffer(t)})

	e.mu.Lock()
	buffered = len(e.pending)
	e.mu.Unlock()
	if buffered != 0 {
		t.Errorf("buffered candidates after remote description = %d, want 0", buffered)
	}
}

func TestMalformedSignalsDropped(t *testing.T) {
	e, rec := startedEngine(t, "u1")

	e.HandleSignal(types.SignalPayload{Type: types.SignalOffer, SDP: json.RawMessage(`{broken`)})
	e.HandleSignal(types.SignalPayload{Type: types.SignalCandidate, Candidate: json.RawMessage(`123`)})
	e.HandleSignal(types.SignalPayload{Type: "bogus"})

	if got := len(rec.ofType(types.SignalAnswer)); got != 0 {
		t.Errorf("answers after malformed input = %d, want 0", got)
	}
	if got := e.SignalingState(); got != webrtc.SignalingStateStable.String() {
		t.Errorf("signaling state = %q, want stable unchanged", got)
	}
}

func TestToggleMutePersistsPreference(t *testing.T) {
	prefsPath := filepath.Join(t.TempDir(), "prefs.json")
	rec := &recorder{}
	cfg := &config.MediaConfig{PreferencesPath: prefsPath}
	e := NewEngine(cfg, "u1", NewStaticSource(), rec.send, config.DefaultPreferences())
	defer e.Close()
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	muted, err := e.ToggleMute()
	if err != nil {
		t.Fatalf("ToggleMute: %v", err)
	}
	if !muted || !e.Muted() {
		t.Error("first toggle should mute")
	}

	reloaded := config.LoadPreferences(prefsPath)
	if !reloaded.Muted {
		t.Error("mute preference not persisted")
	}

	muted, err = e.ToggleMute()
	if err != nil {
		t.Fatalf("ToggleMute: %v", err)
	}
	if muted || e.Muted() {
		t.Error("second toggle should unmute")
	}
}

func TestToggleVideoDetachesAndReattaches(t *testing.T) {
	e, _ := startedEngine(t, "u1")

	enabled, err := e.ToggleVideo()
	if err != nil {
		t.Fatalf("ToggleVideo off: %v", err)
	}
	if enabled || e.VideoEnabled() {
		t.Error("first toggle should disable video")
	}

	enabled, err = e.ToggleVideo()
	if err != nil {
		t.Fatalf("ToggleVideo on: %v", err)
	}
	if !enabled || !e.VideoEnabled() {
		t.Error("second toggle should re-enable video")
	}
}

func TestToggleMuteWithoutStart(t *testing.T) {
	e, _ := newTestEngine(t, "u1")
	if _, err := e.ToggleMute(); err != ErrNoAudioTrack {
		t.Errorf("error = %v, want ErrNoAudioTrack", err)
	}
}

func TestSignalsBeforeStartIgnored(t *testing.T) {
	e, rec := newTestEngine(t, "u1")
	e.HandleSignal(types.SignalPayload{Type: types.SignalReady})
	e.AnnounceReady()
	if got := len(rec.ofType(types.SignalReady)); got != 0 {
		t.Errorf("ready announcements without a link = %d, want 0", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	e, _ := startedEngine(t, "u1")
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if got := e.SignalingState(); got != webrtc.SignalingStateClosed.String() {
		t.Errorf("signaling state after close = %q, want closed", got)
	}
	// Signals after close must be ignored without panicking.
	e.HandleSignal(types.SignalPayload{Type: types.SignalReady})
}

func TestStaticTrackLifecycle(t *testing.T) {
	source := NewStaticSource()
	track, err := source.AcquireAudio()
	if err != nil {
		t.Fatalf("AcquireAudio: %v", err)
	}
	if !track.Enabled() {
		t.Error("fresh track should be enabled")
	}
	track.SetEnabled(false)
	if track.Enabled() {
		t.Error("SetEnabled(false) ignored")
	}
	if err := track.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	track.SetEnabled(true)
	if track.Enabled() {
		t.Error("stopped track must stay disabled")
	}
}
