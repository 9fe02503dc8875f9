package negotiation

import (
	"sync"

	"github.com/pion/webrtc/v4"

	"linklearn/pkg/interfaces"
)

// StaticSource produces sample-fed local tracks (Opus audio, VP8 video).
// Capture hardware pushes encoded samples into the tracks; the engine
// only cares about attach/enable/stop, so the feeding side is out of
// scope here.
type StaticSource struct{}

// NewStaticSource returns a media source backed by static sample tracks.
func NewStaticSource() *StaticSource {
	return &StaticSource{}
}

func (s *StaticSource) AcquireAudio() (interfaces.MediaTrack, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "linklearn",
	)
	if err != nil {
		return nil, err
	}
	return &staticTrack{track: track, enabled: true}, nil
}

func (s *StaticSource) AcquireVideo() (interfaces.MediaTrack, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", "linklearn",
	)
	if err != nil {
		return nil, err
	}
	return &staticTrack{track: track, enabled: true}, nil
}

// staticTrack wraps a sample track with an enabled flag. Disabling does
// not detach the track; the feeder checks Enabled and withholds samples.
type staticTrack struct {
	track *webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	enabled bool
	stopped bool
}

func (t *staticTrack) TrackLocal() webrtc.TrackLocal {
	return t.track
}

func (t *staticTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.enabled = enabled
}

func (t *staticTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled && !t.stopped
}

func (t *staticTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.enabled = false
	return nil
}
