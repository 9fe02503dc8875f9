package interfaces

import "github.com/pion/webrtc/v4"

// MediaTrack is one acquired local capture track. Stop releases the
// underlying device handle; a stopped track cannot be re-enabled and a
// fresh one must be acquired instead.
type MediaTrack interface {
	// TrackLocal returns the pion track to attach to a peer connection.
	TrackLocal() webrtc.TrackLocal

	// SetEnabled flips whether captured frames are fed to the track.
	// Reversible, unlike Stop.
	SetEnabled(enabled bool)
	Enabled() bool

	Stop() error
}

// MediaSource acquires local capture tracks. Audio is acquired on every
// session entry; video only when the persisted user preference asks for
// it. Acquisition failure is non-fatal to the session channel.
type MediaSource interface {
	AcquireAudio() (MediaTrack, error)
	AcquireVideo() (MediaTrack, error)
}
