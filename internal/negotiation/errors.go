package negotiation

import "errors"

var (
	// ErrEngineClosed is returned when an operation reaches an engine
	// whose peer link is gone or was never established.
	ErrEngineClosed = errors.New("negotiation engine is closed")

	// ErrNoAudioTrack is returned when a mute toggle arrives before any
	// audio capture was acquired.
	ErrNoAudioTrack = errors.New("no audio track acquired")
)
