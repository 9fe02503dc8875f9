package negotiation

import (
	"fmt"
	"log"

	"github.com/pion/webrtc/v4"
)

// ToggleMute flips the audio track between enabled and disabled, persists
// the new preference, and returns the resulting muted state. The track
// stays attached either way; a muted track simply sends nothing.
func (e *Engine) ToggleMute() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.audio == nil {
		return false, ErrNoAudioTrack
	}

	muted := e.audio.Enabled()
	e.audio.SetEnabled(!e.audio.Enabled())

	e.prefs.Muted = muted
	if err := e.prefs.Save(e.prefsPath); err != nil {
		log.Printf("negotiation: persisting mute preference failed: %v", err)
	}
	return muted, nil
}

// ToggleVideo turns the local video feed off by stopping the capture
// track and detaching its sender, or back on by re-acquiring capture and
// attaching a fresh track. Neither direction triggers renegotiation; the
// transceiver stays in place. Returns the resulting enabled state.
func (e *Engine) ToggleVideo() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pc == nil || e.closed {
		return false, ErrEngineClosed
	}

	var enabled bool
	if e.video != nil {
		if err := e.video.Stop(); err != nil {
			log.Printf("negotiation: stopping video capture failed: %v", err)
		}
		if e.videoSender != nil {
			if err := e.pc.RemoveTrack(e.videoSender); err != nil {
				log.Printf("negotiation: detaching video sender failed: %v", err)
			}
			e.videoSender = nil
		}
		e.video = nil
		enabled = false
	} else {
		video, err := e.source.AcquireVideo()
		if err != nil {
			return false, fmt.Errorf("acquiring video capture: %w", err)
		}
		sender, err := e.pc.AddTrack(video.TrackLocal())
		if err != nil {
			_ = video.Stop()
			return false, fmt.Errorf("attaching video track: %w", err)
		}
		e.video = video
		e.videoSender = sender
		enabled = true
	}

	e.prefs.VideoEnabled = enabled
	if err := e.prefs.Save(e.prefsPath); err != nil {
		log.Printf("negotiation: persisting video preference failed: %v", err)
	}
	return enabled, nil
}

// Muted reports whether the local audio track is currently disabled.
func (e *Engine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.audio == nil || !e.audio.Enabled()
}

// VideoEnabled reports whether a local video track is currently attached.
func (e *Engine) VideoEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.video != nil
}

// SignalingState reports the current negotiation state, or "closed" when
// no peer link exists.
func (e *Engine) SignalingState() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pc == nil {
		return webrtc.SignalingStateClosed.String()
	}
	return e.pc.SignalingState().String()
}

// ConnectionState reports the current peer connection state, or "closed"
// when no peer link exists.
func (e *Engine) ConnectionState() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pc == nil {
		return webrtc.PeerConnectionStateClosed.String()
	}
	return e.pc.ConnectionState().String()
}

// RemoteTracks reports how many remote media tracks have arrived.
func (e *Engine) RemoteTracks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remoteTracks
}

// Polite reports which glare role this side holds.
func (e *Engine) Polite() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.polite
}
