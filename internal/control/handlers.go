package control

import (
	"errors"
	"net/http"

	"linklearn/internal/collab"
	"linklearn/internal/negotiation"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	status := http.StatusOK
	body := map[string]any{
		"status":    "ok",
		"cache":     "ok",
		"connected": s.channel.IsConnected(),
	}
	if err := s.health.HealthCheck(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["cache"] = err.Error()
	}
	writeJSON(w, status, body)
}

// handleState returns the full local view of the session: the last
// server snapshot, credit balance, peer presence, and channel status.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":      s.channel.State(),
		"credits":      s.channel.Credits(),
		"connected":    s.channel.IsConnected(),
		"peer_present": s.channel.PeerPresent(),
		"peer_typing":  s.channel.PeerTyping(),
		"last_error":   s.channel.LastError(),
	})
}

func (s *Server) handleNegotiation(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"signaling_state":  s.engine.SignalingState(),
		"connection_state": s.engine.ConnectionState(),
		"muted":            s.engine.Muted(),
		"video_enabled":    s.engine.VideoEnabled(),
		"remote_tracks":    s.engine.RemoteTracks(),
	})
}

// handleDocument serves one surface's current document; kind is a query
// parameter ("code" or "whiteboard").
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	engine := s.surfaceFor(r.URL.Query().Get("kind"))
	if engine == nil {
		writeError(w, http.StatusBadRequest, "unknown surface kind")
		return
	}
	doc := engine.Document()
	if doc == nil {
		writeError(w, http.StatusServiceUnavailable, "document not loaded")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type entryRequest struct {
	Kind    string `json:"kind"`
	Index   int    `json:"index"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content,omitempty"`
	Entry   string `json:"entry_kind,omitempty"`
}

// mutateDocument runs one surface mutation and maps its errors to HTTP
// statuses.
func (s *Server) mutateDocument(w http.ResponseWriter, r *http.Request, mutate func(*collab.Engine, entryRequest) error) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req entryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	engine := s.surfaceFor(req.Kind)
	if engine == nil {
		writeError(w, http.StatusBadRequest, "unknown surface kind")
		return
	}

	if err := mutate(engine, req); err != nil {
		switch {
		case errors.Is(err, collab.ErrEntryIndex), errors.Is(err, collab.ErrLastEntry),
			errors.Is(err, collab.ErrDuplicateEntry):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, collab.ErrNotLoaded):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, engine.Document())
}

func (s *Server) handleDocumentEdit(w http.ResponseWriter, r *http.Request) {
	s.mutateDocument(w, r, func(e *collab.Engine, req entryRequest) error {
		return e.EditEntry(req.Index, req.Content)
	})
}

func (s *Server) handleDocumentCreate(w http.ResponseWriter, r *http.Request) {
	s.mutateDocument(w, r, func(e *collab.Engine, req entryRequest) error {
		return e.CreateEntry(req.Name)
	})
}

func (s *Server) handleDocumentSelect(w http.ResponseWriter, r *http.Request) {
	s.mutateDocument(w, r, func(e *collab.Engine, req entryRequest) error {
		return e.SelectEntry(req.Index)
	})
}

func (s *Server) handleDocumentKind(w http.ResponseWriter, r *http.Request) {
	s.mutateDocument(w, r, func(e *collab.Engine, req entryRequest) error {
		return e.SetEntryKind(req.Index, req.Entry)
	})
}

func (s *Server) handleDocumentDelete(w http.ResponseWriter, r *http.Request) {
	s.mutateDocument(w, r, func(e *collab.Engine, req entryRequest) error {
		return e.DeleteEntry(req.Index)
	})
}

func (s *Server) handleTimerStart(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.channel.StartTimer()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "requested"})
}

func (s *Server) handleTimerStop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.channel.StopTimer()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "requested"})
}

func (s *Server) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.channel.EndSession()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "requested"})
}

// handleReconnect forces a transport cycle, superseding any pending
// automatic retry.
func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.channel.Reconnect()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reconnecting"})
}

func (s *Server) handleMediaMute(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	muted, err := s.engine.ToggleMute()
	if err != nil {
		if errors.Is(err, negotiation.ErrNoAudioTrack) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"muted": muted})
}

func (s *Server) handleMediaVideo(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	enabled, err := s.engine.ToggleVideo()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"video_enabled": enabled})
}

// handleChat serves the local transcript on GET and relays a message on
// POST.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"messages": s.channel.Transcript()})
	case http.MethodPost:
		var req struct {
			Message string `json:"message"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Message == "" {
			writeError(w, http.StatusBadRequest, "empty message")
			return
		}
		s.channel.SendChat(req.Message)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleTyping(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		IsTyping bool `json:"is_typing"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.channel.SendTyping(req.IsTyping)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}
