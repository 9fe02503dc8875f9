package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"linklearn/internal/channel"
	"linklearn/internal/collab"
	"linklearn/internal/config"
	"linklearn/internal/negotiation"
)

// HealthChecker reports whether the durable cache is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server exposes the client's local control surface over HTTP. It binds
// to loopback only: the UI layer on the same machine drives the session
// through it, nothing remote ever reaches it.
type Server struct {
	channel    *channel.Channel
	engine     *negotiation.Engine
	code       *collab.Engine
	whiteboard *collab.Engine
	health     HealthChecker

	httpServer *http.Server
}

// NewServer creates the control server around the assembled session
// components.
func NewServer(cfg *config.ControlConfig, ch *channel.Channel, engine *negotiation.Engine, code, whiteboard *collab.Engine, health HealthChecker) *Server {
	s := &Server{
		channel:    ch,
		engine:     engine,
		code:       code,
		whiteboard: whiteboard,
		health:     health,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/negotiation", s.handleNegotiation)
	mux.HandleFunc("/api/document", s.handleDocument)
	mux.HandleFunc("/api/document/edit", s.handleDocumentEdit)
	mux.HandleFunc("/api/document/create", s.handleDocumentCreate)
	mux.HandleFunc("/api/document/select", s.handleDocumentSelect)
	mux.HandleFunc("/api/document/kind", s.handleDocumentKind)
	mux.HandleFunc("/api/document/delete", s.handleDocumentDelete)
	mux.HandleFunc("/api/timer/start", s.handleTimerStart)
	mux.HandleFunc("/api/timer/stop", s.handleTimerStop)
	mux.HandleFunc("/api/session/end", s.handleSessionEnd)
	mux.HandleFunc("/api/session/reconnect", s.handleReconnect)
	mux.HandleFunc("/api/media/mute", s.handleMediaMute)
	mux.HandleFunc("/api/media/video", s.handleMediaVideo)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/typing", s.handleTyping)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
		Handler:      jsonMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the routed handler, used to serve through an existing
// listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("control: listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("control: server error: %v", err)
		}
	}()
}

// Shutdown stops the server, waiting for in-flight requests up to the
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// jsonMiddleware sets the response content type for every endpoint.
func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("control: encoding response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeBody parses a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// requireMethod rejects requests with the wrong verb.
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// surfaceFor resolves a surface kind to its sync engine.
func (s *Server) surfaceFor(kind string) *collab.Engine {
	switch kind {
	case "code":
		return s.code
	case "whiteboard":
		return s.whiteboard
	default:
		return nil
	}
}
