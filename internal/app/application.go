package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"linklearn/internal/cache"
	"linklearn/internal/channel"
	"linklearn/internal/collab"
	"linklearn/internal/config"
	"linklearn/internal/control"
	"linklearn/internal/negotiation"
	"linklearn/internal/transport"
	"linklearn/pkg/types"
)

const shutdownTimeout = 5 * time.Second

// Application assembles and owns every session component: the durable
// cache, the session channel, the negotiation engine, both sync
// surfaces, and the local control server.
type Application struct {
	config *config.Config

	store      *cache.Store
	channel    *channel.Channel
	engine     *negotiation.Engine
	code       *collab.Engine
	whiteboard *collab.Engine
	control    *control.Server
}

// New wires the components together. Nothing connects or listens until
// Start.
func New(cfg *config.Config) (*Application, error) {
	store, err := cache.NewStore(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("opening document cache: %w", err)
	}

	ch := channel.New(cfg.Server, transport.NewDialer())

	prefs := config.LoadPreferences(cfg.Media.PreferencesPath)
	engine := negotiation.NewEngine(cfg.Media, cfg.Server.UserID, negotiation.NewStaticSource(), ch.SendSignal, prefs)

	sessionID := cfg.Server.SessionID
	code := collab.New("code", sessionID, store, func(update types.DocumentUpdate) {
		ch.SendDocumentUpdate(types.TypeCodeUpdate, update)
	}, cfg.Sync.ThrottleInterval, cfg.Sync.GuardWindow)
	whiteboard := collab.New("whiteboard", sessionID, store, func(update types.DocumentUpdate) {
		ch.SendDocumentUpdate(types.TypeWhiteboardUpdate, update)
	}, cfg.Sync.ThrottleInterval, cfg.Sync.GuardWindow)

	app := &Application{
		config:     cfg,
		store:      store,
		channel:    ch,
		engine:     engine,
		code:       code,
		whiteboard: whiteboard,
		control:    control.NewServer(cfg.Control, ch, engine, code, whiteboard, store),
	}

	ch.OnSignal(engine.HandleSignal)
	ch.OnDocumentUpdate(app.routeDocumentUpdate)
	ch.OnSessionState(app.onSessionState)
	ch.OnConnected(engine.AnnounceReady)
	return app, nil
}

// routeDocumentUpdate hands an inbound document payload to the matching
// surface.
func (a *Application) routeDocumentUpdate(kind string, update types.DocumentUpdate) {
	switch kind {
	case types.TypeCodeUpdate:
		a.code.ApplyRemote(update)
	case types.TypeWhiteboardUpdate:
		a.whiteboard.ApplyRemote(update)
	default:
		log.Printf("app: dropping document update for unknown surface %q", kind)
	}
}

// onSessionState derives the peer identity from each session snapshot so
// the negotiation engine knows its glare role before any offer collides.
// An inactive snapshot is terminal: the cached surfaces for the session
// are no longer needed and get purged.
func (a *Application) onSessionState(state types.SessionState) {
	peer := state.Other(a.channel.UserID())
	if peer.ID != "" {
		a.engine.SetPeer(peer.ID)
	}
	if !state.IsActive {
		if err := a.store.Purge(context.Background(), state.ID); err != nil {
			log.Printf("app: purging cache for ended session: %v", err)
		}
	}
}

// Start restores both surfaces from the cache, starts the control
// server, begins the peer link, and connects the session channel.
// A media failure skips the peer link but keeps everything else running.
func (a *Application) Start(ctx context.Context) error {
	if err := a.code.Load(ctx); err != nil {
		return fmt.Errorf("restoring code surface: %w", err)
	}
	if err := a.whiteboard.Load(ctx); err != nil {
		return fmt.Errorf("restoring whiteboard surface: %w", err)
	}

	a.control.Start()

	if err := a.engine.Start(); err != nil {
		log.Printf("app: peer link unavailable: %v", err)
	}

	a.channel.Connect()
	return nil
}

// Stop tears the application down in reverse order of Start.
func (a *Application) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.control.Shutdown(ctx); err != nil {
		log.Printf("app: control server shutdown: %v", err)
	}

	a.channel.Close()

	if err := a.engine.Close(); err != nil {
		log.Printf("app: closing peer link: %v", err)
	}

	a.code.Close()
	a.whiteboard.Close()

	if err := a.store.Close(); err != nil {
		log.Printf("app: closing document cache: %v", err)
	}
}
