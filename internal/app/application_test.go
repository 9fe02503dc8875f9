package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"linklearn/internal/config"
	"linklearn/pkg/types"
)

func remoteUpdate(name, content string) types.DocumentUpdate {
	return types.DocumentUpdate{
		Document: types.Document{
			Entries:     []types.DocumentEntry{{Name: name, Kind: "python", Content: content}},
			ActiveIndex: 0,
		},
		OriginID: "peer-origin",
		Seq:      1,
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	// Unreachable server: the channel retries in the background without
	// blocking startup.
	cfg.Server.BaseURL = "ws://127.0.0.1:1"
	cfg.Server.Token = "tok"
	cfg.Server.SessionID = "sess-1"
	cfg.Server.UserID = "u1"
	cfg.Server.ReconnectDelay = time.Minute
	cfg.Cache.Path = filepath.Join(dir, "cache.db")
	cfg.Media.ICEServers = nil
	cfg.Media.PreferencesPath = filepath.Join(dir, "prefs.json")
	cfg.Control.Port = 0
	return cfg
}

func TestApplicationLifecycle(t *testing.T) {
	cfg := testConfig(t)

	application, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Both surfaces are restored before anything else runs.
	if doc := application.code.Document(); doc == nil || len(doc.Entries) != 1 {
		t.Errorf("code surface not seeded: %+v", doc)
	}
	if doc := application.whiteboard.Document(); doc == nil || len(doc.Entries) != 1 {
		t.Errorf("whiteboard surface not seeded: %+v", doc)
	}

	application.Stop()
}

func TestDocumentRoutingByKind(t *testing.T) {
	cfg := testConfig(t)
	application, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer application.Stop()
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	update := remoteUpdate("peer.py", "x = 1")
	application.routeDocumentUpdate(types.TypeCodeUpdate, update)
	if got := application.code.Document().Entries[0].Name; got != "peer.py" {
		t.Errorf("code surface entry = %q, want routed update applied", got)
	}
	if got := application.whiteboard.Document().Entries[0].Name; got == "peer.py" {
		t.Error("code update leaked into the whiteboard surface")
	}

	// Unknown kinds are dropped without touching either surface.
	application.routeDocumentUpdate("bogus_update", remoteUpdate("x", ""))
	if got := application.code.Document().Entries[0].Name; got != "peer.py" {
		t.Errorf("unknown kind mutated code surface: %q", got)
	}
}
