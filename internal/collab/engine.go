package collab

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"linklearn/pkg/interfaces"
	"linklearn/pkg/types"
)

// Engine synchronizes one shared editing surface (code editor or
// whiteboard) between the two participants. Conflict resolution is
// last-writer-wins over the whole document: every broadcast and every
// import is a wholesale replacement, never a merge.
type Engine struct {
	kind      string
	sessionID string
	store     interfaces.DocumentStore
	send      func(types.DocumentUpdate)

	// originID tags every outbound update so our own broadcasts can be
	// recognized and dropped if the relay echoes them back.
	originID string

	throttleInterval time.Duration
	guardWindow      time.Duration

	mu            sync.Mutex
	doc           *types.Document
	seq           uint64
	throttleTimer *time.Timer
	// importing suppresses broadcasts for a short window after a remote
	// update lands, so applying the peer's document does not immediately
	// re-broadcast it and ping-pong between the two sides.
	importing   bool
	importTimer *time.Timer
	closed      bool
}

// New creates a sync engine for one surface kind ("code" or
// "whiteboard"). send relays outbound updates through the session
// channel.
func New(kind, sessionID string, store interfaces.DocumentStore, send func(types.DocumentUpdate), throttle, guard time.Duration) *Engine {
	return &Engine{
		kind:             kind,
		sessionID:        sessionID,
		store:            store,
		send:             send,
		originID:         uuid.NewString(),
		throttleInterval: throttle,
		guardWindow:      guard,
	}
}

// Load restores the surface from the durable cache, seeding a fresh
// single-entry document when nothing is cached for this session yet.
func (e *Engine) Load(ctx context.Context) error {
	doc, err := e.store.Load(ctx, e.sessionID, e.kind)
	if errors.Is(err, interfaces.ErrDocumentNotFound) {
		doc = defaultDocument(e.kind)
	} else if err != nil {
		return fmt.Errorf("loading cached %s document: %w", e.kind, err)
	}

	e.mu.Lock()
	e.doc = doc
	e.mu.Unlock()
	return nil
}

// Document returns a snapshot of the current surface state, or nil
// before Load.
func (e *Engine) Document() *types.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doc == nil {
		return nil
	}
	doc := e.doc.Clone()
	return &doc
}

// EditEntry replaces the content of one entry and schedules a broadcast.
func (e *Engine) EditEntry(index int, content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkIndexLocked(index); err != nil {
		return err
	}
	e.doc.Entries[index].Content = content
	e.afterLocalChangeLocked()
	return nil
}

// CreateEntry appends a new entry named name, inferring its language
// kind from the extension and seeding it with that kind's template. The
// new entry becomes active.
func (e *Engine) CreateEntry(name string) error {
	if !types.IsValidEntryName(name) {
		return types.ErrInvalidEntryName
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doc == nil {
		return ErrNotLoaded
	}
	for _, entry := range e.doc.Entries {
		if entry.Name == name {
			return ErrDuplicateEntry
		}
	}

	kind := KindFromName(name)
	e.doc.Entries = append(e.doc.Entries, types.DocumentEntry{
		Name:    name,
		Kind:    kind,
		Content: TemplateFor(kind),
	})
	e.doc.ActiveIndex = len(e.doc.Entries) - 1
	e.afterLocalChangeLocked()
	return nil
}

// SelectEntry makes the entry at index the active one.
func (e *Engine) SelectEntry(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkIndexLocked(index); err != nil {
		return err
	}
	e.doc.ActiveIndex = index
	e.afterLocalChangeLocked()
	return nil
}

// SetEntryKind overrides the inferred language kind of one entry.
func (e *Engine) SetEntryKind(index int, kind string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkIndexLocked(index); err != nil {
		return err
	}
	e.doc.Entries[index].Kind = kind
	e.afterLocalChangeLocked()
	return nil
}

// DeleteEntry removes the entry at index. Deleting the last remaining
// entry is rejected: the surface always holds at least one entry.
func (e *Engine) DeleteEntry(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkIndexLocked(index); err != nil {
		return err
	}
	if len(e.doc.Entries) == 1 {
		return ErrLastEntry
	}

	e.doc.Entries = append(e.doc.Entries[:index], e.doc.Entries[index+1:]...)
	if e.doc.ActiveIndex >= len(e.doc.Entries) {
		e.doc.ActiveIndex = len(e.doc.Entries) - 1
	} else if e.doc.ActiveIndex > index {
		e.doc.ActiveIndex--
	}
	e.afterLocalChangeLocked()
	return nil
}

// ApplyRemote imports a peer's document wholesale. Updates that carry
// our own origin tag are relay echoes and are dropped. A successful
// import opens the guard window and persists the new state.
func (e *Engine) ApplyRemote(update types.DocumentUpdate) {
	e.mu.Lock()
	if e.closed || e.doc == nil {
		e.mu.Unlock()
		return
	}
	if update.OriginID == e.originID {
		e.mu.Unlock()
		return
	}

	imported := update.Document.Clone()
	e.doc = &imported
	// A broadcast armed before the import would just send the peer's own
	// document back; the import supersedes it.
	if e.throttleTimer != nil {
		e.throttleTimer.Stop()
		e.throttleTimer = nil
	}
	e.importing = true
	if e.importTimer != nil {
		e.importTimer.Stop()
	}
	e.importTimer = time.AfterFunc(e.guardWindow, func() {
		e.mu.Lock()
		e.importing = false
		e.importTimer = nil
		e.mu.Unlock()
	})
	e.mu.Unlock()

	e.persist()
}

// afterLocalChangeLocked persists and schedules a broadcast after a
// local mutation. Caller holds e.mu; persistence runs outside the
// broadcast path via the store's own write queue.
func (e *Engine) afterLocalChangeLocked() {
	go e.persist()
	e.scheduleBroadcastLocked()
}

// scheduleBroadcastLocked arms the trailing-edge throttle: the first
// change in a quiet period starts the timer, further changes before it
// fires are coalesced into the single snapshot taken at fire time.
// Changes landing inside the import guard window are persisted but not
// broadcast.
func (e *Engine) scheduleBroadcastLocked() {
	if e.closed || e.importing || e.throttleTimer != nil {
		return
	}
	e.throttleTimer = time.AfterFunc(e.throttleInterval, e.fireBroadcast)
}

func (e *Engine) fireBroadcast() {
	e.mu.Lock()
	e.throttleTimer = nil
	if e.closed || e.doc == nil {
		e.mu.Unlock()
		return
	}
	e.seq++
	update := types.DocumentUpdate{
		Document: e.doc.Clone(),
		Origin:   types.OriginLocal,
		OriginID: e.originID,
		Seq:      e.seq,
	}
	e.mu.Unlock()

	e.send(update)
}

// persist writes the current snapshot to the durable cache. Best effort:
// a cache failure costs recovery after restart, not live sync.
func (e *Engine) persist() {
	e.mu.Lock()
	if e.doc == nil {
		e.mu.Unlock()
		return
	}
	doc := e.doc.Clone()
	e.mu.Unlock()

	if err := e.store.Save(context.Background(), e.sessionID, e.kind, &doc); err != nil {
		log.Printf("collab: caching %s document failed: %v", e.kind, err)
	}
}

func (e *Engine) checkIndexLocked(index int) error {
	if e.doc == nil {
		return ErrNotLoaded
	}
	if index < 0 || index >= len(e.doc.Entries) {
		return ErrEntryIndex
	}
	return nil
}

// Kind reports which surface this engine synchronizes.
func (e *Engine) Kind() string {
	return e.kind
}

// Close stops the throttle and guard timers and drops any pending
// broadcast. Idempotent.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.throttleTimer != nil {
		e.throttleTimer.Stop()
		e.throttleTimer = nil
	}
	if e.importTimer != nil {
		e.importTimer.Stop()
		e.importTimer = nil
	}
}
