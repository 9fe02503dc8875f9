package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"linklearn/internal/config"
	"linklearn/pkg/interfaces"
	"linklearn/pkg/types"
)

// Store is the durable local mirror of collaborative documents, one row
// per (session id, artifact kind). SQLite writes go through a single
// writer goroutine to avoid write contention.
type Store struct {
	db           *sql.DB
	timeout      time.Duration
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewStore opens (creating if necessary) the cache database and applies
// pending migrations.
func NewStore(cfg *config.CacheConfig) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	store := &Store{
		db:           db,
		timeout:      cfg.Timeout,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	store.wg.Add(1)
	go store.writeLoop()

	return store, nil
}

// writeLoop processes all write operations in a single goroutine.
func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeChannel:
			op.result <- op.operation(s.db)
		case <-s.shutdown:
			return
		}
	}
}

func (s *Store) executeWrite(operation func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case s.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(s.timeout):
		return ErrWriteTimeout
	case <-s.shutdown:
		return ErrStoreClosed
	}
}

// Load returns the cached document for a session and kind, or
// interfaces.ErrDocumentNotFound.
func (s *Store) Load(ctx context.Context, sessionID, kind string) (*types.Document, error) {
	query := `
		SELECT payload
		FROM documents
		WHERE session_id = ? AND kind = ?
	`

	var payload string
	err := s.db.QueryRowContext(ctx, query, sessionID, kind).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	var doc types.Document
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached document: %w", err)
	}

	return &doc, nil
}

// Save replaces the cached document for a session and kind. Last write
// wins; the cache is never authoritative over a remote update.
func (s *Store) Save(ctx context.Context, sessionID, kind string, doc *types.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	return s.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO documents (session_id, kind, payload, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (session_id, kind) DO UPDATE SET
				payload = excluded.payload,
				updated_at = excluded.updated_at
		`
		if _, err := db.ExecContext(ctx, query, sessionID, kind, string(payload), time.Now()); err != nil {
			return fmt.Errorf("failed to upsert document: %w", err)
		}
		return nil
	})
}

// Purge removes the cached document for a session, all kinds.
func (s *Store) Purge(ctx context.Context, sessionID string) error {
	return s.executeWrite(func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, "DELETE FROM documents WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("failed to purge documents: %w", err)
		}
		return nil
	})
}

// HealthCheck validates cache connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("cache ping failed: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		return fmt.Errorf("cache read test failed: %w", err)
	}
	return nil
}

// Close shuts down the writer goroutine and the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close cache database: %w", err)
	}
	return nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}
	return nil
}
