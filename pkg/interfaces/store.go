package interfaces

import (
	"context"

	"linklearn/pkg/types"
)

// DocumentStore is the durable local cache for collaborative documents,
// keyed by session id and artifact kind. It is best-effort and never
// authoritative over an incoming remote update: load once at mount,
// last-write-wins on save.
type DocumentStore interface {
	// Load returns the cached document, or ErrDocumentNotFound when no
	// record exists for the key.
	Load(ctx context.Context, sessionID, kind string) (*types.Document, error)

	// Save replaces the cached document for the key.
	Save(ctx context.Context, sessionID, kind string, doc *types.Document) error

	Close() error
}
