package collab

import "errors"

var (
	// ErrNotLoaded is returned when an operation arrives before Load.
	ErrNotLoaded = errors.New("document not loaded")

	// ErrEntryIndex is returned for an out-of-range entry index.
	ErrEntryIndex = errors.New("entry index out of range")

	// ErrLastEntry is returned when deleting the only remaining entry.
	ErrLastEntry = errors.New("cannot delete the last entry")

	// ErrDuplicateEntry is returned when creating an entry whose name
	// already exists in the document.
	ErrDuplicateEntry = errors.New("entry name already exists")
)
