package interfaces

import "errors"

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrConnClosed       = errors.New("connection closed")
)
