package types

import "errors"

var (
	ErrInvalidSessionID = errors.New("invalid session id")
	ErrInvalidToken     = errors.New("invalid auth token")
	ErrInvalidUserID    = errors.New("invalid user id")
	ErrInvalidEntryName = errors.New("invalid document entry name")
)
