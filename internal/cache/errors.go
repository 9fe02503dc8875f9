package cache

import "errors"

var (
	ErrStoreClosed  = errors.New("document store is closed")
	ErrWriteTimeout = errors.New("document store write timeout")
)
