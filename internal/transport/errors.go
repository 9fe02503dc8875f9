package transport

import "errors"

var (
	ErrWriteTimeout = errors.New("websocket write timeout")
)
