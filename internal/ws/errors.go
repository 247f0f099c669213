package ws

import "errors"

var (
	ErrInvalidEnvelope = errors.New("invalid message: expected a JSON envelope with an event field")
	ErrUnknownEvent    = errors.New("unknown event")
	ErrRateLimited     = errors.New("too many messages, slow down")
)
