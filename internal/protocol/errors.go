package protocol

import "errors"

var (
	ErrMalformed      = errors.New("protocol: malformed message")
	ErrNoVariant      = errors.New("protocol: message has no variant set")
	ErrUnknownVariant = errors.New("protocol: unknown message variant")
)
