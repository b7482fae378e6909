package stack

import "errors"

// Errors returned by the stack package.
var (
	// ErrNoTransport is returned when a stack is created without a transport.
	ErrNoTransport = errors.New("stack: no transport")

	// ErrUnsupportedAddress is returned for source addresses that are not UDP.
	ErrUnsupportedAddress = errors.New("stack: unsupported address type")

	// ErrClosed is returned after the stack is closed.
	ErrClosed = errors.New("stack: closed")
)
