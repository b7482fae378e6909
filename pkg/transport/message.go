// Package transport carries STUN datagrams over UDP.
//
// The transaction layer only sees the Sender interface. UDP wraps a single
// socket with a read loop, Manager owns one socket per local address (or a
// single wildcard socket), and Pipe provides an in-memory lossy link for
// tests.
package transport

import "net"

// ReceivedMessage represents an incoming datagram.
type ReceivedMessage struct {
	// Data contains the raw datagram bytes.
	Data []byte
	// Source is the remote address the datagram came from.
	Source net.Addr
	// Local is the local socket address it arrived on.
	Local net.Addr
}

// MessageHandler is called for each received message.
// Implementations should process messages quickly or dispatch to a goroutine
// to avoid blocking the transport's read loop.
type MessageHandler func(msg *ReceivedMessage)

// Sender sends datagrams to a destination.
type Sender interface {
	Send(data []byte, dest net.Addr) error
}

// Transport is a Sender that can report where it is bound.
type Transport interface {
	Sender
	LocalAddr() net.Addr
}

var (
	_ Transport = (*UDP)(nil)
	_ Transport = (*Manager)(nil)
)
