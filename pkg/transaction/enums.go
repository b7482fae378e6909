// Package transaction implements STUN client transactions and the server
// side duplicate-request table.
//
// A client transaction sends a request and retransmits the identical bytes
// on a timer until a response arrives, the retransmission budget runs out,
// or the caller cancels. The interval starts at the first retransmission
// interval and doubles after every retransmission, never exceeding the
// maximum interval. After the last retransmission one more interval is
// allowed for a response before the transaction times out.
//
// Every transaction produces exactly one outcome. Responses that arrive
// after the outcome, duplicates included, are dropped.
//
// On the server side, the Controller remembers inbound request IDs for the
// retention window so retransmitted requests can be absorbed (answered from
// cache) instead of reaching the application twice.
package transaction

// State tracks the lifecycle of a client transaction.
type State int

const (
	// StateUnknown indicates an uninitialized state.
	StateUnknown State = iota

	// StateCreated indicates the transaction is registered but the request
	// has not been sent yet.
	StateCreated

	// StateSent indicates the initial request was sent.
	StateSent

	// StateRetransmitting indicates at least one retransmission was sent.
	StateRetransmitting

	// StateCompleted indicates a response was received.
	StateCompleted

	// StateTimedOut indicates the retransmission budget ran out.
	StateTimedOut

	// StateCancelled indicates the caller cancelled the transaction.
	StateCancelled
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateSent:
		return "Sent"
	case StateRetransmitting:
		return "Retransmitting"
	case StateCompleted:
		return "Completed"
	case StateTimedOut:
		return "TimedOut"
	case StateCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the state is a defined value.
func (s State) IsValid() bool {
	return s >= StateCreated && s <= StateCancelled
}

// IsTerminal returns true once the transaction has an outcome.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateTimedOut || s == StateCancelled
}

// Disposition says what to do with an inbound request.
type Disposition int

const (
	// DispositionUnknown is the zero value.
	DispositionUnknown Disposition = iota

	// DispositionDeliver hands the request to the application.
	DispositionDeliver

	// DispositionAbsorb swallows a retransmitted request. If the application
	// already answered, the cached response is resent.
	DispositionAbsorb
)

// String returns a human-readable name for the disposition.
func (d Disposition) String() string {
	switch d {
	case DispositionDeliver:
		return "deliver"
	case DispositionAbsorb:
		return "absorb"
	default:
		return "unknown"
	}
}

// IsValid returns true if the disposition is a defined value.
func (d Disposition) IsValid() bool {
	return d == DispositionDeliver || d == DispositionAbsorb
}
