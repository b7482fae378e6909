package transaction

import (
	"errors"
	"fmt"
	"net"
)

// Errors returned by the transaction package.
var (
	// ErrTimeout is the outcome error of a transaction whose retransmission
	// budget ran out without a response.
	ErrTimeout = errors.New("transaction: timed out")

	// ErrCancelled is the outcome error of a cancelled transaction.
	ErrCancelled = errors.New("transaction: cancelled")

	// ErrDuplicateTransaction is returned when starting a transaction whose
	// ID is already live.
	ErrDuplicateTransaction = errors.New("transaction: duplicate transaction ID")

	// ErrNoSigner is returned when policy requires signing and no signer is
	// configured.
	ErrNoSigner = errors.New("transaction: signing required but no signer configured")

	// ErrNoSender is returned when a controller is created without a sender.
	ErrNoSender = errors.New("transaction: no sender")

	// ErrNotRequest is returned when starting a transaction with a message
	// that is not a request.
	ErrNotRequest = errors.New("transaction: message is not a request")

	// ErrClosed is returned after the controller is closed.
	ErrClosed = errors.New("transaction: controller closed")
)

// TransportError reports a failed initial send. The transaction is not
// registered when Start returns it.
type TransportError struct {
	Dest net.Addr
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transaction: send to %v: %v", e.Dest, e.Err)
}

// Unwrap returns the underlying send error.
func (e *TransportError) Unwrap() error {
	return e.Err
}
