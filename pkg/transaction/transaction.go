package transaction

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/backkem/traverse/pkg/message"
	"github.com/benbjohnson/clock"
	"github.com/pion/stun/v3"
)

// Outcome is the terminal result of a client transaction.
type Outcome struct {
	State State

	// Response is the success or error response. Nil unless Completed.
	Response *stun.Message

	// Source is where the response came from.
	Source net.Addr

	// Err is ErrTimeout or ErrCancelled for the matching states.
	Err error
}

// Transaction is the handle of one client transaction.
//
// All transitions happen under mu, which serializes the retransmission
// timer against responses and cancellation.
type Transaction struct {
	id      message.TransactionID
	dest    net.Addr
	raw     []byte
	policy  Policy
	created time.Time
	c       *Controller

	mu          sync.Mutex
	state       State
	retransmits int
	timer       *clock.Timer
	outcome     Outcome

	done chan struct{}
}

// ID returns the transaction identifier.
func (t *Transaction) ID() message.TransactionID {
	return t.id
}

// Dest returns the request destination.
func (t *Transaction) Dest() net.Addr {
	return t.dest
}

// Created returns when the transaction was started, on the controller's
// clock.
func (t *Transaction) Created() time.Time {
	return t.created
}

// Policy returns the policy snapshot the transaction runs with.
func (t *Transaction) Policy() Policy {
	return t.policy
}

// State returns the current state.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Retransmits returns the number of retransmissions sent so far.
func (t *Transaction) Retransmits() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retransmits
}

// Done is closed once the transaction has an outcome.
func (t *Transaction) Done() <-chan struct{} {
	return t.done
}

// Outcome returns the terminal result. It is the zero Outcome until Done
// is closed.
func (t *Transaction) Outcome() Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome
}

// Wait blocks until the transaction finishes or ctx ends. It returns the
// response, or the outcome error. The transaction keeps running when ctx
// ends first.
func (t *Transaction) Wait(ctx context.Context) (*stun.Message, error) {
	select {
	case <-t.done:
		o := t.Outcome()
		return o.Response, o.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel stops the transaction. It is a no-op once an outcome exists.
func (t *Transaction) Cancel() {
	t.c.finish(t, Outcome{State: StateCancelled, Err: ErrCancelled})
}

// stopTimer must be called with mu held.
func (t *Transaction) stopTimer() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
