package transaction

import (
	"fmt"
	"net"
	"sync"

	"github.com/backkem/traverse/pkg/config"
	"github.com/backkem/traverse/pkg/message"
	"github.com/backkem/traverse/pkg/transport"
	"github.com/benbjohnson/clock"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pion/logging"
	"github.com/pion/stun/v3"
	"github.com/prometheus/client_golang/prometheus"
)

// maxFinished bounds the table of finished transactions kept for late
// duplicate detection.
const maxFinished = 4096

// Signer adds MESSAGE-INTEGRITY and FINGERPRINT to outbound messages.
// *message.Signer implements it.
type Signer interface {
	Sign(m *stun.Message) error
}

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	// Sender transmits requests and retransmissions.
	// Required.
	Sender transport.Sender

	// Config supplies the policy. If nil, the registered defaults are used.
	Config *config.Resolver

	// Signer signs requests when the policy asks for it.
	Signer Signer

	// Clock drives retransmission timers. If nil, the wall clock is used.
	Clock clock.Clock

	// Registerer receives the controller's metrics. If nil, metrics are
	// collected but not registered.
	Registerer prometheus.Registerer

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	// OnComplete is called once per transaction after its outcome is set.
	// It runs on the goroutine that settled the transaction.
	OnComplete func(t *Transaction)
}

// Controller owns the client transactions of a stack and the inbound
// request table.
type Controller struct {
	sender     transport.Sender
	resolver   *config.Resolver
	signer     Signer
	clock      clock.Clock
	onComplete func(t *Transaction)
	metrics    *metrics
	log        logging.LeveledLogger

	requests *requestTable
	finished *expirable.LRU[message.TransactionID, State]

	mu     sync.Mutex
	live   map[message.TransactionID]*Transaction
	closed bool
}

// NewController creates a transaction controller.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Sender == nil {
		return nil, ErrNoSender
	}

	c := &Controller{
		sender:     cfg.Sender,
		resolver:   cfg.Config,
		signer:     cfg.Signer,
		clock:      cfg.Clock,
		onComplete: cfg.OnComplete,
		metrics:    newMetrics(cfg.Registerer),
		live:       make(map[message.TransactionID]*Transaction),
	}
	if c.resolver == nil {
		c.resolver = config.NewResolver(config.ResolverConfig{Source: config.MapSource{}})
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if cfg.LoggerFactory != nil {
		c.log = cfg.LoggerFactory.NewLogger("transaction")
	}

	retention := c.Policy().Retention
	c.requests = newRequestTable(retention)
	c.finished = expirable.NewLRU[message.TransactionID, State](maxFinished, nil, retention)

	return c, nil
}

// Policy returns a fresh policy snapshot.
func (c *Controller) Policy() Policy {
	return PolicyFromConfig(c.resolver)
}

// Start sends req to dest and arms the retransmission timer.
//
// The request is signed first when the policy requires it. A failed
// initial send returns a *TransportError and leaves nothing registered.
// Timeouts and cancellation are reported through the returned handle, never
// as an error from Start.
func (c *Controller) Start(req *stun.Message, dest net.Addr) (*Transaction, error) {
	if req == nil || !message.IsRequest(req) {
		return nil, ErrNotRequest
	}

	policy := c.Policy()
	if policy.ShouldSign() {
		if c.signer == nil {
			return nil, ErrNoSigner
		}
		if err := c.signer.Sign(req); err != nil {
			return nil, fmt.Errorf("transaction: sign: %w", err)
		}
	}

	t := &Transaction{
		id:      message.ID(req),
		dest:    dest,
		raw:     append([]byte(nil), req.Raw...),
		policy:  policy,
		created: c.clock.Now(),
		c:       c,
		state:   StateCreated,
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if _, exists := c.live[t.id]; exists {
		c.mu.Unlock()
		return nil, ErrDuplicateTransaction
	}
	c.live[t.id] = t
	c.mu.Unlock()

	t.mu.Lock()
	if err := c.sender.Send(t.raw, dest); err != nil {
		terr := &TransportError{Dest: dest, Err: err}
		// The handle never escapes, so this state is only seen by a
		// concurrent Cancel(id), which must treat it as finished.
		t.state = StateCancelled
		t.outcome = Outcome{State: StateCancelled, Err: terr}
		close(t.done)
		t.mu.Unlock()

		c.mu.Lock()
		delete(c.live, t.id)
		c.mu.Unlock()
		return nil, terr
	}
	t.state = StateSent
	t.timer = c.clock.AfterFunc(policy.Interval(0), func() { c.onTimer(t) })
	t.mu.Unlock()

	c.metrics.started.Inc()
	if c.log != nil {
		c.log.Debugf("started transaction %s to %v", t.id, dest)
	}

	return t, nil
}

// onTimer retransmits or times out t.
func (c *Controller) onTimer(t *Transaction) {
	t.mu.Lock()
	if t.state.IsTerminal() {
		t.mu.Unlock()
		return
	}

	if t.retransmits >= t.policy.MaxRetransmits {
		o := Outcome{State: StateTimedOut, Err: ErrTimeout}
		settled := c.settle(t, o)
		t.mu.Unlock()
		if settled {
			c.complete(t, o)
		}
		return
	}

	t.retransmits++
	t.state = StateRetransmitting
	t.timer = c.clock.AfterFunc(t.policy.Interval(t.retransmits), func() { c.onTimer(t) })
	c.metrics.retransmissions.Inc()

	if c.log != nil {
		c.log.Tracef("retransmission %d of %s to %v", t.retransmits, t.id, t.dest)
	}
	if err := c.sender.Send(t.raw, t.dest); err != nil && c.log != nil {
		c.log.Warnf("retransmission of %s to %v failed: %v", t.id, t.dest, err)
	}
	t.mu.Unlock()
}

// OnResponse matches a response to its live transaction. It returns true
// if the response settled a transaction; late, duplicate and unsolicited
// responses are dropped and return false.
func (c *Controller) OnResponse(msg *stun.Message, src net.Addr) bool {
	id := message.ID(msg)

	c.mu.Lock()
	t, ok := c.live[id]
	c.mu.Unlock()

	if ok && c.finish(t, Outcome{State: StateCompleted, Response: msg, Source: src}) {
		return true
	}

	c.metrics.late.Inc()
	if c.log != nil {
		if st, kept := c.finished.Get(id); kept {
			c.log.Debugf("dropping late response from %v for %s transaction %s", src, st, id)
		} else if ok {
			c.log.Debugf("dropping duplicate response from %v for %s", src, id)
		} else {
			c.log.Debugf("dropping response from %v for unknown transaction %s", src, id)
		}
	}
	return false
}

// Cancel cancels the live transaction with id. Unknown or finished IDs are
// ignored.
func (c *Controller) Cancel(id message.TransactionID) {
	c.mu.Lock()
	t, ok := c.live[id]
	c.mu.Unlock()

	if ok {
		t.Cancel()
	}
}

// Get returns the live transaction with id.
func (c *Controller) Get(id message.TransactionID) (*Transaction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.live[id]
	return t, ok
}

// Len returns the number of live transactions.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

// Finished reports whether id belongs to a finished transaction that is
// still retained, and its terminal state.
func (c *Controller) Finished(id message.TransactionID) (State, bool) {
	return c.finished.Peek(id)
}

// OnIncomingRequest decides whether an inbound request reaches the
// application. The first sighting of (src, id) is delivered. Repeats within
// the retention window are delivered again when received retransmissions
// are propagated, otherwise absorbed.
func (c *Controller) OnIncomingRequest(id message.TransactionID, src net.Addr) Verdict {
	seen, cached := c.requests.observe(newRequestKey(src, id))
	if !seen {
		return Verdict{Disposition: DispositionDeliver}
	}

	if c.resolver.BoolDefault(config.KeyPropagateReceivedRetransmissions) {
		c.metrics.duplicates.WithLabelValues(DispositionDeliver.String()).Inc()
		if c.log != nil {
			c.log.Debugf("propagating retransmitted request %s from %v", id, src)
		}
		return Verdict{Disposition: DispositionDeliver}
	}

	c.metrics.duplicates.WithLabelValues(DispositionAbsorb.String()).Inc()
	if c.log != nil {
		c.log.Debugf("absorbing retransmitted request %s from %v", id, src)
	}
	return Verdict{Disposition: DispositionAbsorb, Response: cached}
}

// RecordResponse caches the response sent for (src, id) so absorbed
// retransmissions can be answered.
func (c *Controller) RecordResponse(id message.TransactionID, src net.Addr, raw []byte) {
	c.requests.record(newRequestKey(src, id), raw)
}

// Close cancels every live transaction. Start fails afterwards.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	live := make([]*Transaction, 0, len(c.live))
	for _, t := range c.live {
		live = append(live, t)
	}
	c.mu.Unlock()

	for _, t := range live {
		t.Cancel()
	}
	c.requests.purge()
	return nil
}

// finish settles t with o and runs completion. It returns false if t
// already had an outcome.
func (c *Controller) finish(t *Transaction, o Outcome) bool {
	t.mu.Lock()
	settled := c.settle(t, o)
	t.mu.Unlock()

	if settled {
		c.complete(t, o)
	}
	return settled
}

// settle must be called with t.mu held.
func (c *Controller) settle(t *Transaction, o Outcome) bool {
	if t.state.IsTerminal() {
		return false
	}
	t.stopTimer()
	t.state = o.State
	t.outcome = o
	close(t.done)
	return true
}

// complete unregisters a settled transaction. t.mu must not be held.
func (c *Controller) complete(t *Transaction, o Outcome) {
	c.mu.Lock()
	if c.live[t.id] == t {
		delete(c.live, t.id)
	}
	c.mu.Unlock()

	if t.policy.KeepAfterResponse {
		c.finished.Add(t.id, o.State)
	}

	c.metrics.outcomes.WithLabelValues(o.State.String()).Inc()
	if c.log != nil {
		c.log.Debugf("transaction %s to %v finished: %s", t.id, t.dest, o.State)
	}

	if c.onComplete != nil {
		c.onComplete(t)
	}
}
