// Package stack ties the transport, message and transaction layers into a
// STUN stack.
//
// Inbound datagrams are decoded, checked for integrity and routed: responses
// settle client transactions, requests go through the duplicate-request
// table and then to the application's RequestHandler. Outbound requests are
// issued with Request or Binding and retransmitted by the transaction
// controller.
package stack

import (
	"net"
	"sync"

	"github.com/backkem/traverse/pkg/config"
	"github.com/backkem/traverse/pkg/message"
	"github.com/backkem/traverse/pkg/transaction"
	"github.com/backkem/traverse/pkg/transport"
	"github.com/benbjohnson/clock"
	"github.com/pion/logging"
	"github.com/pion/stun/v3"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// RequestHandler answers an inbound request. A nil response sends nothing.
// A returned error is answered with 500 Server Error.
type RequestHandler func(req *stun.Message, src net.Addr) (*stun.Message, error)

// Config configures a Stack.
type Config struct {
	// Transport sends outbound datagrams. Its received messages must be
	// routed to HandleMessage. Required unless the stack is created with
	// Listen.
	Transport transport.Transport

	// Config supplies the stack policy. If nil, the registered defaults are
	// used.
	Config *config.Resolver

	// Signer signs outbound messages and verifies inbound ones.
	Signer *message.Signer

	// RequestHandler answers inbound requests. If nil, requests are ignored.
	RequestHandler RequestHandler

	// Clock drives retransmissions and keep-alives. If nil, the wall clock
	// is used.
	Clock clock.Clock

	// Registerer receives transaction metrics. May be nil.
	Registerer prometheus.Registerer

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Stack is a STUN endpoint bound to one transport.
type Stack struct {
	transport  transport.Transport
	controller *transaction.Controller
	signer     *message.Signer
	handler    RequestHandler
	clock      clock.Clock
	log        logging.LeveledLogger

	// stop releases a transport owned by the stack.
	stop func() error

	mu     sync.Mutex
	closed bool
}

// New creates a stack on an existing transport.
func New(cfg Config) (*Stack, error) {
	if cfg.Transport == nil {
		return nil, ErrNoTransport
	}
	if cfg.Config == nil {
		cfg.Config = config.NewResolver(config.ResolverConfig{Source: config.MapSource{}})
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	s := &Stack{
		transport: cfg.Transport,
		signer:    cfg.Signer,
		handler:   cfg.RequestHandler,
		clock:     cfg.Clock,
	}
	if cfg.LoggerFactory != nil {
		s.log = cfg.LoggerFactory.NewLogger("stack")
	}

	// A typed nil *message.Signer must not become a non-nil interface.
	var signer transaction.Signer
	if cfg.Signer != nil {
		signer = cfg.Signer
	}

	controller, err := transaction.NewController(transaction.ControllerConfig{
		Sender:        cfg.Transport,
		Config:        cfg.Config,
		Signer:        signer,
		Clock:         cfg.Clock,
		Registerer:    cfg.Registerer,
		LoggerFactory: cfg.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	s.controller = controller

	return s, nil
}

// Listen binds sockets with a transport.Manager, creates a stack on them
// and starts receiving. The manager's MessageHandler is replaced, and its
// Bind policy defaults to the configured one when left zero.
func Listen(cfg Config, mc transport.ManagerConfig) (*Stack, error) {
	if cfg.Config == nil {
		cfg.Config = config.NewResolver(config.ResolverConfig{Source: config.MapSource{}})
	}
	if mc.Bind == (config.Bind{}) {
		mc.Bind = config.LoadBind(cfg.Config)
	}
	if mc.LoggerFactory == nil {
		mc.LoggerFactory = cfg.LoggerFactory
	}

	// The manager delivers nothing before Start, so s is set by then.
	var s *Stack
	mc.MessageHandler = func(msg *transport.ReceivedMessage) {
		s.HandleMessage(msg)
	}

	mgr, err := transport.NewManager(mc)
	if err != nil {
		return nil, err
	}

	cfg.Transport = mgr
	if s, err = New(cfg); err != nil {
		mgr.Stop()
		return nil, err
	}
	s.stop = mgr.Stop

	if err := mgr.Start(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Controller returns the stack's transaction controller.
func (s *Stack) Controller() *transaction.Controller {
	return s.controller
}

// LocalAddr returns the transport's local address.
func (s *Stack) LocalAddr() net.Addr {
	return s.transport.LocalAddr()
}

// LocalAddrs returns every socket address of the transport. Transports
// with a single socket report just LocalAddr.
func (s *Stack) LocalAddrs() []net.Addr {
	if multi, ok := s.transport.(interface{ LocalAddrs() []net.Addr }); ok {
		return multi.LocalAddrs()
	}
	return []net.Addr{s.transport.LocalAddr()}
}

// Close cancels outstanding transactions and stops a transport created by
// Listen.
func (s *Stack) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	s.mu.Unlock()

	err := s.controller.Close()
	if s.stop != nil {
		err = multierr.Append(err, s.stop())
	}
	return err
}
