package harvest

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"github.com/backkem/traverse/pkg/transport"
	"github.com/pion/logging"
	"github.com/pion/transport/v3/stdnet"
)

// Binder runs Binding transactions from a bound local socket.
// *stack.Stack implements it.
type Binder interface {
	Binding(ctx context.Context, server net.Addr) (*net.UDPAddr, error)
	LocalAddr() net.Addr
}

// STUNMappingConfig configures the STUN mapping strategy.
type STUNMappingConfig struct {
	// Binder issues the Binding requests. Required.
	Binder Binder

	// Servers are host[:port] entries; the port defaults to 3478.
	Servers []string

	// Net resolves server names and, when the binder is bound to a
	// wildcard address, picks the local source address. Defaults to the
	// host network.
	Net transport.Net

	// Timeout bounds each Binding transaction.
	// Default: 3s
	Timeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// STUNMapping learns the public address of the binder's socket by asking
// STUN servers in order. The first answer wins and is kept.
type STUNMapping struct {
	binder  Binder
	servers []string
	n       transport.Net
	timeout time.Duration
	log     logging.LeveledLogger

	once   sync.Once
	result Result
}

// NewSTUNMapping creates the strategy.
func NewSTUNMapping(cfg STUNMappingConfig) (*STUNMapping, error) {
	if cfg.Binder == nil {
		return nil, ErrNoBinder
	}
	if cfg.Net == nil {
		n, err := stdnet.NewNet()
		if err != nil {
			return nil, err
		}
		cfg.Net = n
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}

	s := &STUNMapping{
		binder:  cfg.Binder,
		servers: cfg.Servers,
		n:       cfg.Net,
		timeout: cfg.Timeout,
	}
	if cfg.LoggerFactory != nil {
		s.log = cfg.LoggerFactory.NewLogger("harvest-stun")
	}
	return s, nil
}

// Name implements Strategy.
func (s *STUNMapping) Name() string {
	return "stun"
}

// Applicable reports whether any server is configured.
func (s *STUNMapping) Applicable(context.Context) bool {
	return len(s.servers) > 0
}

// Policy maps only the binder's own port.
func (s *STUNMapping) Policy() RewritePolicy {
	return RewritePolicy{MatchPort: true, Unmatched: PassThrough}
}

// Resolve implements Strategy.
func (s *STUNMapping) Resolve(ctx context.Context) Result {
	s.once.Do(func() {
		pair, err := s.discover(context.WithoutCancel(ctx))
		if err != nil {
			if s.log != nil {
				s.log.Infof("STUN discovery failed: %v", err)
			}
			s.result = Unavailable()
			return
		}
		if s.log != nil {
			s.log.Infof("STUN mapped %s to %s", pair.Face, pair.Mask)
		}
		s.result = Resolved(pair)
	})
	return s.result
}

func (s *STUNMapping) discover(ctx context.Context) (AddressPair, error) {
	for _, server := range s.servers {
		addr, err := s.n.ResolveUDPAddr("udp4", withDefaultPort(server))
		if err != nil {
			if s.log != nil {
				s.log.Debugf("resolve %s: %v", server, err)
			}
			continue
		}

		face, err := s.face(addr)
		if err != nil {
			return AddressPair{}, err
		}

		bctx, cancel := context.WithTimeout(ctx, s.timeout)
		mapped, err := s.binder.Binding(bctx, addr)
		cancel()
		if err != nil {
			if s.log != nil {
				s.log.Debugf("binding with %s: %v", server, err)
			}
			continue
		}

		mask, ok := netip.AddrFromSlice(mapped.IP)
		if !ok {
			continue
		}
		return AddressPair{
			Face: face,
			Mask: netip.AddrPortFrom(mask.Unmap(), uint16(mapped.Port)),
		}, nil
	}
	return AddressPair{}, ErrNoSTUNAnswer
}

// face is the binder's local address. A wildcard bind is narrowed to the
// source address the host would route toward server.
func (s *STUNMapping) face(server *net.UDPAddr) (netip.AddrPort, error) {
	local, ok := TransportAddressFromNet(s.binder.LocalAddr())
	if !ok {
		return netip.AddrPort{}, ErrNoUDPAddress
	}
	if !local.Addr().IsUnspecified() {
		return local.AddrPort, nil
	}

	conn, err := s.n.Dial("udp4", server.String())
	if err != nil {
		return netip.AddrPort{}, err
	}
	defer conn.Close()

	routed, ok := TransportAddressFromNet(conn.LocalAddr())
	if !ok {
		return netip.AddrPort{}, fmt.Errorf("%w to %v", ErrNoRoute, server)
	}
	return netip.AddrPortFrom(routed.Addr(), local.Port()), nil
}

func withDefaultPort(hostport string) string {
	if _, _, err := net.SplitHostPort(hostport); err == nil {
		return hostport
	}
	return net.JoinHostPort(hostport, strconv.Itoa(transport.DefaultPort))
}
