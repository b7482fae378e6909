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
	"github.com/jackpal/gateway"
	natpmp "github.com/jackpal/go-nat-pmp"
	"github.com/pion/logging"
	"github.com/pion/transport/v3/stdnet"
)

// natpmpPort is the gateway's NAT-PMP listening port.
const natpmpPort = 5351

// ExternalAddresser is the part of a NAT-PMP client the strategy uses.
// *natpmp.Client implements it.
type ExternalAddresser interface {
	GetExternalAddress() (*natpmp.GetExternalAddressResult, error)
}

// NATPMPConfig configures the NAT-PMP strategy.
type NATPMPConfig struct {
	// DiscoverGateway finds the default gateway.
	// Defaults to gateway.DiscoverGateway.
	DiscoverGateway func() (net.IP, error)

	// NewClient creates the NAT-PMP client for a gateway.
	// Defaults to natpmp.NewClientWithTimeout.
	NewClient func(gw net.IP, timeout time.Duration) ExternalAddresser

	// Net picks the local address facing the gateway.
	// Defaults to the host network.
	Net transport.Net

	// Timeout bounds each NAT-PMP exchange.
	// Default: DefaultDiscoveryTimeout
	Timeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NATPMP asks the default gateway for its external address. The face is
// the local address the host uses to reach the gateway.
type NATPMP struct {
	discoverGateway func() (net.IP, error)
	newClient       func(net.IP, time.Duration) ExternalAddresser
	n               transport.Net
	timeout         time.Duration
	log             logging.LeveledLogger

	gwOnce sync.Once
	gw     net.IP

	resolveOnce sync.Once
	result      Result
}

// NewNATPMP creates the strategy.
func NewNATPMP(cfg NATPMPConfig) (*NATPMP, error) {
	if cfg.DiscoverGateway == nil {
		cfg.DiscoverGateway = gateway.DiscoverGateway
	}
	if cfg.NewClient == nil {
		cfg.NewClient = func(gw net.IP, timeout time.Duration) ExternalAddresser {
			return natpmp.NewClientWithTimeout(gw, timeout)
		}
	}
	if cfg.Net == nil {
		n, err := stdnet.NewNet()
		if err != nil {
			return nil, err
		}
		cfg.Net = n
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDiscoveryTimeout
	}

	p := &NATPMP{
		discoverGateway: cfg.DiscoverGateway,
		newClient:       cfg.NewClient,
		n:               cfg.Net,
		timeout:         cfg.Timeout,
	}
	if cfg.LoggerFactory != nil {
		p.log = cfg.LoggerFactory.NewLogger("harvest-natpmp")
	}
	return p, nil
}

// Name implements Strategy.
func (p *NATPMP) Name() string {
	return "natpmp"
}

// Policy rewrites exact address matches and passes the rest through.
func (p *NATPMP) Policy() RewritePolicy {
	return RewritePolicy{Unmatched: PassThrough}
}

// Applicable reports whether an IPv4 default gateway was found.
func (p *NATPMP) Applicable(context.Context) bool {
	p.gwOnce.Do(func() {
		gw, err := p.discoverGateway()
		if err != nil || gw.To4() == nil {
			if p.log != nil {
				p.log.Infof("no IPv4 gateway: %v", err)
			}
			return
		}
		p.gw = gw.To4()
	})
	return p.gw != nil
}

// Resolve implements Strategy.
func (p *NATPMP) Resolve(ctx context.Context) Result {
	p.resolveOnce.Do(func() {
		if !p.Applicable(ctx) {
			p.result = Unavailable()
			return
		}
		pair, err := p.discover()
		if err != nil {
			if p.log != nil {
				p.log.Infof("NAT-PMP discovery via %s failed: %v", p.gw, err)
			}
			p.result = Unavailable()
			return
		}
		if p.log != nil {
			p.log.Infof("NAT-PMP local %s, external %s", pair.Face.Addr(), pair.Mask.Addr())
		}
		p.result = Resolved(pair)
	})
	return p.result
}

func (p *NATPMP) discover() (AddressPair, error) {
	res, err := p.newClient(p.gw, p.timeout).GetExternalAddress()
	if err != nil {
		return AddressPair{}, err
	}
	mask := netip.AddrFrom4(res.ExternalIPAddress)

	conn, err := p.n.Dial("udp4", net.JoinHostPort(p.gw.String(), strconv.Itoa(natpmpPort)))
	if err != nil {
		return AddressPair{}, err
	}
	defer conn.Close()

	local, ok := TransportAddressFromNet(conn.LocalAddr())
	if !ok {
		return AddressPair{}, fmt.Errorf("%w to gateway %v", ErrNoRoute, p.gw)
	}
	return AddressPair{
		Face: netip.AddrPortFrom(local.Addr(), 0),
		Mask: netip.AddrPortFrom(mask, 0),
	}, nil
}
