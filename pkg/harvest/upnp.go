package harvest

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"

	"github.com/huin/goupnp/dcps/internetgateway1"
	"github.com/huin/goupnp/dcps/internetgateway2"
	"github.com/pion/logging"
)

// IGDClient is the part of a UPnP WANIPConnection client the strategy
// uses. The generated internetgateway1 and internetgateway2 clients
// implement it.
type IGDClient interface {
	GetExternalIPAddressCtx(ctx context.Context) (string, error)
	LocalAddr() net.IP
}

// UPnPConfig configures the UPnP strategy.
type UPnPConfig struct {
	// Discover finds gateway clients. Defaults to SSDP discovery of
	// IGDv2 WANIPConnection services, falling back to IGDv1.
	Discover func(ctx context.Context) ([]IGDClient, error)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// UPnP asks an Internet Gateway Device for its external address. The
// face is the local address the device was discovered on.
type UPnP struct {
	discoverClients func(context.Context) ([]IGDClient, error)
	log             logging.LeveledLogger

	discoverOnce sync.Once
	clients      []IGDClient

	resolveOnce sync.Once
	result      Result
}

// NewUPnP creates the strategy.
func NewUPnP(cfg UPnPConfig) *UPnP {
	if cfg.Discover == nil {
		cfg.Discover = discoverIGD
	}
	u := &UPnP{discoverClients: cfg.Discover}
	if cfg.LoggerFactory != nil {
		u.log = cfg.LoggerFactory.NewLogger("harvest-upnp")
	}
	return u
}

// discoverIGD runs SSDP discovery for IGDv2 and then IGDv1.
func discoverIGD(ctx context.Context) ([]IGDClient, error) {
	v2, _, err := internetgateway2.NewWANIPConnection1ClientsCtx(ctx)
	if err == nil && len(v2) > 0 {
		out := make([]IGDClient, 0, len(v2))
		for _, c := range v2 {
			out = append(out, c)
		}
		return out, nil
	}

	v1, _, err1 := internetgateway1.NewWANIPConnection1ClientsCtx(ctx)
	if err1 != nil {
		return nil, errors.Join(err, err1)
	}
	out := make([]IGDClient, 0, len(v1))
	for _, c := range v1 {
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, ErrNoGateway
	}
	return out, nil
}

// Name implements Strategy.
func (u *UPnP) Name() string {
	return "upnp"
}

// Policy rewrites exact address matches and passes the rest through.
func (u *UPnP) Policy() RewritePolicy {
	return RewritePolicy{Unmatched: PassThrough}
}

// Applicable reports whether a gateway answered discovery.
func (u *UPnP) Applicable(ctx context.Context) bool {
	u.discoverOnce.Do(func() {
		clients, err := u.discoverClients(context.WithoutCancel(ctx))
		if err != nil && u.log != nil {
			u.log.Infof("UPnP discovery failed: %v", err)
		}
		u.clients = clients
	})
	return len(u.clients) > 0
}

// Resolve uses the first gateway that reports a usable external address.
func (u *UPnP) Resolve(ctx context.Context) Result {
	u.resolveOnce.Do(func() {
		u.result = Unavailable()
		if !u.Applicable(ctx) {
			return
		}
		ctx := context.WithoutCancel(ctx)
		for _, c := range u.clients {
			ext, err := c.GetExternalIPAddressCtx(ctx)
			if err != nil {
				if u.log != nil {
					u.log.Debugf("GetExternalIPAddress: %v", err)
				}
				continue
			}
			mask, err := netip.ParseAddr(ext)
			if err != nil {
				continue
			}
			face, ok := netip.AddrFromSlice(c.LocalAddr())
			if !ok {
				continue
			}
			pair := AddressPair{
				Face: netip.AddrPortFrom(face.Unmap(), 0),
				Mask: netip.AddrPortFrom(mask.Unmap(), 0),
			}
			if u.log != nil {
				u.log.Infof("UPnP local %s, external %s", pair.Face.Addr(), pair.Mask.Addr())
			}
			u.result = Resolved(pair)
			return
		}
	})
	return u.result
}
