package discovery

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// DefaultBrowseTimeout is the default timeout for browse operations.
const DefaultBrowseTimeout = 3 * time.Second

// DefaultLookupTimeout is the default timeout for lookup operations.
const DefaultLookupTimeout = 2 * time.Second

// ResolvedService contains information about a discovered server.
type ResolvedService struct {
	// ServiceType is the type of the discovered service.
	ServiceType ServiceType

	// InstanceName is the DNS-SD instance name, or the SRV target for
	// unicast lookups.
	InstanceName string

	// HostName is the target host name.
	HostName string

	// Port is the service port.
	Port int

	// Priority and Weight come from the SRV record. mDNS results carry
	// zero.
	Priority uint16
	Weight   uint16

	// IPs contains the resolved IP addresses, sorted by preference.
	IPs []net.IP

	// Text contains the raw TXT record key-value pairs.
	Text map[string]string
}

// PreferredIP returns the most preferred IP address (first in the sorted list).
// Returns nil if no addresses are available.
func (r *ResolvedService) PreferredIP() net.IP {
	if len(r.IPs) > 0 {
		return r.IPs[0]
	}
	return nil
}

// IPv6Addresses returns only IPv6 addresses from the service.
func (r *ResolvedService) IPv6Addresses() []net.IP {
	return FilterIPv6(r.IPs)
}

// IPv4Addresses returns only IPv4 addresses from the service.
func (r *ResolvedService) IPv4Addresses() []net.IP {
	return FilterIPv4(r.IPs)
}

// UDPAddrs returns one UDP address per resolved IP on the service port.
func (r *ResolvedService) UDPAddrs() []*net.UDPAddr {
	out := make([]*net.UDPAddr, 0, len(r.IPs))
	for _, ip := range r.IPs {
		out = append(out, &net.UDPAddr{IP: ip, Port: r.Port})
	}
	return out
}

// HostPorts returns "ip:port" strings in preference order, the form the
// harvest-stun-addresses setting takes.
func (r *ResolvedService) HostPorts() []string {
	out := make([]string, 0, len(r.IPs))
	for _, ip := range r.IPs {
		out = append(out, net.JoinHostPort(ip.String(), strconv.Itoa(r.Port)))
	}
	return out
}

// MDNSResolver is the interface for mDNS service resolution.
// Implementations send entries until the query is over, then return; they
// never close entries. This allows for dependency injection in tests.
type MDNSResolver interface {
	// Browse browses for services of the given type.
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

	// Lookup looks up a specific service instance.
	Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// zeroconfResolver is the production implementation using grandcat/zeroconf.
// zeroconf shuts its client down when a query's context ends, so every call
// gets a fresh resolver.
type zeroconfResolver struct{}

func (zeroconfResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return forwardEntries(ctx, entries, func(r *zeroconf.Resolver, inner chan *zeroconf.ServiceEntry) error {
		return r.Browse(ctx, service, domain, inner)
	})
}

func (zeroconfResolver) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return forwardEntries(ctx, entries, func(r *zeroconf.Resolver, inner chan *zeroconf.ServiceEntry) error {
		return r.Lookup(ctx, instance, service, domain, inner)
	})
}

// forwardEntries runs a zeroconf query on a channel it owns and copies
// entries to out until the query ends or ctx does. out is never closed.
func forwardEntries(ctx context.Context, out chan<- *zeroconf.ServiceEntry, start func(*zeroconf.Resolver, chan *zeroconf.ServiceEntry) error) error {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return err
	}
	inner := make(chan *zeroconf.ServiceEntry)
	if err := start(r, inner); err != nil {
		return err
	}
	for {
		select {
		case entry, ok := <-inner:
			if !ok {
				return nil
			}
			select {
			case out <- entry:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ResolverConfig holds configuration for the Resolver.
type ResolverConfig struct {
	// MDNSResolver is the underlying mDNS resolver implementation.
	// If nil, the default zeroconf resolver is used.
	MDNSResolver MDNSResolver

	// BrowseTimeout is the timeout for browse operations.
	// If zero, DefaultBrowseTimeout is used.
	BrowseTimeout time.Duration

	// LookupTimeout is the timeout for lookup operations.
	// If zero, DefaultLookupTimeout is used.
	LookupTimeout time.Duration

	// SRV configures unicast lookups.
	SRV SRVConfig

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Resolver discovers helper servers via DNS-SD.
type Resolver struct {
	config   ResolverConfig
	resolver MDNSResolver
	srv      *srvResolver
	log      logging.LeveledLogger
}

// NewResolver creates a new Resolver with the given configuration.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	resolver := config.MDNSResolver
	if resolver == nil {
		resolver = zeroconfResolver{}
	}

	if config.BrowseTimeout == 0 {
		config.BrowseTimeout = DefaultBrowseTimeout
	}
	if config.LookupTimeout == 0 {
		config.LookupTimeout = DefaultLookupTimeout
	}

	r := &Resolver{
		config:   config,
		resolver: resolver,
		srv:      newSRVResolver(config.SRV, config.LookupTimeout),
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("discovery")
	}
	return r, nil
}

// Browse discovers services of serviceType on the local link. The returned
// channel receives services until ctx ends or the browse timeout expires,
// and is then closed.
func (r *Resolver) Browse(ctx context.Context, serviceType ServiceType) (<-chan ResolvedService, error) {
	service := serviceType.ServiceString()
	if service == "" {
		return nil, ErrInvalidServiceType
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.BrowseTimeout)
	results := make(chan ResolvedService)
	entries := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(entries)
		err := r.resolver.Browse(ctx, service, DefaultDomain, entries)
		if err != nil && ctx.Err() == nil && r.log != nil {
			r.log.Debugf("browse %s: %v", service, err)
		}
	}()

	go func() {
		defer cancel()
		defer close(results)

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if entry == nil {
					continue
				}
				select {
				case results <- entryToResolvedService(entry, serviceType):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return results, nil
}

// BrowseAll collects every service Browse reports before the timeout.
func (r *Resolver) BrowseAll(ctx context.Context, serviceType ServiceType) ([]ResolvedService, error) {
	ch, err := r.Browse(ctx, serviceType)
	if err != nil {
		return nil, err
	}
	var out []ResolvedService
	for svc := range ch {
		out = append(out, svc)
	}
	return out, nil
}

// Lookup looks up a specific service instance by name.
func (r *Resolver) Lookup(ctx context.Context, serviceType ServiceType, instanceName string) (*ResolvedService, error) {
	service := serviceType.ServiceString()
	if service == "" {
		return nil, ErrInvalidServiceType
	}

	// Apply lookup timeout if context doesn't have a deadline
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.LookupTimeout)
		defer cancel()
	}

	entries := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(entries)
		r.resolver.Lookup(ctx, instanceName, service, DefaultDomain, entries)
	}()

	select {
	case entry, ok := <-entries:
		if !ok || entry == nil {
			return nil, ErrServiceNotFound
		}
		svc := entryToResolvedService(entry, serviceType)
		return &svc, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

// LookupSRV resolves serviceType in domain through unicast DNS SRV
// records. Results are ordered by priority, then by descending weight.
func (r *Resolver) LookupSRV(ctx context.Context, serviceType ServiceType, domain string) ([]ResolvedService, error) {
	service := serviceType.ServiceString()
	if service == "" {
		return nil, ErrInvalidServiceType
	}
	out, err := r.srv.lookup(ctx, serviceType, domain)
	if err != nil {
		return nil, err
	}
	if r.log != nil {
		r.log.Debugf("SRV %s.%s: %d targets", service, domain, len(out))
	}
	return out, nil
}

// entryToResolvedService converts a zeroconf.ServiceEntry to ResolvedService.
func entryToResolvedService(entry *zeroconf.ServiceEntry, serviceType ServiceType) ResolvedService {
	var allIPs []net.IP
	allIPs = append(allIPs, entry.AddrIPv4...)
	allIPs = append(allIPs, entry.AddrIPv6...)

	return ResolvedService{
		ServiceType:  serviceType,
		InstanceName: entry.Instance,
		HostName:     entry.HostName,
		Port:         entry.Port,
		IPs:          SortIPsByPreference(allIPs),
		Text:         ParseTXT(entry.Text),
	}
}
