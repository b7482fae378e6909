package discovery

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pion/logging"
)

// ManagerConfig holds configuration for the discovery Manager.
type ManagerConfig struct {
	// Port is the local server port to advertise (default: 3478).
	Port int

	// Interfaces specifies which network interfaces to advertise on.
	// If nil, all interfaces are used.
	Interfaces []net.Interface

	// BrowseTimeout is the default timeout for browse operations.
	// If zero, DefaultBrowseTimeout is used.
	BrowseTimeout time.Duration

	// LookupTimeout is the default timeout for lookup operations.
	// If zero, DefaultLookupTimeout is used.
	LookupTimeout time.Duration

	// SRV configures unicast lookups.
	SRV SRVConfig

	// ServerFactory is the factory for creating mDNS servers (for testing).
	ServerFactory MDNSServerFactory

	// MDNSResolver is the mDNS resolver implementation (for testing).
	MDNSResolver MDNSResolver

	// LoggerFactory for creating loggers.
	LoggerFactory logging.LoggerFactory
}

// Manager coordinates advertising a local server and finding remote ones.
type Manager struct {
	config     ManagerConfig
	advertiser *Advertiser
	resolver   *Resolver

	mu     sync.RWMutex
	closed bool
}

// NewManager creates a new discovery Manager with the given configuration.
func NewManager(config ManagerConfig) (*Manager, error) {
	advertiser, err := NewAdvertiser(AdvertiserConfig{
		Port:          config.Port,
		Interfaces:    config.Interfaces,
		ServerFactory: config.ServerFactory,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	resolver, err := NewResolver(ResolverConfig{
		MDNSResolver:  config.MDNSResolver,
		BrowseTimeout: config.BrowseTimeout,
		LookupTimeout: config.LookupTimeout,
		SRV:           config.SRV,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	return &Manager{
		config:     config,
		advertiser: advertiser,
		resolver:   resolver,
	}, nil
}

// Close stops all advertising and closes the manager.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.closed = true

	return m.advertiser.Close()
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Discover finds servers of serviceType. An empty domain or "local" browses
// the local link over mDNS; any other domain is looked up through unicast
// SRV records.
func (m *Manager) Discover(ctx context.Context, serviceType ServiceType, domain string) ([]ResolvedService, error) {
	if m.isClosed() {
		return nil, ErrClosed
	}
	if isLocalDomain(domain) {
		services, err := m.resolver.BrowseAll(ctx, serviceType)
		if err != nil {
			return nil, err
		}
		if len(services) == 0 {
			return nil, ErrServiceNotFound
		}
		return services, nil
	}
	return m.resolver.LookupSRV(ctx, serviceType, domain)
}

// ServerAddresses returns "ip:port" strings for every discovered server,
// best first.
func (m *Manager) ServerAddresses(ctx context.Context, serviceType ServiceType, domain string) ([]string, error) {
	services, err := m.Discover(ctx, serviceType, domain)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, svc := range services {
		out = append(out, svc.HostPorts()...)
	}
	return out, nil
}

// Advertise starts advertising the local server as serviceType.
func (m *Manager) Advertise(serviceType ServiceType, instanceName string, txt ServerTXT) error {
	if m.isClosed() {
		return ErrClosed
	}
	return m.advertiser.Start(serviceType, instanceName, txt)
}

// StopAdvertising stops advertising serviceType.
func (m *Manager) StopAdvertising(serviceType ServiceType) error {
	if m.isClosed() {
		return ErrClosed
	}
	return m.advertiser.Stop(serviceType)
}

// Advertiser returns the underlying advertiser.
func (m *Manager) Advertiser() *Advertiser {
	return m.advertiser
}

// Resolver returns the underlying resolver.
func (m *Manager) Resolver() *Resolver {
	return m.resolver
}

func isLocalDomain(domain string) bool {
	d := strings.TrimSuffix(strings.ToLower(domain), ".")
	return d == "" || d == "local"
}
