package transport

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"sync"

	"github.com/backkem/traverse/pkg/config"
	"github.com/pion/logging"
	"github.com/pion/transport/v3"
	"github.com/pion/transport/v3/stdnet"
	"go.uber.org/multierr"
)

// Net is the network abstraction sockets are bound on: the host stack
// (stdnet) or a virtual network (vnet) in tests.
type Net = transport.Net

// AddressFilter decides whether a local interface address gets a socket.
type AddressFilter func(iface string, addr netip.Addr) bool

// Manager owns the UDP sockets of a stack. With wildcard binding it holds
// a single socket on the unspecified address; otherwise it binds one socket
// per eligible interface address.
type Manager struct {
	sockets []*UDP
	log     logging.LeveledLogger

	mu      sync.RWMutex
	started bool
	closed  bool
}

// ManagerConfig configures the transport manager.
type ManagerConfig struct {
	// Net is the network to enumerate and bind. If nil, the host network is used.
	Net transport.Net

	// Port is the port to bind on every address (0 for ephemeral).
	Port int

	// Bind is the binding policy (retries, wildcard).
	Bind config.Bind

	// Filter restricts which interface addresses are bound.
	// If nil, loopback and link-local addresses are skipped.
	Filter AddressFilter

	// MessageHandler is called for each received message.
	// Required.
	MessageHandler MessageHandler

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewManager binds the sockets described by config.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.MessageHandler == nil {
		return nil, ErrNoHandler
	}

	m := &Manager{}
	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("transport-manager")
	}

	n := config.Net
	if n == nil {
		var err error
		if n, err = stdnet.NewNet(); err != nil {
			return nil, err
		}
	}

	var listen []string
	if config.Bind.Wildcard {
		listen = []string{net.JoinHostPort("", strconv.Itoa(config.Port))}
	} else {
		addrs, err := LocalAddresses(n, config.Filter)
		if err != nil {
			return nil, err
		}
		for _, a := range addrs {
			listen = append(listen, netip.AddrPortFrom(a, uint16(config.Port)).String())
		}
	}
	if len(listen) == 0 {
		return nil, ErrNoAddresses
	}

	for _, addr := range listen {
		udp, err := NewUDP(UDPConfig{
			Net:            n,
			ListenAddr:     addr,
			BindRetries:    config.Bind.Retries,
			MessageHandler: config.MessageHandler,
			LoggerFactory:  config.LoggerFactory,
		})
		if err != nil {
			m.closeSockets()
			return nil, fmt.Errorf("binding %s: %w", addr, err)
		}
		m.sockets = append(m.sockets, udp)
	}

	return m, nil
}

// LocalAddresses lists interface addresses accepted by filter.
func LocalAddresses(n transport.Net, filter AddressFilter) ([]netip.Addr, error) {
	if filter == nil {
		filter = defaultFilter
	}

	ifaces, err := n.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []netip.Addr
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ip := addrIP(a)
			if !ip.IsValid() || !filter(iface.Name, ip) {
				continue
			}
			out = append(out, ip)
		}
	}
	return out, nil
}

func defaultFilter(_ string, addr netip.Addr) bool {
	return !addr.IsLoopback() && !addr.IsLinkLocalUnicast() && !addr.IsUnspecified()
}

func addrIP(a net.Addr) netip.Addr {
	var ip net.IP
	switch v := a.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	case *net.UDPAddr:
		ip = v.IP
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}
	}
	return addr.Unmap()
}

// Start starts every socket's read loop.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	for _, s := range m.sockets {
		if err := s.Start(); err != nil {
			return fmt.Errorf("starting %s: %w", s.LocalAddr(), err)
		}
	}
	return nil
}

// Stop closes all sockets.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.closed = true
	m.mu.Unlock()

	return m.closeSockets()
}

func (m *Manager) closeSockets() error {
	var err error
	for _, s := range m.sockets {
		if serr := s.Stop(); serr != nil && serr != ErrClosed {
			err = multierr.Append(err, fmt.Errorf("stopping %s: %w", s.LocalAddr(), serr))
		}
	}
	return err
}

// Send sends data from the first socket of the destination's address family.
func (m *Manager) Send(data []byte, dest net.Addr) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	m.mu.RUnlock()

	s := m.socketFor(dest)
	if s == nil {
		return ErrNoSocket
	}
	return s.Send(data, dest)
}

func (m *Manager) socketFor(dest net.Addr) *UDP {
	ip := addrIP(dest)
	if !ip.IsValid() {
		if len(m.sockets) > 0 {
			return m.sockets[0]
		}
		return nil
	}
	for _, s := range m.sockets {
		local := addrIP(s.LocalAddr())
		// The wildcard socket serves both families.
		if local.IsUnspecified() || local.Is4() == ip.Is4() {
			return s
		}
	}
	return nil
}

// LocalAddr returns the first bound address.
func (m *Manager) LocalAddr() net.Addr {
	if len(m.sockets) == 0 {
		return nil
	}
	return m.sockets[0].LocalAddr()
}

// LocalAddrs returns every bound address.
func (m *Manager) LocalAddrs() []net.Addr {
	addrs := make([]net.Addr, 0, len(m.sockets))
	for _, s := range m.sockets {
		addrs = append(addrs, s.LocalAddr())
	}
	return addrs
}
