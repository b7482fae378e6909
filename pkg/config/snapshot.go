package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Bind is the socket binding policy.
type Bind struct {
	Retries  int
	Wildcard bool
}

// LoadBind snapshots the binding policy.
func LoadBind(r *Resolver) Bind {
	b := Bind{
		Retries:  r.IntDefault(KeyBindRetryCount),
		Wildcard: r.BoolDefault(KeyBindToWildcard),
	}
	if b.Retries < 1 {
		b.Retries = 1
	}
	return b
}

// StaticMapping is one configured face/mask pair.
// A zero port means the mapping applies to every port.
type StaticMapping struct {
	Local  netip.AddrPort
	Public netip.AddrPort
	Name   string
}

// HasPorts reports whether both sides name a port.
func (m StaticMapping) HasPorts() bool {
	return m.Local.Port() != 0 && m.Public.Port() != 0
}

// String returns the textual form accepted by ParseStaticMapping.
func (m StaticMapping) String() string {
	s := formatAddrPort(m.Local) + "=" + formatAddrPort(m.Public)
	if m.Name != "" {
		s += "@" + m.Name
	}
	return s
}

// Harvest is the candidate harvesting policy.
type Harvest struct {
	AWSEnabled bool
	AWSForce   bool

	StaticMappings []StaticMapping
	STUNAddresses  []string

	NATPMPEnabled bool
	UPnPEnabled   bool

	AllowedAddresses  []netip.Addr
	BlockedAddresses  []netip.Addr
	AllowedInterfaces []string
	BlockedInterfaces []string

	UseIPv6      bool
	UseLinkLocal bool

	DiscoveryTimeout time.Duration
}

// LoadHarvest snapshots the harvesting policy. Malformed list entries are
// skipped and logged.
func LoadHarvest(r *Resolver) Harvest {
	h := Harvest{
		AWSEnabled:       r.BoolDefault(KeyHarvestAWSEnabled),
		AWSForce:         r.BoolDefault(KeyHarvestAWSForce),
		NATPMPEnabled:    r.BoolDefault(KeyHarvestNATPMPEnabled),
		UPnPEnabled:      r.BoolDefault(KeyHarvestUPnPEnabled),
		UseIPv6:          r.BoolDefault(KeyHarvestUseIPv6),
		UseLinkLocal:     r.BoolDefault(KeyHarvestUseLinkLocal),
		DiscoveryTimeout: r.MillisDefault(KeyHarvestDiscoveryTimeoutMs),
	}

	if entries, ok := r.StringList(KeyHarvestStaticMappings, ";"); ok {
		for _, e := range entries {
			m, err := ParseStaticMapping(e)
			if err != nil {
				if r.log != nil {
					r.log.Debugf("skipping static mapping %q: %v", e, err)
				}
				continue
			}
			h.StaticMappings = append(h.StaticMappings, m)
		}
	}

	h.STUNAddresses, _ = r.StringList(KeyHarvestSTUNAddresses, ",")
	h.AllowedInterfaces, _ = r.StringList(KeyHarvestAllowedInterfaces, ";")
	h.BlockedInterfaces, _ = r.StringList(KeyHarvestBlockedInterfaces, ";")
	h.AllowedAddresses = r.addrList(KeyHarvestAllowedAddresses)
	h.BlockedAddresses = r.addrList(KeyHarvestBlockedAddresses)

	return h
}

func (r *Resolver) addrList(key Key) []netip.Addr {
	entries, ok := r.StringList(key, ";")
	if !ok {
		return nil
	}
	var out []netip.Addr
	for _, e := range entries {
		a, err := netip.ParseAddr(e)
		if err != nil {
			if r.log != nil {
				r.log.Debugf("skipping %s entry %q: %v", key, e, err)
			}
			continue
		}
		out = append(out, a.Unmap())
	}
	return out
}

// ParseStaticMapping parses "local[:port]=public[:port][@name]".
// IPv6 addresses with a port use the bracketed form.
func ParseStaticMapping(s string) (StaticMapping, error) {
	var m StaticMapping

	if at := strings.LastIndex(s, "@"); at >= 0 {
		m.Name = strings.TrimSpace(s[at+1:])
		s = s[:at]
	}

	local, public, ok := strings.Cut(s, "=")
	if !ok {
		return StaticMapping{}, fmt.Errorf("%w: missing '='", ErrInvalidMapping)
	}

	var err error
	if m.Local, err = parseAddrPort(strings.TrimSpace(local)); err != nil {
		return StaticMapping{}, fmt.Errorf("%w: local: %v", ErrInvalidMapping, err)
	}
	if m.Public, err = parseAddrPort(strings.TrimSpace(public)); err != nil {
		return StaticMapping{}, fmt.Errorf("%w: public: %v", ErrInvalidMapping, err)
	}

	// Ports are all-or-nothing.
	if (m.Local.Port() == 0) != (m.Public.Port() == 0) {
		return StaticMapping{}, fmt.Errorf("%w: ports must be given on both sides", ErrInvalidMapping)
	}
	return m, nil
}

func parseAddrPort(s string) (netip.AddrPort, error) {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return netip.AddrPortFrom(a.Unmap(), 0), nil
}

func formatAddrPort(ap netip.AddrPort) string {
	if ap.Port() == 0 {
		return ap.Addr().String()
	}
	return ap.String()
}
