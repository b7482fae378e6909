package harvest

import (
	"net"
	"net/netip"
	"slices"

	"github.com/backkem/traverse/pkg/config"
	"github.com/backkem/traverse/pkg/transport"
)

// Filter builds the interface address filter described by cfg: loopback
// and unspecified addresses are always skipped, IPv6 and link-local
// addresses only when enabled, then allow and block lists apply to
// interface names and addresses.
func Filter(cfg config.Harvest) transport.AddressFilter {
	return func(iface string, addr netip.Addr) bool {
		addr = addr.Unmap()
		if addr.IsLoopback() || addr.IsUnspecified() {
			return false
		}
		if addr.Is6() && !cfg.UseIPv6 {
			return false
		}
		if (addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast()) && !cfg.UseLinkLocal {
			return false
		}
		if len(cfg.AllowedInterfaces) > 0 && !slices.Contains(cfg.AllowedInterfaces, iface) {
			return false
		}
		if slices.Contains(cfg.BlockedInterfaces, iface) {
			return false
		}
		if len(cfg.AllowedAddresses) > 0 && !slices.Contains(cfg.AllowedAddresses, addr) {
			return false
		}
		return !slices.Contains(cfg.BlockedAddresses, addr)
	}
}

// HostCandidates lists UDP host candidates on port for every interface
// address of n accepted by cfg.
func HostCandidates(n transport.Net, cfg config.Harvest, port uint16) ([]Candidate, error) {
	addrs, err := transport.LocalAddresses(n, Filter(cfg))
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, HostCandidate(netip.AddrPortFrom(a, port), ProtocolUDP))
	}
	return out, nil
}

// CandidatesFromAddrs turns bound socket addresses into host candidates.
// Addresses that are neither UDP nor TCP are skipped.
func CandidatesFromAddrs(addrs []net.Addr) []Candidate {
	out := make([]Candidate, 0, len(addrs))
	for _, a := range addrs {
		ta, ok := TransportAddressFromNet(a)
		if !ok {
			continue
		}
		out = append(out, Candidate{Address: ta, Type: CandidateTypeHost})
	}
	return out
}
