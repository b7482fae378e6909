package discovery

import (
	"net"
	"net/netip"
	"sort"
)

// SortIPsByPreference orders addresses for reaching a helper server.
// Priority order (highest to lowest):
//  1. Public unicast addresses, IPv4 before IPv6
//  2. Private addresses (RFC 1918, ULA)
//  3. Link-local addresses
//  4. Everything else
//
// The sort is stable and the input slice is not modified.
func SortIPsByPreference(ips []net.IP) []net.IP {
	if len(ips) <= 1 {
		return ips
	}

	sorted := make([]net.IP, len(ips))
	copy(sorted, ips)

	sort.SliceStable(sorted, func(i, j int) bool {
		return ipPriority(sorted[i]) < ipPriority(sorted[j])
	})
	return sorted
}

// ipPriority returns the priority of an IP address (lower is better).
func ipPriority(ip net.IP) int {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return 99
	}
	addr = addr.Unmap()

	switch {
	case addr.IsLoopback():
		return 80
	case addr.IsMulticast():
		return 90
	case addr.IsPrivate():
		return 10
	case addr.IsLinkLocalUnicast():
		return 20
	case addr.IsGlobalUnicast() && addr.Is4():
		return 0
	case addr.IsGlobalUnicast():
		return 1
	default:
		return 50
	}
}

// FilterIPv6 returns only IPv6 addresses from the slice.
func FilterIPv6(ips []net.IP) []net.IP {
	var result []net.IP
	for _, ip := range ips {
		if ip.To4() == nil && ip.To16() != nil {
			result = append(result, ip)
		}
	}
	return result
}

// FilterIPv4 returns only IPv4 addresses from the slice.
func FilterIPv4(ips []net.IP) []net.IP {
	var result []net.IP
	for _, ip := range ips {
		if ip.To4() != nil {
			result = append(result, ip)
		}
	}
	return result
}
