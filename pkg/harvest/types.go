// Package harvest derives externally reachable candidates from local ones.
//
// A Strategy discovers an AddressPair: the face is a local address and the
// mask is the address the outside world sees for it. The Mapper rewrites
// every local candidate whose address matches the face into a Mapped
// candidate on the mask address, keeping the candidate's port and
// protocol. No per-candidate network round trip is made.
//
// Discovery is best effort. A strategy that is not applicable, or whose
// discovery failed, leaves the candidates untouched.
package harvest

import (
	"fmt"
	"net"
	"net/netip"
)

// Protocol is the transport protocol of a candidate.
type Protocol int

const (
	// ProtocolUnknown is the zero value.
	ProtocolUnknown Protocol = iota
	ProtocolUDP
	ProtocolTCP
)

// String returns the lowercase protocol name.
func (p Protocol) String() string {
	switch p {
	case ProtocolUDP:
		return "udp"
	case ProtocolTCP:
		return "tcp"
	default:
		return "unknown"
	}
}

// IsValid returns true if the protocol is a defined value.
func (p Protocol) IsValid() bool {
	return p == ProtocolUDP || p == ProtocolTCP
}

// TransportAddress is an address, port and protocol.
type TransportAddress struct {
	netip.AddrPort
	Protocol Protocol
}

// NewTransportAddress creates a transport address. IPv4-mapped IPv6
// addresses are unmapped.
func NewTransportAddress(ap netip.AddrPort, proto Protocol) TransportAddress {
	return TransportAddress{
		AddrPort: netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()),
		Protocol: proto,
	}
}

// TransportAddressFromNet converts a *net.UDPAddr or *net.TCPAddr.
func TransportAddressFromNet(addr net.Addr) (TransportAddress, bool) {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return NewTransportAddress(a.AddrPort(), ProtocolUDP), true
	case *net.TCPAddr:
		return NewTransportAddress(a.AddrPort(), ProtocolTCP), true
	default:
		return TransportAddress{}, false
	}
}

// String returns "addr:port/proto".
func (a TransportAddress) String() string {
	return fmt.Sprintf("%s/%s", a.AddrPort, a.Protocol)
}

// UDPAddr returns the address as a *net.UDPAddr.
func (a TransportAddress) UDPAddr() *net.UDPAddr {
	return net.UDPAddrFromAddrPort(a.AddrPort)
}

// CandidateType classifies how a candidate was obtained.
type CandidateType int

const (
	// CandidateTypeUnknown is the zero value.
	CandidateTypeUnknown CandidateType = iota

	// CandidateTypeHost is bound directly on a local interface.
	CandidateTypeHost

	// CandidateTypeServerReflexive was learned from a STUN server.
	CandidateTypeServerReflexive

	// CandidateTypeMapped was derived from a host candidate through an
	// AddressPair.
	CandidateTypeMapped
)

// String returns the candidate type name.
func (t CandidateType) String() string {
	switch t {
	case CandidateTypeHost:
		return "host"
	case CandidateTypeServerReflexive:
		return "srflx"
	case CandidateTypeMapped:
		return "mapped"
	default:
		return "unknown"
	}
}

// IsValid returns true if the type is a defined value.
func (t CandidateType) IsValid() bool {
	return t >= CandidateTypeHost && t <= CandidateTypeMapped
}

// Candidate is a transport address a peer might reach us at.
type Candidate struct {
	Address TransportAddress
	Type    CandidateType

	// Base is the local candidate a derived candidate was produced from.
	// Zero for host candidates.
	Base TransportAddress

	// Foundation names the source of a derived candidate (the strategy).
	Foundation string
}

// String returns a short description such as
// "mapped 203.0.113.9:5000/udp (base 10.0.0.5:5000/udp, aws)".
func (c Candidate) String() string {
	if c.Type == CandidateTypeHost {
		return fmt.Sprintf("%s %s", c.Type, c.Address)
	}
	return fmt.Sprintf("%s %s (base %s, %s)", c.Type, c.Address, c.Base, c.Foundation)
}

// HostCandidate creates a host candidate.
func HostCandidate(ap netip.AddrPort, proto Protocol) Candidate {
	return Candidate{Address: NewTransportAddress(ap, proto), Type: CandidateTypeHost}
}
