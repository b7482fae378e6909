// Package discovery finds STUN and TURN helper servers through DNS-SD,
// either multicast on the local link (mDNS) or unicast SRV records in a
// domain, and advertises a local server over mDNS.
package discovery

// ServiceType identifies a helper service.
type ServiceType int

// ServiceType constants.
const (
	// ServiceTypeUnknown represents an unknown or invalid service type.
	ServiceTypeUnknown ServiceType = iota

	// ServiceTypeSTUN is a STUN server: _stun._udp
	ServiceTypeSTUN

	// ServiceTypeTURN is a TURN relay: _turn._udp
	ServiceTypeTURN
)

// DNS-SD service strings.
const (
	ServiceSTUN = "_stun._udp"
	ServiceTURN = "_turn._udp"

	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."
)

// String returns a human-readable string for the service type.
func (s ServiceType) String() string {
	switch s {
	case ServiceTypeSTUN:
		return "STUN"
	case ServiceTypeTURN:
		return "TURN"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the service type is valid.
func (s ServiceType) IsValid() bool {
	return s == ServiceTypeSTUN || s == ServiceTypeTURN
}

// ServiceString returns the DNS-SD service string.
func (s ServiceType) ServiceString() string {
	switch s {
	case ServiceTypeSTUN:
		return ServiceSTUN
	case ServiceTypeTURN:
		return ServiceTURN
	default:
		return ""
	}
}

// ParseServiceType parses "stun" or "turn", case-sensitively.
func ParseServiceType(s string) (ServiceType, error) {
	switch s {
	case "stun":
		return ServiceTypeSTUN, nil
	case "turn":
		return ServiceTypeTURN, nil
	default:
		return ServiceTypeUnknown, ErrInvalidServiceType
	}
}
