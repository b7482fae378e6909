package harvest

import "net/netip"

// AddressPair maps a local face address to its public mask address. A
// zero port on either side means the pair covers every port.
type AddressPair struct {
	Face netip.AddrPort
	Mask netip.AddrPort
}

// Valid reports whether the pair can rewrite anything: both addresses are
// set, neither is unspecified, and they share an address family.
func (p AddressPair) Valid() bool {
	face, mask := p.Face.Addr().Unmap(), p.Mask.Addr().Unmap()
	if !face.IsValid() || !mask.IsValid() {
		return false
	}
	if face.IsUnspecified() || mask.IsUnspecified() {
		return false
	}
	return face.Is4() == mask.Is4()
}

// Result is the outcome of a strategy's discovery.
type Result struct {
	pair     AddressPair
	resolved bool
}

// Resolved returns a result carrying pair.
func Resolved(pair AddressPair) Result {
	return Result{pair: pair, resolved: true}
}

// Unavailable returns the result of failed or inapplicable discovery.
func Unavailable() Result {
	return Result{}
}

// Pair returns the discovered pair and whether discovery succeeded.
func (r Result) Pair() (AddressPair, bool) {
	return r.pair, r.resolved
}

// UnmatchedPolicy says what happens to candidates that do not match the
// face.
type UnmatchedPolicy int

const (
	// PassThrough keeps unmatched candidates unchanged.
	PassThrough UnmatchedPolicy = iota

	// Drop removes unmatched candidates from the output.
	Drop
)

// String returns the policy name.
func (u UnmatchedPolicy) String() string {
	switch u {
	case PassThrough:
		return "pass-through"
	case Drop:
		return "drop"
	default:
		return "unknown"
	}
}

// RewritePolicy controls how a resolved pair is applied.
type RewritePolicy struct {
	// MatchPort additionally requires the candidate port to equal the face
	// port (when the face has one), and uses the mask port (when it has
	// one) for the derived candidate.
	MatchPort bool

	Unmatched UnmatchedPolicy
}
