package harvest

import (
	"context"
	"net/netip"

	"github.com/pion/logging"
)

// Strategy discovers an AddressPair.
//
// Implementations cache: Applicable and Resolve each perform their
// underlying discovery at most once per instance, and concurrent first callers
// wait for the single discovery in flight. Neither ever fails loudly; failures
// are logged and collapse to false or Unavailable.
type Strategy interface {
	// Name identifies the strategy in logs and candidate foundations.
	Name() string

	// Applicable reports whether the strategy can work on this host.
	Applicable(ctx context.Context) bool

	// Resolve discovers the pair.
	Resolve(ctx context.Context) Result

	// Policy returns how the pair is applied.
	Policy() RewritePolicy
}

// Mapper applies one strategy to local candidates.
type Mapper struct {
	strategy Strategy
	log      logging.LeveledLogger
}

// NewMapper creates a mapper for s. A nil factory disables logging.
func NewMapper(s Strategy, loggerFactory logging.LoggerFactory) *Mapper {
	m := &Mapper{strategy: s}
	if loggerFactory != nil {
		m.log = loggerFactory.NewLogger("harvest")
	}
	return m
}

// Strategy returns the mapper's strategy.
func (m *Mapper) Strategy() Strategy {
	return m.strategy
}

// Harvest rewrites locals through the strategy's pair. When the strategy
// is not applicable, unresolved, or resolved to an unusable pair, locals is
// returned unchanged.
func (m *Mapper) Harvest(ctx context.Context, locals []Candidate) []Candidate {
	if !m.strategy.Applicable(ctx) {
		return locals
	}
	pair, ok := m.strategy.Resolve(ctx).Pair()
	if !ok {
		return locals
	}
	if !pair.Valid() {
		if m.log != nil {
			m.log.Warnf("%s: ignoring unusable pair %v -> %v", m.strategy.Name(), pair.Face, pair.Mask)
		}
		return locals
	}
	return rewrite(m.strategy.Name(), pair, m.strategy.Policy(), locals)
}

// rewrite applies a valid pair.
func rewrite(name string, pair AddressPair, policy RewritePolicy, locals []Candidate) []Candidate {
	out := make([]Candidate, 0, len(locals))
	for _, c := range locals {
		if derived, ok := derive(name, pair, policy, c); ok {
			out = append(out, derived)
			continue
		}
		if policy.Unmatched == PassThrough {
			out = append(out, c)
		}
	}
	return out
}

// derive maps one candidate, reporting false when it does not match.
func derive(name string, pair AddressPair, policy RewritePolicy, c Candidate) (Candidate, bool) {
	addr := c.Address.Addr().Unmap()
	face := pair.Face.Addr().Unmap()
	mask := pair.Mask.Addr().Unmap()

	if addr != face {
		return Candidate{}, false
	}
	if addr.Is4() != mask.Is4() {
		return Candidate{}, false
	}

	port := c.Address.Port()
	if policy.MatchPort {
		if pair.Face.Port() != 0 && pair.Face.Port() != port {
			return Candidate{}, false
		}
		if pair.Mask.Port() != 0 {
			port = pair.Mask.Port()
		}
	}

	return Candidate{
		Address:    TransportAddress{AddrPort: netip.AddrPortFrom(mask, port), Protocol: c.Address.Protocol},
		Type:       CandidateTypeMapped,
		Base:       c.Address,
		Foundation: name,
	}, true
}
