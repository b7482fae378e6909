package transaction

import (
	"time"

	"github.com/backkem/traverse/pkg/config"
)

// Policy is the retransmission and signing policy of the stack. It is
// snapshotted from the configuration when a transaction starts, so a
// running transaction is unaffected by later configuration changes.
type Policy struct {
	// FirstInterval is the delay before the first retransmission.
	FirstInterval time.Duration

	// MaxInterval caps the doubling interval.
	MaxInterval time.Duration

	// MaxRetransmits is the number of retransmissions before timing out.
	MaxRetransmits int

	// RequireIntegrity rejects inbound messages without MESSAGE-INTEGRITY
	// and signs every outbound request.
	RequireIntegrity bool

	// AlwaysSign signs every outbound request.
	AlwaysSign bool

	// DisableKeepAlives suppresses keep-alive indications.
	DisableKeepAlives bool

	// KeepAfterResponse remembers finished transactions for Retention so
	// late duplicate responses are recognized.
	KeepAfterResponse bool

	// Retention bounds how long finished transactions and answered inbound
	// requests are remembered.
	Retention time.Duration

	// PropagateRetransmissions delivers retransmitted inbound requests to
	// the application instead of absorbing them.
	PropagateRetransmissions bool

	// KeepAliveInterval is the period between keep-alive indications.
	KeepAliveInterval time.Duration
}

// PolicyFromConfig snapshots the policy from r.
func PolicyFromConfig(r *config.Resolver) Policy {
	p := Policy{
		FirstInterval:            r.MillisDefault(config.KeyFirstRetransmitInterval),
		MaxInterval:              r.MillisDefault(config.KeyMaxRetransmitInterval),
		MaxRetransmits:           r.IntDefault(config.KeyMaxRetransmitCount),
		RequireIntegrity:         r.BoolDefault(config.KeyRequireMessageIntegrity),
		AlwaysSign:               r.BoolDefault(config.KeyAlwaysSignOutgoing),
		DisableKeepAlives:        r.BoolDefault(config.KeyDisableKeepAlives),
		KeepAfterResponse:        r.BoolDefault(config.KeyKeepTransactionAfterResponse),
		Retention:                r.MillisDefault(config.KeyTransactionRetention),
		PropagateRetransmissions: r.BoolDefault(config.KeyPropagateReceivedRetransmissions),
		KeepAliveInterval:        r.MillisDefault(config.KeyKeepAliveInterval),
	}
	return p.normalize()
}

// DefaultPolicy returns the policy built from the registered defaults.
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.NewResolver(config.ResolverConfig{Source: config.MapSource{}}))
}

// normalize clamps values that would stall or spin the retransmission
// and keep-alive timers.
func (p Policy) normalize() Policy {
	if p.FirstInterval <= 0 {
		p.FirstInterval = time.Millisecond
	}
	if p.MaxInterval < p.FirstInterval {
		p.MaxInterval = p.FirstInterval
	}
	if p.MaxRetransmits < 0 {
		p.MaxRetransmits = 0
	}
	if p.KeepAliveInterval <= 0 {
		p.KeepAliveInterval = config.NewResolver(config.ResolverConfig{Source: config.MapSource{}}).
			MillisDefault(config.KeyKeepAliveInterval)
	}
	return p
}

// ShouldSign reports whether outbound requests are signed.
func (p Policy) ShouldSign() bool {
	return p.AlwaysSign || p.RequireIntegrity
}
