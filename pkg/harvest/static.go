package harvest

import (
	"context"

	"github.com/backkem/traverse/pkg/config"
	"github.com/pion/logging"
)

// Static applies one configured mapping. It is always applicable.
type Static struct {
	mapping config.StaticMapping
}

// NewStatic creates a strategy for m.
func NewStatic(m config.StaticMapping) *Static {
	return &Static{mapping: m}
}

// NewStatics creates one strategy per mapping and logs each.
func NewStatics(mappings []config.StaticMapping, loggerFactory logging.LoggerFactory) []Strategy {
	var log logging.LeveledLogger
	if loggerFactory != nil {
		log = loggerFactory.NewLogger("harvest-static")
	}
	out := make([]Strategy, 0, len(mappings))
	for _, m := range mappings {
		if log != nil {
			log.Infof("static mapping %s", m)
		}
		out = append(out, NewStatic(m))
	}
	return out
}

// Name returns the mapping name, or "static".
func (s *Static) Name() string {
	if s.mapping.Name != "" {
		return s.mapping.Name
	}
	return "static"
}

// Applicable implements Strategy.
func (s *Static) Applicable(context.Context) bool {
	return true
}

// Resolve implements Strategy.
func (s *Static) Resolve(context.Context) Result {
	return Resolved(AddressPair{Face: s.mapping.Local, Mask: s.mapping.Public})
}

// Policy matches ports only when the mapping names them.
func (s *Static) Policy() RewritePolicy {
	return RewritePolicy{MatchPort: s.mapping.HasPorts(), Unmatched: PassThrough}
}
