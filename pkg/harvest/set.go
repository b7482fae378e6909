package harvest

import (
	"context"
	"sync"

	"github.com/pion/logging"
)

// Set runs several strategies side by side.
type Set struct {
	mappers []*Mapper
	log     logging.LeveledLogger
}

// NewSet creates a set over strategies. A nil factory disables logging.
func NewSet(loggerFactory logging.LoggerFactory, strategies ...Strategy) *Set {
	s := &Set{}
	if loggerFactory != nil {
		s.log = loggerFactory.NewLogger("harvest")
	}
	for _, st := range strategies {
		s.mappers = append(s.mappers, NewMapper(st, loggerFactory))
	}
	return s
}

// Strategies returns the strategies of the set in order.
func (s *Set) Strategies() []Strategy {
	out := make([]Strategy, 0, len(s.mappers))
	for _, m := range s.mappers {
		out = append(out, m.strategy)
	}
	return out
}

// Harvest runs every strategy concurrently and returns locals followed by
// every derived candidate, in strategy order. A derived address already
// present earlier in the output is skipped.
func (s *Set) Harvest(ctx context.Context, locals []Candidate) []Candidate {
	derived := make([][]Candidate, len(s.mappers))

	var wg sync.WaitGroup
	for i, m := range s.mappers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, c := range m.Harvest(ctx, locals) {
				if c.Type == CandidateTypeMapped {
					derived[i] = append(derived[i], c)
				}
			}
		}()
	}
	wg.Wait()

	out := make([]Candidate, 0, len(locals))
	seen := make(map[TransportAddress]bool, len(locals))
	for _, c := range locals {
		out = append(out, c)
		seen[c.Address] = true
	}
	for i, cs := range derived {
		for _, c := range cs {
			if seen[c.Address] {
				continue
			}
			seen[c.Address] = true
			out = append(out, c)
		}
		if s.log != nil && len(cs) > 0 {
			s.log.Infof("%s derived %d candidates", s.mappers[i].strategy.Name(), len(cs))
		}
	}
	return out
}
