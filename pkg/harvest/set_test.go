package harvest

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"
)

// rendezvousStrategy resolves only once every strategy sharing arrived has
// started resolving.
type rendezvousStrategy struct {
	fakeStrategy
	arrived *sync.WaitGroup
}

func (r *rendezvousStrategy) Resolve(ctx context.Context) Result {
	r.arrived.Done()
	all := make(chan struct{})
	go func() {
		r.arrived.Wait()
		close(all)
	}()
	select {
	case <-all:
		return r.fakeStrategy.Resolve(ctx)
	case <-time.After(2 * time.Second):
		return Unavailable()
	}
}

func TestSetHarvest(t *testing.T) {
	locals := []Candidate{
		udpCandidate("10.0.0.5:5000"),
		udpCandidate("10.0.0.6:5000"),
	}
	set := NewSet(nil,
		&fakeStrategy{name: "static", applicable: true, result: Resolved(pairOf("10.0.0.5", "203.0.113.9"))},
		&fakeStrategy{name: "aws", applicable: true, result: Resolved(pairOf("10.0.0.5", "203.0.113.9"))},
		&fakeStrategy{name: "upnp", applicable: true, result: Resolved(pairOf("10.0.0.6", "198.51.100.7")), policy: RewritePolicy{Unmatched: Drop}},
		&fakeStrategy{name: "natpmp"},
	)

	got := set.Harvest(t.Context(), locals)

	want := []string{"10.0.0.5:5000", "10.0.0.6:5000", "203.0.113.9:5000", "198.51.100.7:5000"}
	if !slices.Equal(addresses(got), want) {
		t.Fatalf("Harvest() = %v, want %v", addresses(got), want)
	}
	if got[2].Foundation != "static" {
		t.Errorf("duplicate kept from %q, want static", got[2].Foundation)
	}
	if got[3].Foundation != "upnp" {
		t.Errorf("Foundation = %q, want upnp", got[3].Foundation)
	}
}

func TestSetHarvestConcurrent(t *testing.T) {
	var arrived sync.WaitGroup
	arrived.Add(2)
	set := NewSet(nil,
		&rendezvousStrategy{
			fakeStrategy: fakeStrategy{name: "a", applicable: true, result: Resolved(pairOf("10.0.0.5", "203.0.113.9"))},
			arrived:      &arrived,
		},
		&rendezvousStrategy{
			fakeStrategy: fakeStrategy{name: "b", applicable: true, result: Resolved(pairOf("10.0.0.6", "198.51.100.7"))},
			arrived:      &arrived,
		},
	)

	got := set.Harvest(t.Context(), []Candidate{udpCandidate("10.0.0.5:5000"), udpCandidate("10.0.0.6:5000")})

	want := []string{"10.0.0.5:5000", "10.0.0.6:5000", "203.0.113.9:5000", "198.51.100.7:5000"}
	if !slices.Equal(addresses(got), want) {
		t.Errorf("Harvest() = %v, want %v", addresses(got), want)
	}
}

func TestSetStrategies(t *testing.T) {
	a := &fakeStrategy{name: "a"}
	b := &fakeStrategy{name: "b"}
	got := NewSet(nil, a, b).Strategies()
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("Strategies() = %v, want [a b]", got)
	}
}

func TestSetEmpty(t *testing.T) {
	locals := []Candidate{udpCandidate("10.0.0.5:5000")}
	if got := NewSet(nil).Harvest(t.Context(), locals); !slices.Equal(got, locals) {
		t.Errorf("Harvest() = %v, want %v", got, locals)
	}
}
