package harvest

import (
	"context"
	"errors"
	"net"
	"slices"
	"sync"
	"testing"
)

type fakeBinder struct {
	local  net.Addr
	mapped map[string]*net.UDPAddr

	mu    sync.Mutex
	asked []string
}

func (b *fakeBinder) LocalAddr() net.Addr { return b.local }

func (b *fakeBinder) Binding(_ context.Context, server net.Addr) (*net.UDPAddr, error) {
	b.mu.Lock()
	b.asked = append(b.asked, server.String())
	b.mu.Unlock()

	if a, ok := b.mapped[server.String()]; ok {
		return a, nil
	}
	return nil, errors.New("timeout")
}

func TestSTUNMappingFirstAnswerWins(t *testing.T) {
	binder := &fakeBinder{
		local: &net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 5000},
		mapped: map[string]*net.UDPAddr{
			"198.51.100.2:3478": {IP: net.ParseIP("203.0.113.9"), Port: 6000},
			"198.51.100.3:3479": {IP: net.ParseIP("203.0.113.10"), Port: 6001},
		},
	}
	s, err := NewSTUNMapping(STUNMappingConfig{
		Binder:  binder,
		Servers: []string{"198.51.100.1", "198.51.100.2", "198.51.100.3:3479"},
	})
	if err != nil {
		t.Fatalf("NewSTUNMapping() error = %v", err)
	}
	if !s.Applicable(t.Context()) {
		t.Fatal("Applicable() = false with servers configured")
	}

	got := NewMapper(s, nil).Harvest(t.Context(), []Candidate{
		udpCandidate("10.0.0.5:5000"),
		udpCandidate("10.0.0.5:5001"),
	})
	if want := []string{"203.0.113.9:6000", "10.0.0.5:5001"}; !slices.Equal(addresses(got), want) {
		t.Errorf("Harvest() = %v, want %v", addresses(got), want)
	}

	s.Resolve(t.Context())
	if want := []string{"198.51.100.1:3478", "198.51.100.2:3478"}; !slices.Equal(binder.asked, want) {
		t.Errorf("servers asked = %v, want %v", binder.asked, want)
	}
}

func TestSTUNMappingNoAnswer(t *testing.T) {
	binder := &fakeBinder{local: &net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 5000}}
	s, err := NewSTUNMapping(STUNMappingConfig{Binder: binder, Servers: []string{"198.51.100.1"}})
	if err != nil {
		t.Fatalf("NewSTUNMapping() error = %v", err)
	}
	if _, ok := s.Resolve(t.Context()).Pair(); ok {
		t.Error("Resolve() resolved without an answer")
	}
}

func TestSTUNMappingWildcardBind(t *testing.T) {
	n := newRoutedNet(t, "10.0.0.5")
	binder := &fakeBinder{
		local: &net.UDPAddr{IP: net.IPv4zero, Port: 5000},
		mapped: map[string]*net.UDPAddr{
			"10.0.0.9:3478": {IP: net.ParseIP("203.0.113.9"), Port: 6000},
		},
	}
	s, err := NewSTUNMapping(STUNMappingConfig{Binder: binder, Servers: []string{"10.0.0.9"}, Net: n})
	if err != nil {
		t.Fatalf("NewSTUNMapping() error = %v", err)
	}

	pair, ok := s.Resolve(t.Context()).Pair()
	if !ok {
		t.Fatal("Resolve() unavailable")
	}
	if pair.Face.String() != "10.0.0.5:5000" {
		t.Errorf("Face = %v, want 10.0.0.5:5000", pair.Face)
	}
}

func TestNewSTUNMappingRequiresBinder(t *testing.T) {
	if _, err := NewSTUNMapping(STUNMappingConfig{}); !errors.Is(err, ErrNoBinder) {
		t.Errorf("NewSTUNMapping() without binder error = %v, want %v", err, ErrNoBinder)
	}
	s, err := NewSTUNMapping(STUNMappingConfig{Binder: &fakeBinder{}})
	if err != nil {
		t.Fatalf("NewSTUNMapping() error = %v", err)
	}
	if s.Applicable(t.Context()) {
		t.Error("Applicable() = true without servers")
	}
}
