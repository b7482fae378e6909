package discovery

import (
	"context"
	"net"
	"testing"
	"time"
)

func newMockResolver(t *testing.T, mock *MockMDNSResolver) *Resolver {
	t.Helper()
	r, err := NewResolver(ResolverConfig{
		MDNSResolver:  mock,
		BrowseTimeout: 200 * time.Millisecond,
		LookupTimeout: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	return r
}

func TestResolverBrowse(t *testing.T) {
	mock := NewMockMDNSResolver()
	mock.RegisterService(ServiceSTUN, MockServerService(ServiceTypeSTUN, "edge-1", 3478,
		net.ParseIP("192.168.1.5"), net.ParseIP("2001:db8::5")))
	mock.RegisterService(ServiceSTUN, MockServerService(ServiceTypeSTUN, "edge-2", 3479, net.ParseIP("192.168.1.6")))
	mock.RegisterService(ServiceTURN, MockServerService(ServiceTypeTURN, "relay", 3478, net.ParseIP("192.168.1.7")))

	r := newMockResolver(t, mock)

	got, err := r.BrowseAll(t.Context(), ServiceTypeSTUN)
	if err != nil {
		t.Fatalf("BrowseAll() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("BrowseAll() = %d services, want 2", len(got))
	}

	first := got[0]
	if first.InstanceName != "edge-1" || first.Port != 3478 || first.ServiceType != ServiceTypeSTUN {
		t.Errorf("first = %+v", first)
	}
	if ip := first.PreferredIP(); ip.String() != "2001:db8::5" {
		t.Errorf("PreferredIP() = %v, want the global address 2001:db8::5", ip)
	}
	if len(first.IPv4Addresses()) != 1 || len(first.IPv6Addresses()) != 1 {
		t.Errorf("IPv4Addresses() = %v, IPv6Addresses() = %v", first.IPv4Addresses(), first.IPv6Addresses())
	}
	if first.Text[TXTKeySoftware] != "mock" {
		t.Errorf("Text = %v, want software=mock", first.Text)
	}
}

func TestResolverBrowseInvalid(t *testing.T) {
	r := newMockResolver(t, NewMockMDNSResolver())
	if _, err := r.Browse(t.Context(), ServiceTypeUnknown); err != ErrInvalidServiceType {
		t.Errorf("Browse() error = %v, want %v", err, ErrInvalidServiceType)
	}
}

func TestResolverBrowseCancelled(t *testing.T) {
	mock := NewMockMDNSResolver()
	mock.RegisterService(ServiceSTUN, MockServerService(ServiceTypeSTUN, "edge", 3478, net.ParseIP("192.168.1.5")))
	r := newMockResolver(t, mock)

	ctx, cancel := context.WithCancel(t.Context())
	ch, err := r.Browse(ctx, ServiceTypeSTUN)
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	cancel()

	select {
	case <-drain(ch):
	case <-time.After(time.Second):
		t.Fatal("Browse() channel not closed after cancel")
	}
}

func drain(ch <-chan ResolvedService) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()
	return done
}

func TestResolverLookup(t *testing.T) {
	mock := NewMockMDNSResolver()
	mock.RegisterService(ServiceSTUN, MockServerService(ServiceTypeSTUN, "edge-1", 3478, net.ParseIP("192.168.1.5")))
	mock.RegisterService(ServiceSTUN, MockServerService(ServiceTypeSTUN, "edge-2", 3479, net.ParseIP("192.168.1.6")))
	r := newMockResolver(t, mock)

	svc, err := r.Lookup(t.Context(), ServiceTypeSTUN, "edge-2")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if svc.Port != 3479 {
		t.Errorf("Port = %d, want 3479", svc.Port)
	}

	if _, err := r.Lookup(t.Context(), ServiceTypeSTUN, "missing"); err != ErrServiceNotFound {
		t.Errorf("Lookup(missing) error = %v, want %v", err, ErrServiceNotFound)
	}
	if _, err := r.Lookup(t.Context(), ServiceTypeUnknown, "edge-1"); err != ErrInvalidServiceType {
		t.Errorf("Lookup(unknown) error = %v, want %v", err, ErrInvalidServiceType)
	}
}
