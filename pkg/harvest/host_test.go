package harvest

import (
	"net"
	"net/netip"
	"slices"
	"testing"

	"github.com/backkem/traverse/pkg/config"
)

func TestFilter(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.Harvest
		iface string
		addr  string
		want  bool
	}{
		{"plain v4", config.Harvest{}, "eth0", "10.0.0.5", true},
		{"loopback", config.Harvest{}, "lo", "127.0.0.1", false},
		{"unspecified", config.Harvest{}, "eth0", "0.0.0.0", false},
		{"v6 disabled", config.Harvest{}, "eth0", "2001:db8::5", false},
		{"v6 enabled", config.Harvest{UseIPv6: true}, "eth0", "2001:db8::5", true},
		{"link-local disabled", config.Harvest{UseIPv6: true}, "eth0", "fe80::1", false},
		{"link-local enabled", config.Harvest{UseIPv6: true, UseLinkLocal: true}, "eth0", "fe80::1", true},
		{"v4 link-local", config.Harvest{}, "eth0", "169.254.1.1", false},
		{"allowed interface", config.Harvest{AllowedInterfaces: []string{"eth1"}}, "eth0", "10.0.0.5", false},
		{"blocked interface", config.Harvest{BlockedInterfaces: []string{"eth0"}}, "eth0", "10.0.0.5", false},
		{
			"allowed address",
			config.Harvest{AllowedAddresses: []netip.Addr{netip.MustParseAddr("10.0.0.6")}},
			"eth0", "10.0.0.5", false,
		},
		{
			"blocked address",
			config.Harvest{BlockedAddresses: []netip.Addr{netip.MustParseAddr("10.0.0.5")}},
			"eth0", "10.0.0.5", false,
		},
		{"mapped v4", config.Harvest{}, "eth0", "::ffff:10.0.0.5", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(tt.cfg)(tt.iface, netip.MustParseAddr(tt.addr))
			if got != tt.want {
				t.Errorf("Filter()(%s, %s) = %v, want %v", tt.iface, tt.addr, got, tt.want)
			}
		})
	}
}

func TestHostCandidates(t *testing.T) {
	n := newRoutedNet(t, "10.0.0.5", "10.0.0.6")

	got, err := HostCandidates(n, config.Harvest{}, 3478)
	if err != nil {
		t.Fatalf("HostCandidates() error = %v", err)
	}
	if want := []string{"10.0.0.5:3478", "10.0.0.6:3478"}; !slices.Equal(addresses(got), want) {
		t.Errorf("HostCandidates() = %v, want %v", addresses(got), want)
	}

	blocked := config.Harvest{BlockedAddresses: []netip.Addr{netip.MustParseAddr("10.0.0.5")}}
	got, err = HostCandidates(n, blocked, 3478)
	if err != nil {
		t.Fatalf("HostCandidates() error = %v", err)
	}
	if want := []string{"10.0.0.6:3478"}; !slices.Equal(addresses(got), want) {
		t.Errorf("HostCandidates(blocked) = %v, want %v", addresses(got), want)
	}
}

func TestCandidatesFromAddrs(t *testing.T) {
	got := CandidatesFromAddrs([]net.Addr{
		&net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 5000},
		&net.TCPAddr{IP: net.ParseIP("10.0.0.5"), Port: 443},
		&net.IPAddr{IP: net.ParseIP("10.0.0.5")},
	})
	if len(got) != 2 {
		t.Fatalf("CandidatesFromAddrs() = %v, want 2 candidates", got)
	}
	if got[0].Address.Protocol != ProtocolUDP || got[1].Address.Protocol != ProtocolTCP {
		t.Errorf("protocols = %v, %v", got[0].Address.Protocol, got[1].Address.Protocol)
	}
	if got[0].Address.String() != "10.0.0.5:5000/udp" {
		t.Errorf("String() = %q, want 10.0.0.5:5000/udp", got[0].Address.String())
	}
}
