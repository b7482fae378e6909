package harvest

import (
	"context"
	"net/netip"
	"sync/atomic"
	"testing"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/vnet"
)

type fakeStrategy struct {
	name       string
	applicable bool
	result     Result
	policy     RewritePolicy
	resolves   atomic.Int32
}

func (f *fakeStrategy) Name() string { return f.name }
func (f *fakeStrategy) Applicable(context.Context) bool { return f.applicable }
func (f *fakeStrategy) Policy() RewritePolicy { return f.policy }

func (f *fakeStrategy) Resolve(context.Context) Result {
	f.resolves.Add(1)
	return f.result
}

func pairOf(face, mask string) AddressPair {
	return AddressPair{Face: mustAddrPort(face), Mask: mustAddrPort(mask)}
}

// mustAddrPort accepts "addr" or "addr:port".
func mustAddrPort(s string) netip.AddrPort {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap
	}
	return netip.AddrPortFrom(netip.MustParseAddr(s), 0)
}

func udpCandidate(s string) Candidate {
	return HostCandidate(netip.MustParseAddrPort(s), ProtocolUDP)
}

func addresses(cs []Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Address.AddrPort.String())
	}
	return out
}

func newRoutedNet(t *testing.T, ips ...string) *vnet.Net {
	t.Helper()

	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "10.0.0.0/24",
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	n, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: ips})
	if err != nil {
		t.Fatalf("NewNet() error = %v", err)
	}
	if err := router.AddNet(n); err != nil {
		t.Fatalf("AddNet() error = %v", err)
	}
	if err := router.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { router.Stop() })
	return n
}
