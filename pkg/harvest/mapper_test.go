package harvest

import (
	"slices"
	"testing"
)

func TestMapperRewritesFace(t *testing.T) {
	s := &fakeStrategy{
		name:       "aws",
		applicable: true,
		result:     Resolved(pairOf("10.0.0.5", "203.0.113.9")),
	}
	m := NewMapper(s, nil)

	got := m.Harvest(t.Context(), []Candidate{
		udpCandidate("10.0.0.5:5000"),
		udpCandidate("192.168.1.2:5000"),
	})

	if want := []string{"203.0.113.9:5000", "192.168.1.2:5000"}; !slices.Equal(addresses(got), want) {
		t.Fatalf("Harvest() = %v, want %v", addresses(got), want)
	}
	mapped := got[0]
	if mapped.Type != CandidateTypeMapped {
		t.Errorf("Type = %v, want %v", mapped.Type, CandidateTypeMapped)
	}
	if mapped.Base.AddrPort.String() != "10.0.0.5:5000" {
		t.Errorf("Base = %v, want 10.0.0.5:5000", mapped.Base)
	}
	if mapped.Foundation != "aws" {
		t.Errorf("Foundation = %q, want aws", mapped.Foundation)
	}
	if mapped.Address.Protocol != ProtocolUDP {
		t.Errorf("Protocol = %v, want udp", mapped.Address.Protocol)
	}
	if got[1].Type != CandidateTypeHost {
		t.Errorf("unmatched Type = %v, want host", got[1].Type)
	}
}

func TestMapperLeavesInputUnchanged(t *testing.T) {
	locals := []Candidate{udpCandidate("10.0.0.5:5000")}

	tests := []struct {
		name     string
		strategy *fakeStrategy
	}{
		{"not applicable", &fakeStrategy{result: Resolved(pairOf("10.0.0.5", "203.0.113.9"))}},
		{"unresolved", &fakeStrategy{applicable: true, result: Unavailable()}},
		{"unspecified face", &fakeStrategy{applicable: true, result: Resolved(pairOf("0.0.0.0", "203.0.113.9"))}},
		{"unspecified mask", &fakeStrategy{applicable: true, result: Resolved(pairOf("10.0.0.5", "0.0.0.0"))}},
		{"family mismatch", &fakeStrategy{applicable: true, result: Resolved(pairOf("10.0.0.5", "2001:db8::9"))}},
		{"missing mask", &fakeStrategy{applicable: true, result: Resolved(AddressPair{Face: mustAddrPort("10.0.0.5")})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewMapper(tt.strategy, nil).Harvest(t.Context(), locals)
			if !slices.Equal(got, locals) {
				t.Errorf("Harvest() = %v, want %v", got, locals)
			}
		})
	}
}

func TestMapperNotApplicableSkipsResolve(t *testing.T) {
	s := &fakeStrategy{result: Resolved(pairOf("10.0.0.5", "203.0.113.9"))}
	NewMapper(s, nil).Harvest(t.Context(), []Candidate{udpCandidate("10.0.0.5:5000")})
	if n := s.resolves.Load(); n != 0 {
		t.Errorf("Resolve() called %d times, want 0", n)
	}
}

func TestMapperPolicies(t *testing.T) {
	locals := []Candidate{
		udpCandidate("10.0.0.5:5000"),
		udpCandidate("10.0.0.5:5001"),
		udpCandidate("10.0.0.6:5000"),
	}

	tests := []struct {
		name   string
		pair   AddressPair
		policy RewritePolicy
		want   []string
	}{
		{
			name: "address only",
			pair: pairOf("10.0.0.5:5000", "203.0.113.9:6000"),
			want: []string{"203.0.113.9:5000", "203.0.113.9:5001", "10.0.0.6:5000"},
		},
		{
			name:   "match port",
			pair:   pairOf("10.0.0.5:5000", "203.0.113.9:6000"),
			policy: RewritePolicy{MatchPort: true},
			want:   []string{"203.0.113.9:6000", "10.0.0.5:5001", "10.0.0.6:5000"},
		},
		{
			name:   "match port without ports",
			pair:   pairOf("10.0.0.5", "203.0.113.9"),
			policy: RewritePolicy{MatchPort: true},
			want:   []string{"203.0.113.9:5000", "203.0.113.9:5001", "10.0.0.6:5000"},
		},
		{
			name:   "drop unmatched",
			pair:   pairOf("10.0.0.5", "203.0.113.9"),
			policy: RewritePolicy{Unmatched: Drop},
			want:   []string{"203.0.113.9:5000", "203.0.113.9:5001"},
		},
		{
			name:   "drop with port match",
			pair:   pairOf("10.0.0.5:5001", "203.0.113.9"),
			policy: RewritePolicy{MatchPort: true, Unmatched: Drop},
			want:   []string{"203.0.113.9:5001"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeStrategy{applicable: true, result: Resolved(tt.pair), policy: tt.policy}
			got := NewMapper(s, nil).Harvest(t.Context(), locals)
			if !slices.Equal(addresses(got), tt.want) {
				t.Errorf("Harvest() = %v, want %v", addresses(got), tt.want)
			}
		})
	}
}

func TestMapperIPv4MappedCandidate(t *testing.T) {
	s := &fakeStrategy{applicable: true, result: Resolved(pairOf("10.0.0.5", "203.0.113.9"))}
	local := HostCandidate(mustAddrPort("[::ffff:10.0.0.5]:5000"), ProtocolUDP)

	got := NewMapper(s, nil).Harvest(t.Context(), []Candidate{local})
	if len(got) != 1 || got[0].Address.AddrPort.String() != "203.0.113.9:5000" {
		t.Errorf("Harvest() = %v, want [203.0.113.9:5000]", addresses(got))
	}
}

func TestAddressPairValid(t *testing.T) {
	tests := []struct {
		pair AddressPair
		want bool
	}{
		{pairOf("10.0.0.5", "203.0.113.9"), true},
		{pairOf("2001:db8::5", "2001:db8::9"), true},
		{pairOf("10.0.0.5", "2001:db8::9"), false},
		{pairOf("::", "2001:db8::9"), false},
		{AddressPair{}, false},
	}
	for _, tt := range tests {
		if got := tt.pair.Valid(); got != tt.want {
			t.Errorf("%v -> %v Valid() = %v, want %v", tt.pair.Face, tt.pair.Mask, got, tt.want)
		}
	}
}
