package discovery

import (
	"context"
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DefaultResolvConf is where the system DNS servers are read from when
// SRVConfig.Server is empty.
const DefaultResolvConf = "/etc/resolv.conf"

// SRVConfig configures unicast SRV lookups.
type SRVConfig struct {
	// Server is the DNS server as host:port. If empty, the first
	// nameserver of ResolvConf is used.
	Server string

	// ResolvConf is the resolver configuration file.
	// Default: DefaultResolvConf
	ResolvConf string

	// Net is "udp" or "tcp". Default: "udp"
	Net string
}

type srvResolver struct {
	config SRVConfig
	client *dns.Client
}

func newSRVResolver(config SRVConfig, timeout time.Duration) *srvResolver {
	if config.ResolvConf == "" {
		config.ResolvConf = DefaultResolvConf
	}
	if config.Net == "" {
		config.Net = "udp"
	}
	return &srvResolver{
		config: config,
		client: &dns.Client{Net: config.Net, Timeout: timeout},
	}
}

func (s *srvResolver) server() (string, error) {
	if s.config.Server != "" {
		return s.config.Server, nil
	}
	cc, err := dns.ClientConfigFromFile(s.config.ResolvConf)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoDNSServer, err)
	}
	if len(cc.Servers) == 0 {
		return "", ErrNoDNSServer
	}
	return net.JoinHostPort(cc.Servers[0], cc.Port), nil
}

func (s *srvResolver) lookup(ctx context.Context, serviceType ServiceType, domain string) ([]ResolvedService, error) {
	server, err := s.server()
	if err != nil {
		return nil, err
	}

	name := dns.Fqdn(serviceType.ServiceString() + "." + strings.TrimSuffix(domain, "."))
	in, err := s.exchange(ctx, server, name, dns.TypeSRV)
	if err != nil {
		return nil, err
	}

	var records []*dns.SRV
	for _, rr := range in.Answer {
		if srv, ok := rr.(*dns.SRV); ok {
			records = append(records, srv)
		}
	}
	if len(records) == 0 {
		return nil, ErrServiceNotFound
	}
	slices.SortStableFunc(records, func(a, b *dns.SRV) int {
		if a.Priority != b.Priority {
			return int(a.Priority) - int(b.Priority)
		}
		return int(b.Weight) - int(a.Weight)
	})

	glue := additionalAddresses(in.Extra)

	out := make([]ResolvedService, 0, len(records))
	for _, srv := range records {
		// "." means the service is decidedly not available (RFC 2782).
		if srv.Target == "." {
			continue
		}
		ips := glue[strings.ToLower(srv.Target)]
		if len(ips) == 0 {
			ips = s.resolveTarget(ctx, server, srv.Target)
		}
		if len(ips) == 0 {
			continue
		}
		out = append(out, ResolvedService{
			ServiceType:  serviceType,
			InstanceName: srv.Target,
			HostName:     srv.Target,
			Port:         int(srv.Port),
			Priority:     srv.Priority,
			Weight:       srv.Weight,
			IPs:          SortIPsByPreference(ips),
		})
	}
	if len(out) == 0 {
		return nil, ErrServiceNotFound
	}
	return out, nil
}

// resolveTarget queries A and AAAA records for a target missing from the
// additional section. Failures yield no addresses.
func (s *srvResolver) resolveTarget(ctx context.Context, server, target string) []net.IP {
	var ips []net.IP
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		in, err := s.exchange(ctx, server, target, qtype)
		if err != nil {
			continue
		}
		for _, ipList := range additionalAddresses(in.Answer) {
			ips = append(ips, ipList...)
		}
	}
	return ips
}

func (s *srvResolver) exchange(ctx context.Context, server, name string, qtype uint16) (*dns.Msg, error) {
	m := new(dns.Msg)
	m.SetQuestion(name, qtype)
	m.RecursionDesired = true

	in, _, err := s.client.ExchangeContext(ctx, m, server)
	if err != nil {
		return nil, err
	}
	switch in.Rcode {
	case dns.RcodeSuccess:
		return in, nil
	case dns.RcodeNameError:
		return nil, ErrServiceNotFound
	default:
		return nil, fmt.Errorf("discovery: %s %s: %s", dns.TypeToString[qtype], name, dns.RcodeToString[in.Rcode])
	}
}

// additionalAddresses groups A and AAAA records by lower-cased owner name.
func additionalAddresses(rrs []dns.RR) map[string][]net.IP {
	out := make(map[string][]net.IP)
	for _, rr := range rrs {
		switch v := rr.(type) {
		case *dns.A:
			name := strings.ToLower(v.Hdr.Name)
			out[name] = append(out[name], v.A)
		case *dns.AAAA:
			name := strings.ToLower(v.Hdr.Name)
			out[name] = append(out[name], v.AAAA)
		}
	}
	return out
}
