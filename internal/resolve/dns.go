package resolve

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DNSLookuper queries one DNS server directly with github.com/miekg/dns,
// bypassing the system resolver configuration.
type DNSLookuper struct {
	server string
	client *dns.Client
}

// NewDNSLookuper creates a lookuper for server ("host" or "host:port").
func NewDNSLookuper(server string) *DNSLookuper {
	server = strings.TrimSpace(server)
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &DNSLookuper{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: 5 * time.Second},
	}
}

// LookupNetIP queries A and/or AAAA records depending on network ("ip",
// "ip4" or "ip6"). NXDOMAIN and other failure codes are errors.
func (l *DNSLookuper) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	var qtypes []uint16
	switch network {
	case "ip4":
		qtypes = []uint16{dns.TypeA}
	case "ip6":
		qtypes = []uint16{dns.TypeAAAA}
	default:
		qtypes = []uint16{dns.TypeA, dns.TypeAAAA}
	}

	var addrs []netip.Addr
	for _, qtype := range qtypes {
		found, err := l.query(ctx, host, qtype)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, found...)
	}
	return addrs, nil
}

func (l *DNSLookuper) query(ctx context.Context, host string, qtype uint16) ([]netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), qtype)
	m.RecursionDesired = true

	resp, _, err := l.client.ExchangeContext(ctx, m, l.server)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", l.server, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%s %s: %s", dns.TypeToString[qtype], host, dns.RcodeToString[resp.Rcode])
	}

	var addrs []netip.Addr
	for _, rr := range resp.Answer {
		var ip net.IP
		switch rec := rr.(type) {
		case *dns.A:
			ip = rec.A
		case *dns.AAAA:
			ip = rec.AAAA
		default:
			continue
		}
		if addr, ok := netip.AddrFromSlice(ip); ok {
			addrs = append(addrs, addr.Unmap())
		}
	}
	return addrs, nil
}
