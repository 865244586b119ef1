package handlers

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// dnsResolver performs the forward/reverse lookups HelloHandler and
// DomainValidatorHandler need, grounded on
// rsmtpd.validators.domain.dns.by_name/by_ip/mx_records, reimplemented
// against github.com/miekg/dns instead of Python's socket-based
// resolver.
type dnsResolver struct {
	client  *dns.Client
	servers []string
}

func newDNSResolver() *dnsResolver {
	servers := resolverServers()
	return &dnsResolver{
		client:  &dns.Client{Timeout: 3 * time.Second},
		servers: servers,
	}
}

func resolverServers() []string {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return []string{"127.0.0.1:53"}
	}
	servers := make([]string, len(cfg.Servers))
	for i, s := range cfg.Servers {
		servers[i] = net.JoinHostPort(s, cfg.Port)
	}
	return servers
}

func (r *dnsResolver) exchange(m *dns.Msg) (*dns.Msg, error) {
	var lastErr error
	for _, server := range r.servers {
		resp, _, err := r.client.Exchange(m, server)
		if err == nil && resp != nil {
			return resp, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no DNS servers configured")
	}
	return nil, lastErr
}

// byName resolves name's A records and reports whether clientIP appears
// among them, matching rsmtpd's forward-confirmation check used to
// validate an EHLO argument.
func (r *dnsResolver) byName(name, clientIP string) string {
	fqdn := dns.Fqdn(name)
	m := new(dns.Msg)
	m.SetQuestion(fqdn, dns.TypeA)

	resp, err := r.exchange(m)
	if err != nil {
		return ""
	}

	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			if a.A.String() == clientIP {
				return clientIP
			}
		}
	}
	return ""
}

// byIP performs a reverse (PTR) lookup of ip, falling back to def if
// none is found.
func (r *dnsResolver) byIP(ip, def string) string {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return def
	}

	m := new(dns.Msg)
	m.SetQuestion(arpa, dns.TypePTR)

	resp, err := r.exchange(m)
	if err != nil {
		return def
	}

	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, ".")
		}
	}
	return def
}

// mxRecords returns the MX target hostnames for domain, in priority
// order.
func (r *dnsResolver) mxRecords(domain string) []string {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), dns.TypeMX)

	resp, err := r.exchange(m)
	if err != nil {
		return nil
	}

	var hosts []string
	for _, rr := range resp.Answer {
		if mx, ok := rr.(*dns.MX); ok {
			hosts = append(hosts, strings.TrimSuffix(mx.Mx, "."))
		}
	}
	return hosts
}
