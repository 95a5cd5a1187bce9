package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

const errInvalidName = "invalid domain name"

// Resolver reports whether host has a usable address record.
type Resolver interface {
	Resolve(ctx context.Context, host string) error
}

// SystemResolver uses the OS resolver configuration.
type SystemResolver struct {
	R *net.Resolver
}

func NewSystemResolver() *SystemResolver {
	return &SystemResolver{R: &net.Resolver{}}
}

func (s *SystemResolver) Resolve(ctx context.Context, host string) error {
	addrs, err := s.R.LookupHost(ctx, host)
	if err != nil {
		return err
	}
	if len(addrs) == 0 {
		return &net.DNSError{Err: "no addresses", Name: host, IsNotFound: true}
	}
	return nil
}

// ServerResolver queries the given nameservers directly, A first then
// AAAA. Servers are tried in order until one gives a definitive answer.
type ServerResolver struct {
	Servers []string // host:port
	Client  *dns.Client
}

func NewServerResolver(servers []string, timeout time.Duration) *ServerResolver {
	return &ServerResolver{
		Servers: servers,
		Client:  &dns.Client{Net: "udp", Timeout: timeout},
	}
}

func (s *ServerResolver) Resolve(ctx context.Context, host string) error {
	if net.ParseIP(host) != nil {
		return nil
	}
	if _, ok := dns.IsDomainName(host); !ok {
		return &net.DNSError{Err: errInvalidName, Name: host, IsNotFound: true}
	}
	var lastErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		ok, err := s.query(ctx, host, qtype)
		if ok {
			return nil
		}
		if err != nil {
			var de *net.DNSError
			if errors.As(err, &de) && de.IsNotFound {
				return err
			}
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = &net.DNSError{Err: "no address records", Name: host, IsNotFound: true}
	}
	return lastErr
}

func (s *ServerResolver) query(ctx context.Context, host string, qtype uint16) (bool, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), qtype)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range s.Servers {
		in, _, err := s.Client.ExchangeContext(ctx, m, server)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			continue
		}
		switch in.Rcode {
		case dns.RcodeSuccess:
			for _, rr := range in.Answer {
				switch rr.(type) {
				case *dns.A, *dns.AAAA:
					return true, nil
				}
			}
			return false, nil
		case dns.RcodeNameError:
			return false, &net.DNSError{Err: "NXDOMAIN", Name: host, Server: server, IsNotFound: true}
		default:
			lastErr = &net.DNSError{
				Err:         fmt.Sprintf("rcode %s", dns.RcodeToString[in.Rcode]),
				Name:        host,
				Server:      server,
				IsTemporary: true,
			}
		}
	}
	return false, lastErr
}

// Classify labels a resolution error for logs.
func Classify(err error) string {
	if err == nil {
		return "RESOLVES"
	}
	var de *net.DNSError
	if errors.As(err, &de) {
		switch {
		case de.Err == errInvalidName:
			return "INVALID_NAME"
		case de.IsNotFound:
			return "NXDOMAIN"
		case de.IsTimeout || de.IsTemporary:
			return "SERVFAIL_or_TIMEOUT"
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "SERVFAIL_or_TIMEOUT"
	}
	return "ERROR"
}
