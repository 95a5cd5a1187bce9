package probe

import (
	"context"
	"time"

	"github.com/Normaleshok/domain-checker/internal/domain"
)

// Prober checks a single domain. Implementations never return errors;
// failures are encoded in the result fields.
type Prober interface {
	Probe(ctx context.Context, d domain.Domain) domain.ProbeResult
}

// Checker gates the HTTP check on DNS resolution.
type Checker struct {
	Resolver   Resolver
	HTTP       *HTTPChecker
	DNSTimeout time.Duration
}

func NewChecker(r Resolver, h *HTTPChecker, dnsTimeout time.Duration) *Checker {
	return &Checker{Resolver: r, HTTP: h, DNSTimeout: dnsTimeout}
}

func (c *Checker) Probe(ctx context.Context, d domain.Domain) (res domain.ProbeResult) {
	res.Domain = d
	defer func() { res.CheckedAt = time.Now().UTC() }()

	dctx, cancel := context.WithTimeout(ctx, c.DNSTimeout)
	err := c.Resolver.Resolve(dctx, string(d))
	cancel()
	if err != nil {
		res.DNS = domain.False
		res.Reason = "dns=" + Classify(err)
		return res
	}
	res.DNS = domain.True

	out := c.HTTP.Check(ctx, string(d))
	res.Scheme = out.Scheme
	res.Reason = out.Reason
	if out.Reached {
		res.HTTP = domain.TriOf(out.Up)
		res.StatusCode = out.StatusCode
	}
	return res
}
