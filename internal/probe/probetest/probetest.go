// Package probetest provides fakes for exercising probe.Checker without
// real DNS or remote hosts.
package probetest

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Normaleshok/domain-checker/internal/probe"
)

// Resolver resolves every host except the ones listed in Fail.
type Resolver struct {
	mu    sync.Mutex
	Fail  map[string]bool
	calls []string
}

func NewResolver(failing ...string) *Resolver {
	r := &Resolver{Fail: map[string]bool{}}
	for _, h := range failing {
		r.Fail[h] = true
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context, host string) error {
	r.mu.Lock()
	r.calls = append(r.calls, host)
	r.mu.Unlock()
	if r.Fail[host] || strings.Contains(host, "..") {
		return &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return nil
}

func (r *Resolver) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// RoutedHTTPChecker returns a checker whose connections all go to addr
// (host:port of an httptest server) regardless of the requested host.
func RoutedHTTPChecker(addr string, timeout time.Duration) *probe.HTTPChecker {
	h := probe.NewHTTPChecker(timeout, "probetest/1.0")
	var d net.Dialer
	h.Client = &http.Client{Transport: &http.Transport{
		DisableKeepAlives: true,
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return d.DialContext(ctx, network, addr)
		},
	}}
	return h
}
