package probe_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Normaleshok/domain-checker/internal/domain"
	"github.com/Normaleshok/domain-checker/internal/probe"
	"github.com/Normaleshok/domain-checker/internal/probe/probetest"
)

func TestChecker_ExampleDomains(t *testing.T) {
	var hits atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.Host {
		case "a.example":
			w.WriteHeader(200)
		case "c.example":
			w.WriteHeader(503)
		default:
			time.Sleep(300 * time.Millisecond)
		}
	}))
	defer s.Close()

	res := probetest.NewResolver()
	chk := probe.NewChecker(res, probetest.RoutedHTTPChecker(strings.TrimPrefix(s.URL, "http://"), 100*time.Millisecond), time.Second)
	ctx := context.Background()

	a := chk.Probe(ctx, "a.example")
	assert.Equal(t, domain.True, a.DNS)
	assert.Equal(t, domain.True, a.HTTP)
	assert.Equal(t, 200, a.StatusCode)
	assert.False(t, a.CheckedAt.IsZero())

	b := chk.Probe(ctx, "b.example")
	assert.Equal(t, domain.True, b.DNS)
	assert.Equal(t, domain.Unknown, b.HTTP, "both schemes timed out")

	c := chk.Probe(ctx, "c.example")
	assert.Equal(t, domain.False, c.HTTP)

	before := hits.Load()
	bad := chk.Probe(ctx, "bad..domain")
	assert.Equal(t, domain.False, bad.DNS)
	assert.Equal(t, domain.Unknown, bad.HTTP)
	assert.Equal(t, "dns=NXDOMAIN", bad.Reason)
	assert.Equal(t, before, hits.Load(), "no HTTP attempt without DNS")
}

type slowResolver struct{}

func (slowResolver) Resolve(ctx context.Context, host string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestChecker_DNSTimeoutIsBounded(t *testing.T) {
	chk := probe.NewChecker(slowResolver{}, probe.NewHTTPChecker(time.Second, "ua"), 30*time.Millisecond)

	start := time.Now()
	out := chk.Probe(context.Background(), "slow.example")
	require.Less(t, time.Since(start), time.Second)
	assert.Equal(t, domain.False, out.DNS)
	assert.Equal(t, domain.Unknown, out.HTTP)
	assert.Equal(t, "dns=SERVFAIL_or_TIMEOUT", out.Reason)
}
