package probe

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startDNS serves a.example (A), v6.example (AAAA only), and NXDOMAIN for
// everything else.
func startDNS(t *testing.T) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		q := r.Question[0]
		switch {
		case q.Name == "a.example." && q.Qtype == dns.TypeA:
			rr, _ := dns.NewRR("a.example. 60 IN A 192.0.2.1")
			m.Answer = append(m.Answer, rr)
		case q.Name == "v6.example." && q.Qtype == dns.TypeAAAA:
			rr, _ := dns.NewRR("v6.example. 60 IN AAAA 2001:db8::1")
			m.Answer = append(m.Answer, rr)
		case q.Name == "a.example." || q.Name == "v6.example.":
			// NOERROR, empty answer
		default:
			m.Rcode = dns.RcodeNameError
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestServerResolver(t *testing.T) {
	addr := startDNS(t)
	r := NewServerResolver([]string{addr}, time.Second)
	ctx := context.Background()

	assert.NoError(t, r.Resolve(ctx, "a.example"))
	assert.NoError(t, r.Resolve(ctx, "v6.example"))
	assert.NoError(t, r.Resolve(ctx, "192.0.2.7"))

	err := r.Resolve(ctx, "missing.example")
	require.Error(t, err)
	assert.Equal(t, "NXDOMAIN", Classify(err))

	err = r.Resolve(ctx, "bad..domain")
	require.Error(t, err)
	assert.Equal(t, "INVALID_NAME", Classify(err))
}

func TestServerResolver_SkipsDeadServer(t *testing.T) {
	addr := startDNS(t)
	// Nothing listens on the discard port; the UDP read times out.
	r := NewServerResolver([]string{"127.0.0.1:9", addr}, 200*time.Millisecond)
	assert.NoError(t, r.Resolve(context.Background(), "a.example"))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "RESOLVES", Classify(nil))
	assert.Equal(t, "SERVFAIL_or_TIMEOUT", Classify(&net.DNSError{IsTimeout: true}))
	assert.Equal(t, "SERVFAIL_or_TIMEOUT", Classify(context.DeadlineExceeded))
	assert.Equal(t, "ERROR", Classify(errors.New("boom")))
}
