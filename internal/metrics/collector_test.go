package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Normaleshok/domain-checker/internal/domain"
)

func TestCollector_CountsOutcomes(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.ProbeStarted()
	c.ProbeFinished(domain.ProbeResult{DNS: domain.True, HTTP: domain.True}, 10*time.Millisecond)
	c.ProbeStarted()
	c.ProbeFinished(domain.ProbeResult{DNS: domain.False}, time.Millisecond)
	c.ProbeStarted()
	c.ProbeFinished(domain.ProbeResult{DNS: domain.False}, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.probesTotal.WithLabelValues("true", "true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.probesTotal.WithLabelValues("false", "unknown")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.inFlight))

	c.RecordBatch(true, time.Second)
	c.RecordBatch(false, time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.batchesTotal.WithLabelValues("failed")))

	c.SetPending(42)
	assert.Equal(t, 42.0, testutil.ToFloat64(c.domainsPending))
}

func TestNewCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollector(prometheus.NewRegistry())
		NewCollector(prometheus.NewRegistry())
	})
}
