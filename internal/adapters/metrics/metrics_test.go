package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheus_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg)

	m.MessageSent("prediffers", 10)
	m.MessageSent("prediffers", 5)
	m.MessageReceived("solvers", 7)
	m.ChunkSent(8)
	m.ChunkSent(100)
	m.WorkDomainProcessed("solve")
	m.SolveIteration("solve", false)
	m.SolveIteration("solve", true)
	m.StateTransition("initialized", "running")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messagesSent.WithLabelValues("prediffers")))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.bytesSent.WithLabelValues("prediffers")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messagesReceived.WithLabelValues("solvers")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.bytesReceived.WithLabelValues("solvers")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.chunksSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workDomains.WithLabelValues("solve")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.solveIterations.WithLabelValues("solve", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.solveIterations.WithLabelValues("solve", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("initialized", "running")))
}

func TestPrometheus_NamesAreNamespaced(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg)
	m.ChunkSent(1)

	n, err := testutil.GatherAndCount(reg, "distsolve_transport_chunks_sent_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNop(t *testing.T) {
	var n Nop
	n.MessageSent("p", 1)
	n.MessageReceived("p", 1)
	n.ChunkSent(1)
	n.WorkDomainProcessed("s")
	n.SolveIteration("s", true)
	n.StateTransition("a", "b")
}
