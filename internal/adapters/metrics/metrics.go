// Package metrics implements ports.Metrics on top of Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bft-labs/distsolve/internal/ports"
)

// Namespace prefixes every metric name.
const Namespace = "distsolve"

// Prometheus records protocol activity as Prometheus series.
type Prometheus struct {
	messagesSent     *prometheus.CounterVec
	bytesSent        *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	bytesReceived    *prometheus.CounterVec
	chunksSent       prometheus.Counter
	chunkBytes       prometheus.Histogram
	workDomains      *prometheus.CounterVec
	solveIterations  *prometheus.CounterVec
	transitions      *prometheus.CounterVec
}

// NewPrometheus registers the collectors with reg. A nil reg uses the
// default registerer.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Prometheus{
		messagesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "pool", Name: "messages_sent_total",
			Help: "Messages written to pool members.",
		}, []string{"pool"}),
		bytesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "pool", Name: "bytes_sent_total",
			Help: "Payload bytes written to pool members.",
		}, []string{"pool"}),
		messagesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "pool", Name: "messages_received_total",
			Help: "Messages read from pool members.",
		}, []string{"pool"}),
		bytesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "pool", Name: "bytes_received_total",
			Help: "Payload bytes read from pool members.",
		}, []string{"pool"}),
		chunksSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "transport", Name: "chunks_sent_total",
			Help: "Link transfers made by the framing layer, headers included.",
		}),
		chunkBytes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace, Subsystem: "transport", Name: "chunk_bytes",
			Help:    "Size of individual link transfers.",
			Buckets: prometheus.ExponentialBuckets(8, 8, 10),
		}),
		workDomains: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "master", Name: "work_domains_total",
			Help: "Partitions fully processed.",
		}, []string{"step"}),
		solveIterations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "master", Name: "solve_iterations_total",
			Help: "GetEquations/Solve rounds, by convergence outcome.",
		}, []string{"step", "converged"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "master", Name: "state_transitions_total",
			Help: "Master lifecycle transitions.",
		}, []string{"from", "to"}),
	}
}

func (p *Prometheus) MessageSent(pool string, bytes int) {
	p.messagesSent.WithLabelValues(pool).Inc()
	p.bytesSent.WithLabelValues(pool).Add(float64(bytes))
}

func (p *Prometheus) MessageReceived(pool string, bytes int) {
	p.messagesReceived.WithLabelValues(pool).Inc()
	p.bytesReceived.WithLabelValues(pool).Add(float64(bytes))
}

func (p *Prometheus) ChunkSent(bytes int) {
	p.chunksSent.Inc()
	p.chunkBytes.Observe(float64(bytes))
}

func (p *Prometheus) WorkDomainProcessed(step string) {
	p.workDomains.WithLabelValues(step).Inc()
}

func (p *Prometheus) SolveIteration(step string, converged bool) {
	p.solveIterations.WithLabelValues(step, strconv.FormatBool(converged)).Inc()
}

func (p *Prometheus) StateTransition(from, to string) {
	p.transitions.WithLabelValues(from, to).Inc()
}

// Nop discards everything.
type Nop = ports.NopMetrics

var (
	_ ports.Metrics = (*Prometheus)(nil)
	_ ports.Metrics = Nop{}
)
