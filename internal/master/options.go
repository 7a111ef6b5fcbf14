package master

import (
	"github.com/bft-labs/distsolve/internal/ports"
	"github.com/bft-labs/distsolve/pkg/log"
)

// Option configures optional behavior of a Control.
type Option func(*options)

type options struct {
	logger        log.Logger
	metrics       ports.Metrics
	eventHandler  EventHandler
	maxIterations int
}

func defaultOptions() options {
	return options{
		logger:       log.NewNoopLogger(),
		metrics:      ports.NopMetrics{},
		eventHandler: BaseEventHandler{},
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m ports.Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithEventHandler sets a handler for master events.
func WithEventHandler(h EventHandler) Option {
	return func(o *options) {
		if h != nil {
			o.eventHandler = h
		}
	}
}

// WithMaxIterations caps the GetEquations/Solve rounds of one solve step.
// Zero, the default, leaves the loop unbounded.
func WithMaxIterations(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxIterations = n
		}
	}
}
