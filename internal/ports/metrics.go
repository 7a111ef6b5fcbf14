package ports

// Metrics records protocol activity. Implementations must be safe for
// concurrent use.
type Metrics interface {
	// MessageSent records one message of size bytes written to a pool member.
	MessageSent(pool string, bytes int)

	// MessageReceived records one message of size bytes read from a pool member.
	MessageReceived(pool string, bytes int)

	// ChunkSent records one link transfer made by the framing layer.
	ChunkSent(bytes int)

	// WorkDomainProcessed records a completed partition.
	WorkDomainProcessed(step string)

	// SolveIteration records one GetEquations/Solve round.
	SolveIteration(step string, converged bool)

	// StateTransition records a master lifecycle change.
	StateTransition(from, to string)
}

// NopMetrics discards everything. It is the default sink wherever no
// Metrics is configured.
type NopMetrics struct{}

func (NopMetrics) MessageSent(string, int)        {}
func (NopMetrics) MessageReceived(string, int)    {}
func (NopMetrics) ChunkSent(int)                  {}
func (NopMetrics) WorkDomainProcessed(string)     {}
func (NopMetrics) SolveIteration(string, bool)    {}
func (NopMetrics) StateTransition(string, string) {}

var _ Metrics = NopMetrics{}
