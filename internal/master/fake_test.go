package master

import (
	"context"
	"fmt"
	"sync"

	"github.com/bft-labs/distsolve/internal/codec"
	"github.com/bft-labs/distsolve/internal/domain"
)

// journal is the ordered record of every pool call, shared by both pools.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

func (j *journal) snapshot() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func (j *journal) reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = nil
}

// scriptedPool answers like a well-behaved worker pool: acks for plain
// requests, ParmInfo for a step, equations for GetEquations and, on the
// solver, a Solve result that converges after convergeAfter rounds.
type scriptedPool struct {
	tag  string
	size int
	log  *journal

	last          []domain.Operation
	rounds        int
	convergeAfter int
	failRead      map[int]error
	wrongSolveOp  bool
}

func newScriptedPool(tag string, size int, log *journal) *scriptedPool {
	return &scriptedPool{
		tag:           tag,
		size:          size,
		log:           log,
		last:          make([]domain.Operation, size),
		convergeAfter: 1,
		failRead:      map[int]error{},
	}
}

func (p *scriptedPool) Name() string { return p.tag }
func (p *scriptedPool) Size() int    { return p.size }

func (p *scriptedPool) Write(_ context.Context, index int, msg []byte) error {
	if index < 0 || index >= p.size {
		return domain.ErrIndexOutOfRange
	}
	env, err := codec.Decode(msg)
	if err != nil {
		return err
	}
	p.log.add("%s.write%d %s", p.tag, index, env.Op)
	p.last[index] = env.Op
	return nil
}

func (p *scriptedPool) WriteAll(_ context.Context, msg []byte) error {
	env, err := codec.Decode(msg)
	if err != nil {
		return err
	}
	p.log.add("%s.bcast %s", p.tag, env.Op)
	for i := range p.last {
		p.last[i] = env.Op
	}
	return nil
}

func (p *scriptedPool) Read(_ context.Context, index int) ([]byte, error) {
	if index < 0 || index >= p.size {
		return nil, domain.ErrIndexOutOfRange
	}
	p.log.add("%s.read%d", p.tag, index)
	if err := p.failRead[index]; err != nil {
		return nil, err
	}
	switch op := p.last[index]; op {
	case domain.OpStep:
		if p.tag == "P" {
			return codec.MustEncode(domain.NewEnvelope(domain.OpParmInfo, []byte{byte(index)})), nil
		}
		return ack(op), nil
	case domain.OpGetEquations:
		return codec.MustEncode(domain.NewEnvelope(domain.OpGetEquations, []byte{byte(index), 0xEE})), nil
	case domain.OpSolve:
		p.rounds++
		result := codec.AppendConverged([]byte{0x01, 0x02}, p.rounds >= p.convergeAfter)
		op := domain.OpSolve
		if p.wrongSolveOp {
			op = domain.OpParmInfo
		}
		return codec.MustEncode(domain.NewEnvelope(op, result)), nil
	default:
		return ack(op), nil
	}
}

func ack(op domain.Operation) []byte {
	return codec.MustEncode(domain.NewEnvelope(op, nil))
}

// recordingEvents captures master events.
type recordingEvents struct {
	BaseEventHandler
	mu          sync.Mutex
	states      []StateChangeEvent
	domains     []WorkDomainEvent
	convergence []bool
}

func (r *recordingEvents) OnStateChange(e StateChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, e)
}

func (r *recordingEvents) OnWorkDomain(e WorkDomainEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.domains = append(r.domains, e)
}

func (r *recordingEvents) OnSolveIteration(e SolveIterationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convergence = append(r.convergence, e.Converged)
}
