package lsq

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/bft-labs/distsolve/internal/codec"
	"github.com/bft-labs/distsolve/internal/domain"
	"github.com/bft-labs/distsolve/internal/worker"
	"github.com/bft-labs/distsolve/pkg/log"
)

// Prediffer owns a shard of samples and produces partial normal equations
// for the samples inside the current work domain.
type Prediffer struct {
	source Source
	logger log.Logger

	mu       sync.Mutex
	rank     int
	samples  []Sample
	box      domain.Box
	selected []Sample
	params   [NumParams]float64
	rms      float64
}

// NewPrediffer returns a prediffer that loads its shard from source on Init.
func NewPrediffer(source Source, logger log.Logger) *Prediffer {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Prediffer{source: source, logger: logger}
}

func (p *Prediffer) Init(_ context.Context, rank int, info domain.InitInfo) error {
	samples, err := p.source(info, rank)
	if err != nil {
		return fmt.Errorf("load samples for rank %d: %w", rank, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rank = rank
	p.samples = samples
	p.logger.Info("prediffer initialized", log.Int("rank", rank), log.Int("samples", len(samples)), log.String("dataset", info.Dataset))
	return nil
}

func (p *Prediffer) SetWorkDomain(_ context.Context, box domain.Box) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.box = box
	p.selected = p.selected[:0]
	for _, s := range p.samples {
		if box.Contains(s.Freq, s.X) {
			p.selected = append(p.selected, s)
		}
	}
	return nil
}

// Step records the residual RMS for a simple step and announces the current
// parameters for a solve step.
func (p *Prediffer) Step(_ context.Context, step domain.Step) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if step.Kind == domain.StepSolve {
		return encodeParams(p.params)
	}
	var sum float64
	for _, s := range p.selected {
		r := s.Y - (p.params[0] + p.params[1]*s.X)
		sum += r * r
	}
	p.rms = 0
	if len(p.selected) > 0 {
		p.rms = math.Sqrt(sum / float64(len(p.selected)))
	}
	p.logger.Debug("residuals", log.Int("rank", p.rank), log.Stringer("box", p.box), log.Float64("rms", p.rms))
	return nil, nil
}

func (p *Prediffer) Equations(context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var eq normal
	for _, s := range p.selected {
		eq.accumulate(s, p.params)
	}
	return eq.encode()
}

func (p *Prediffer) Update(_ context.Context, result []byte) error {
	raw, _, err := codec.SplitConverged(result)
	if err != nil {
		return err
	}
	params, err := decodeParams(raw)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.params = params
	p.mu.Unlock()
	return nil
}

// Params returns the local copy of the parameters.
func (p *Prediffer) Params() [NumParams]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.params
}

// RMS returns the residual RMS measured by the last simple step.
func (p *Prediffer) RMS() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rms
}

var _ worker.Prediffer = (*Prediffer)(nil)
