package lsq

import (
	"context"
	"math"
	"sync"

	"github.com/bft-labs/distsolve/internal/domain"
	"github.com/bft-labs/distsolve/internal/worker"
	"github.com/bft-labs/distsolve/pkg/log"
)

// DefaultTolerance is the update size below which a solve has converged.
const DefaultTolerance = 1e-9

// Solver merges the prediffers' normal equations and updates the global
// parameters by one Gauss-Newton step per round.
type Solver struct {
	tolerance float64
	logger    log.Logger

	mu       sync.Mutex
	params   [NumParams]float64
	haveInfo bool
	round    normal
	rounds   int
}

// NewSolver returns a solver. tolerance <= 0 selects DefaultTolerance.
func NewSolver(tolerance float64, logger log.Logger) *Solver {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Solver{tolerance: tolerance, logger: logger}
}

func (s *Solver) Init(_ context.Context, rank int, info domain.InitInfo) error {
	s.logger.Info("solver initialized", log.Int("rank", rank), log.String("dataset", info.Dataset))
	return nil
}

func (s *Solver) SetWorkDomain(context.Context, domain.Box) error { return nil }

func (s *Solver) Step(context.Context, domain.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.haveInfo = false
	s.round = normal{}
	s.rounds = 0
	return nil
}

// ParmInfo takes the starting parameters from the first prediffer that
// announces them. Prediffers share the previous result, so all agree.
func (s *Solver) ParmInfo(_ context.Context, payload []byte) error {
	p, err := decodeParams(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveInfo {
		s.params = p
		s.haveInfo = true
	}
	return nil
}

func (s *Solver) Equations(_ context.Context, payload []byte) error {
	eq, err := decodeNormal(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.round.add(eq)
	s.mu.Unlock()
	return nil
}

func (s *Solver) Solve(context.Context) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dp := s.round.solve()
	for i := range s.params {
		s.params[i] += dp[i]
	}
	norm := math.Hypot(dp[0], dp[1])
	limit := s.tolerance * (1 + math.Hypot(s.params[0], s.params[1]))
	converged := norm <= limit
	s.rounds++

	s.logger.Debug("solve round",
		log.Int("round", s.rounds),
		log.Float64("samples", s.round.count),
		log.Float64("a", s.params[0]),
		log.Float64("b", s.params[1]),
		log.Float64("update", norm),
		log.Bool("converged", converged),
	)
	s.round = normal{}

	out, err := encodeParams(s.params)
	if err != nil {
		return nil, false, err
	}
	return out, converged, nil
}

// Params returns the current global estimate.
func (s *Solver) Params() [NumParams]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

var _ worker.Solver = (*Solver)(nil)
