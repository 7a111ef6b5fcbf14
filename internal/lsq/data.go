package lsq

import (
	"fmt"
	"math/rand"

	"github.com/bft-labs/distsolve/internal/domain"
)

// Sample is one observation owned by a prediffer.
type Sample struct {
	Freq float64
	X    float64
	Y    float64
}

// Source loads the samples a prediffer owns.
type Source func(info domain.InitInfo, rank int) ([]Sample, error)

// Synthetic draws n samples per prediffer uniformly over the full domain
// from y = a + b*x with Gaussian noise of the given sigma. The stream is
// seeded from rank so every run sees the same data.
func Synthetic(n int, a, b, sigma float64) Source {
	return func(info domain.InitInfo, rank int) ([]Sample, error) {
		if n <= 0 {
			return nil, fmt.Errorf("%w: synthetic sample count %d", domain.ErrInvalidConfig, n)
		}
		full := info.FullDomain
		rng := rand.New(rand.NewSource(int64(rank) + 1))
		out := make([]Sample, n)
		for i := range out {
			x := full.TimeStart + rng.Float64()*(full.TimeEnd-full.TimeStart)
			out[i] = Sample{
				Freq: full.FreqStart + rng.Float64()*(full.FreqEnd-full.FreqStart),
				X:    x,
				Y:    a + b*x + sigma*rng.NormFloat64(),
			}
		}
		return out, nil
	}
}

// Static returns the same samples to every prediffer rank.
func Static(samples []Sample) Source {
	return func(domain.InitInfo, int) ([]Sample, error) {
		return append([]Sample(nil), samples...), nil
	}
}
