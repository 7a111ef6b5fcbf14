// Package obsdomain enumerates the work domains of a full observation domain.
//
// A Partitioner cuts the full domain into a grid of boxes of a fixed shape
// and yields them in a fixed order: frequency-major, time-minor, so time
// varies fastest. Every participant that sees the same sequence of boxes
// agrees on which partition is current purely from call order.
package obsdomain

import (
	"fmt"
	"math"

	"github.com/bft-labs/distsolve/internal/domain"
)

// MaxPartitions bounds the grid size so a tiny shape cannot stall the master
// in enumeration alone.
const MaxPartitions = 1 << 24

// Partitioner is a restartable iterator over the work domains of one full
// domain. It is not safe for concurrent use.
type Partitioner struct {
	full  domain.Box
	shape domain.Shape

	freqStep float64
	timeStep float64
	nFreq    int
	nTime    int

	next int
}

// NewPartitioner validates full and shape and returns an iterator
// positioned before the first partition.
func NewPartitioner(full domain.Box, shape domain.Shape) (*Partitioner, error) {
	if err := full.Validate(); err != nil {
		return nil, err
	}
	for _, v := range []float64{full.FreqStart, full.FreqEnd, full.TimeStart, full.TimeEnd} {
		if math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s is not finite", domain.ErrInvalidDomain, full)
		}
	}
	if badSize(shape.FreqSize) || badSize(shape.TimeSize) {
		return nil, fmt.Errorf("%w: freq %g time %g", domain.ErrInvalidShape, shape.FreqSize, shape.TimeSize)
	}

	p := &Partitioner{full: full, shape: shape}
	p.freqStep, p.nFreq = axis(full.FreqStart, full.FreqEnd, shape.FreqSize)
	p.timeStep, p.nTime = axis(full.TimeStart, full.TimeEnd, shape.TimeSize)
	if p.nFreq > MaxPartitions || p.nTime > MaxPartitions || p.nFreq*p.nTime > MaxPartitions {
		return nil, fmt.Errorf("%w: %d x %d partitions exceeds %d", domain.ErrInvalidShape, p.nFreq, p.nTime, MaxPartitions)
	}
	if !distinct(full.FreqStart, p.freqStep, p.nFreq) || !distinct(full.TimeStart, p.timeStep, p.nTime) {
		return nil, fmt.Errorf("%w: freq %g time %g is finer than the float resolution of %s",
			domain.ErrInvalidShape, shape.FreqSize, shape.TimeSize, full)
	}
	return p, nil
}

func badSize(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// axis returns the step and cell count for one axis. Cell k starts at
// start + k*step; the count is the number of such starts below end.
func axis(start, end, size float64) (float64, int) {
	length := end - start
	if size <= 0 || size >= length {
		return length, 1
	}
	n := math.Ceil(length / size)
	if n > MaxPartitions+1 {
		return size, MaxPartitions + 1
	}
	k := int(n)
	for k > 1 && start+float64(k-1)*size >= end {
		k--
	}
	for start+float64(k)*size < end {
		k++
	}
	return size, k
}

// distinct reports whether the n cell starts of an axis are strictly
// increasing. Far from zero, start + k*step can round onto its neighbour and
// leave an empty cell.
func distinct(start, step float64, n int) bool {
	prev := start
	for k := 1; k < n; k++ {
		b := start + float64(k)*step
		if b <= prev {
			return false
		}
		prev = b
	}
	return true
}

// Full returns the domain being partitioned.
func (p *Partitioner) Full() domain.Box { return p.full }

// Shape returns the partition shape.
func (p *Partitioner) Shape() domain.Shape { return p.shape }

// Count returns the number of partitions in one traversal.
func (p *Partitioner) Count() int { return p.nFreq * p.nTime }

// Remaining returns how many partitions Next will still yield.
func (p *Partitioner) Remaining() int { return p.Count() - p.next }

// Next stores the next partition in out and reports whether there was one.
// Once it returns false it keeps returning false until Reset.
func (p *Partitioner) Next(out *domain.Box) bool {
	if p.next >= p.Count() {
		return false
	}
	fi, ti := p.next/p.nTime, p.next%p.nTime
	out.FreqStart, out.FreqEnd = cell(p.full.FreqStart, p.full.FreqEnd, p.freqStep, fi, p.nFreq)
	out.TimeStart, out.TimeEnd = cell(p.full.TimeStart, p.full.TimeEnd, p.timeStep, ti, p.nTime)
	p.next++
	return true
}

// cell returns the bounds of cell k of n. The last cell is clamped to end
// and neighbours share the exact same boundary value.
func cell(start, end, step float64, k, n int) (float64, float64) {
	lo := start
	if k > 0 {
		lo = start + float64(k)*step
	}
	hi := end
	if k < n-1 {
		hi = start + float64(k+1)*step
	}
	return lo, hi
}

// Reset rewinds to the first partition.
func (p *Partitioner) Reset() { p.next = 0 }
