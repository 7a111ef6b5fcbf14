package lsq

import (
	"fmt"
	"math"

	"github.com/bft-labs/distsolve/internal/codec"
	"github.com/bft-labs/distsolve/internal/domain"
)

// NumParams is the number of fitted parameters: intercept and slope.
const NumParams = 2

// normal holds the normal equations N·dp = v of one round.
//
//	N = [n00 n01; n01 n11], v = [v0 v1]
type normal struct {
	n00, n01, n11 float64
	v0, v1        float64
	count         float64
}

func (e *normal) add(o normal) {
	e.n00 += o.n00
	e.n01 += o.n01
	e.n11 += o.n11
	e.v0 += o.v0
	e.v1 += o.v1
	e.count += o.count
}

// accumulate adds the residual of one sample at params p.
func (e *normal) accumulate(s Sample, p [NumParams]float64) {
	r := s.Y - (p[0] + p[1]*s.X)
	e.n00++
	e.n01 += s.X
	e.n11 += s.X * s.X
	e.v0 += r
	e.v1 += r * s.X
	e.count++
}

// solve returns dp, or zero when the system is singular.
func (e *normal) solve() [NumParams]float64 {
	det := e.n00*e.n11 - e.n01*e.n01
	scale := math.Max(1, math.Abs(e.n00*e.n11))
	if math.Abs(det) <= 1e-12*scale {
		return [NumParams]float64{}
	}
	return [NumParams]float64{
		(e.n11*e.v0 - e.n01*e.v1) / det,
		(e.n00*e.v1 - e.n01*e.v0) / det,
	}
}

func (e normal) encode() ([]byte, error) {
	return codec.EncodeFloats([]float64{e.n00, e.n01, e.n11, e.v0, e.v1, e.count})
}

func decodeNormal(buf []byte) (normal, error) {
	v, err := codec.DecodeFloats(buf)
	if err != nil {
		return normal{}, err
	}
	if len(v) != 6 {
		return normal{}, fmt.Errorf("%w: %d normal equation terms, want 6", domain.ErrProtocol, len(v))
	}
	return normal{n00: v[0], n01: v[1], n11: v[2], v0: v[3], v1: v[4], count: v[5]}, nil
}

func encodeParams(p [NumParams]float64) ([]byte, error) {
	return codec.EncodeFloats(p[:])
}

func decodeParams(buf []byte) ([NumParams]float64, error) {
	var p [NumParams]float64
	v, err := codec.DecodeFloats(buf)
	if err != nil {
		return p, err
	}
	if len(v) != NumParams {
		return p, fmt.Errorf("%w: %d parameters, want %d", domain.ErrProtocol, len(v), NumParams)
	}
	copy(p[:], v)
	return p, nil
}
