package codec

import (
	"bytes"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/bft-labs/distsolve/internal/domain"
)

func sameBits(a, b float64) bool {
	return math.Float64bits(a) == math.Float64bits(b)
}

func sameBox(a, b domain.Box) bool {
	return sameBits(a.FreqStart, b.FreqStart) && sameBits(a.FreqEnd, b.FreqEnd) &&
		sameBits(a.TimeStart, b.TimeStart) && sameBits(a.TimeEnd, b.TimeEnd)
}

// TestEnvelopeRoundTripProperty checks Decode(Encode(e)) == e for every opcode.
func TestEnvelopeRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("envelope round trip", prop.ForAll(
		func(op int, dest int, payload []byte) bool {
			env := domain.Envelope{
				Op:      domain.Operation(op),
				Version: domain.ProtocolVersion,
				Dest:    dest,
				Payload: payload,
			}
			buf, err := Encode(env)
			if err != nil {
				return false
			}
			got, err := Decode(buf)
			if err != nil {
				return false
			}
			return got.Op == env.Op && got.Dest == env.Dest && got.Version == env.Version &&
				bytes.Equal(got.Payload, env.Payload)
		},
		gen.IntRange(int(domain.OpQuit), int(domain.OpEndWorkDomain)),
		gen.IntRange(domain.NoDest, 1<<20),
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

// TestPayloadRoundTripProperty covers the payloads the master builds itself.
func TestPayloadRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	boxGen := gen.SliceOfN(4, gen.Float64())

	properties.Property("set work domain round trip", prop.ForAll(
		func(v []float64) bool {
			box := domain.Box{FreqStart: v[0], FreqEnd: v[1], TimeStart: v[2], TimeEnd: v[3]}
			buf, err := EncodeBox(box)
			if err != nil {
				return false
			}
			got, err := DecodeBox(buf)
			return err == nil && sameBox(box, got)
		},
		boxGen,
	))

	properties.Property("step round trip", prop.ForAll(
		func(solve bool, name string, payload []byte) bool {
			step := domain.NewSimpleStep(name, payload)
			if solve {
				step = domain.NewSolveStep(name, payload)
			}
			buf, err := EncodeStep(step)
			if err != nil {
				return false
			}
			got, err := DecodeStep(buf)
			return err == nil && got.Kind == step.Kind && got.Name == step.Name &&
				bytes.Equal(got.Payload, step.Payload)
		},
		gen.Bool(),
		gen.AlphaString(),
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("init round trip", prop.ForAll(
		func(dataset string, models []string, subBand uint32, calc bool, v []float64) bool {
			info := domain.InitInfo{
				Dataset:    dataset,
				Column:     "CORRECTED_DATA",
				Models:     models,
				SubBand:    subBand,
				CalcUVW:    calc,
				FullDomain: domain.Box{FreqStart: v[0], FreqEnd: v[1], TimeStart: v[2], TimeEnd: v[3]},
			}
			buf, err := EncodeInit(info)
			if err != nil {
				return false
			}
			got, err := DecodeInit(buf)
			if err != nil || len(got.Models) != len(info.Models) {
				return false
			}
			for i := range info.Models {
				if got.Models[i] != info.Models[i] {
					return false
				}
			}
			return got.Dataset == info.Dataset && got.Column == info.Column &&
				got.SubBand == info.SubBand && got.CalcUVW == info.CalcUVW &&
				sameBox(got.FullDomain, info.FullDomain)
		},
		gen.AlphaString(),
		gen.SliceOf(gen.AlphaString()),
		gen.UInt32(),
		gen.Bool(),
		boxGen,
	))

	properties.Property("solve result flag survives append/split", prop.ForAll(
		func(params []byte, converged bool) bool {
			state, got, err := SplitConverged(AppendConverged(params, converged))
			return err == nil && got == converged && bytes.Equal(state, params)
		},
		gen.SliceOf(gen.UInt8()),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
