package codec

import (
	"bytes"
	"fmt"
	"math"

	"github.com/spacemeshos/go-scale"

	"github.com/bft-labs/distsolve/internal/domain"
)

// EncodeInit serializes the handshake payload.
func EncodeInit(info domain.InitInfo) ([]byte, error) {
	if len(info.Models) > maxListLen {
		return nil, fmt.Errorf("%w: %d model references", domain.ErrProtocol, len(info.Models))
	}
	var b bytes.Buffer
	enc := scale.NewEncoder(&b)
	if err := encodeString(enc, info.Dataset); err != nil {
		return nil, fmt.Errorf("encode dataset: %w", err)
	}
	if err := encodeString(enc, info.Column); err != nil {
		return nil, fmt.Errorf("encode column: %w", err)
	}
	if _, err := scale.EncodeCompact32(enc, uint32(len(info.Models))); err != nil {
		return nil, fmt.Errorf("encode models: %w", err)
	}
	for _, m := range info.Models {
		if err := encodeString(enc, m); err != nil {
			return nil, fmt.Errorf("encode model: %w", err)
		}
	}
	if _, err := scale.EncodeCompact32(enc, info.SubBand); err != nil {
		return nil, fmt.Errorf("encode sub band: %w", err)
	}
	if err := encodeBool(enc, info.CalcUVW); err != nil {
		return nil, fmt.Errorf("encode calc uvw: %w", err)
	}
	if err := encodeBox(enc, info.FullDomain); err != nil {
		return nil, fmt.Errorf("encode full domain: %w", err)
	}
	return b.Bytes(), nil
}

// DecodeInit parses the handshake payload.
func DecodeInit(buf []byte) (domain.InitInfo, error) {
	var info domain.InitInfo
	dec := scale.NewDecoder(bytes.NewReader(buf))
	var err error
	if info.Dataset, err = decodeString(dec); err != nil {
		return info, protocolErr("decode dataset", err)
	}
	if info.Column, err = decodeString(dec); err != nil {
		return info, protocolErr("decode column", err)
	}
	n, _, err := scale.DecodeCompact32(dec)
	if err != nil {
		return info, protocolErr("decode models", err)
	}
	if n > maxListLen {
		return info, fmt.Errorf("%w: %d model references", domain.ErrProtocol, n)
	}
	if n > 0 {
		info.Models = make([]string, 0, n)
	}
	for i := uint32(0); i < n; i++ {
		m, err := decodeString(dec)
		if err != nil {
			return info, protocolErr("decode model", err)
		}
		info.Models = append(info.Models, m)
	}
	if info.SubBand, _, err = scale.DecodeCompact32(dec); err != nil {
		return info, protocolErr("decode sub band", err)
	}
	if info.CalcUVW, err = decodeBool(dec); err != nil {
		return info, protocolErr("decode calc uvw", err)
	}
	if info.FullDomain, err = decodeBox(dec); err != nil {
		return info, protocolErr("decode full domain", err)
	}
	return info, nil
}

// EncodeBox serializes a work domain.
func EncodeBox(box domain.Box) ([]byte, error) {
	var b bytes.Buffer
	if err := encodeBox(scale.NewEncoder(&b), box); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// DecodeBox parses a work domain.
func DecodeBox(buf []byte) (domain.Box, error) {
	box, err := decodeBox(scale.NewDecoder(bytes.NewReader(buf)))
	if err != nil {
		return box, protocolErr("decode box", err)
	}
	return box, nil
}

// EncodeStep serializes a step: kind, name and opaque payload.
func EncodeStep(step domain.Step) ([]byte, error) {
	var b bytes.Buffer
	enc := scale.NewEncoder(&b)
	if _, err := scale.EncodeByte(enc, byte(step.Kind)); err != nil {
		return nil, fmt.Errorf("encode step kind: %w", err)
	}
	if err := encodeString(enc, step.Name); err != nil {
		return nil, fmt.Errorf("encode step name: %w", err)
	}
	if _, err := scale.EncodeByteSliceWithLimit(enc, step.Payload, MaxPayloadBytes); err != nil {
		return nil, fmt.Errorf("encode step payload: %w", err)
	}
	return b.Bytes(), nil
}

// DecodeStep parses a step.
func DecodeStep(buf []byte) (domain.Step, error) {
	var step domain.Step
	dec := scale.NewDecoder(bytes.NewReader(buf))
	kind, _, err := scale.DecodeByte(dec)
	if err != nil {
		return step, protocolErr("decode step kind", err)
	}
	step.Kind = domain.StepKind(kind)
	if step.Kind != domain.StepSimple && step.Kind != domain.StepSolve {
		return step, fmt.Errorf("%w: unknown step kind %d", domain.ErrProtocol, kind)
	}
	if step.Name, err = decodeString(dec); err != nil {
		return step, protocolErr("decode step name", err)
	}
	if step.Payload, _, err = scale.DecodeByteSliceWithLimit(dec, MaxPayloadBytes); err != nil {
		return step, protocolErr("decode step payload", err)
	}
	return step, nil
}

// EncodeFloats serializes a vector of float64 values.
func EncodeFloats(values []float64) ([]byte, error) {
	var b bytes.Buffer
	enc := scale.NewEncoder(&b)
	if _, err := scale.EncodeCompact32(enc, uint32(len(values))); err != nil {
		return nil, fmt.Errorf("encode length: %w", err)
	}
	for _, v := range values {
		if err := encodeFloat(enc, v); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

// DecodeFloats parses a vector written by EncodeFloats.
func DecodeFloats(buf []byte) ([]float64, error) {
	dec := scale.NewDecoder(bytes.NewReader(buf))
	n, _, err := scale.DecodeCompact32(dec)
	if err != nil {
		return nil, protocolErr("decode length", err)
	}
	if n > maxListLen {
		return nil, fmt.Errorf("%w: vector of %d values", domain.ErrProtocol, n)
	}
	values := make([]float64, n)
	for i := range values {
		if values[i], err = decodeFloat(dec); err != nil {
			return nil, protocolErr("decode value", err)
		}
	}
	return values, nil
}

func protocolErr(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrProtocol, what, err)
}

func encodeString(enc *scale.Encoder, s string) error {
	_, err := scale.EncodeByteSliceWithLimit(enc, []byte(s), maxStringBytes)
	return err
}

func decodeString(dec *scale.Decoder) (string, error) {
	b, _, err := scale.DecodeByteSliceWithLimit(dec, maxStringBytes)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func encodeBool(enc *scale.Encoder, v bool) error {
	var b byte
	if v {
		b = 1
	}
	_, err := scale.EncodeByte(enc, b)
	return err
}

func decodeBool(dec *scale.Decoder) (bool, error) {
	b, _, err := scale.DecodeByte(dec)
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("invalid bool byte %#x", b)
	}
}

func encodeFloat(enc *scale.Encoder, v float64) error {
	_, err := scale.EncodeCompact64(enc, math.Float64bits(v))
	return err
}

func decodeFloat(dec *scale.Decoder) (float64, error) {
	bits, _, err := scale.DecodeCompact64(dec)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func encodeBox(enc *scale.Encoder, box domain.Box) error {
	for _, v := range [...]float64{box.FreqStart, box.FreqEnd, box.TimeStart, box.TimeEnd} {
		if err := encodeFloat(enc, v); err != nil {
			return err
		}
	}
	return nil
}

func decodeBox(dec *scale.Decoder) (domain.Box, error) {
	var box domain.Box
	for _, dst := range [...]*float64{&box.FreqStart, &box.FreqEnd, &box.TimeStart, &box.TimeEnd} {
		v, err := decodeFloat(dec)
		if err != nil {
			return box, err
		}
		*dst = v
	}
	return box, nil
}
