package codec

import (
	"bytes"
	"fmt"
	"math"

	"github.com/spacemeshos/go-scale"

	"github.com/bft-labs/distsolve/internal/domain"
)

// MaxPayloadBytes bounds a single envelope payload.
const MaxPayloadBytes = math.MaxInt32

// maxStringBytes bounds names and references inside payloads.
const maxStringBytes = 1 << 16

// maxListLen bounds repeated fields such as model references.
const maxListLen = 1 << 12

// Encode serializes an envelope.
func Encode(env domain.Envelope) ([]byte, error) {
	if !env.Op.Valid() {
		return nil, fmt.Errorf("%w: encode unknown opcode %d", domain.ErrProtocol, int8(env.Op))
	}
	if env.Dest < domain.NoDest || int64(env.Dest) >= math.MaxUint32 {
		return nil, fmt.Errorf("%w: destination %d out of range", domain.ErrProtocol, env.Dest)
	}
	var b bytes.Buffer
	enc := scale.NewEncoder(&b)
	if _, err := scale.EncodeByte(enc, byte(env.Op)); err != nil {
		return nil, fmt.Errorf("encode op: %w", err)
	}
	if _, err := scale.EncodeCompact32(enc, env.Version); err != nil {
		return nil, fmt.Errorf("encode version: %w", err)
	}
	if _, err := scale.EncodeCompact32(enc, uint32(env.Dest+1)); err != nil {
		return nil, fmt.Errorf("encode dest: %w", err)
	}
	if _, err := scale.EncodeByteSliceWithLimit(enc, env.Payload, MaxPayloadBytes); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return b.Bytes(), nil
}

// MustEncode is Encode for envelopes that are known to be valid.
func MustEncode(env domain.Envelope) []byte {
	buf, err := Encode(env)
	if err != nil {
		panic(err)
	}
	return buf
}

// Decode parses an envelope and rejects unknown opcodes and foreign versions.
func Decode(buf []byte) (domain.Envelope, error) {
	var env domain.Envelope
	dec := scale.NewDecoder(bytes.NewReader(buf))

	op, _, err := scale.DecodeByte(dec)
	if err != nil {
		return env, fmt.Errorf("%w: decode op: %v", domain.ErrProtocol, err)
	}
	env.Op = domain.Operation(int8(op))
	if !env.Op.Valid() {
		return env, fmt.Errorf("%w: unknown opcode %d", domain.ErrProtocol, int8(op))
	}

	version, _, err := scale.DecodeCompact32(dec)
	if err != nil {
		return env, fmt.Errorf("%w: decode version: %v", domain.ErrProtocol, err)
	}
	if version != domain.ProtocolVersion {
		return env, fmt.Errorf("%w: version %d, want %d", domain.ErrProtocol, version, domain.ProtocolVersion)
	}
	env.Version = version

	dest, _, err := scale.DecodeCompact32(dec)
	if err != nil {
		return env, fmt.Errorf("%w: decode dest: %v", domain.ErrProtocol, err)
	}
	env.Dest = int(dest) - 1

	payload, _, err := scale.DecodeByteSliceWithLimit(dec, MaxPayloadBytes)
	if err != nil {
		return env, fmt.Errorf("%w: decode payload: %v", domain.ErrProtocol, err)
	}
	env.Payload = payload
	return env, nil
}

// Converged reads the trailing convergence flag of a Solve reply payload.
func Converged(payload []byte) (bool, error) {
	if len(payload) == 0 {
		return false, fmt.Errorf("%w: empty solve result", domain.ErrProtocol)
	}
	switch payload[len(payload)-1] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: convergence flag %#x", domain.ErrProtocol, payload[len(payload)-1])
	}
}

// AppendConverged appends the convergence flag to a solver's parameter state.
func AppendConverged(params []byte, converged bool) []byte {
	out := make([]byte, len(params), len(params)+1)
	copy(out, params)
	if converged {
		return append(out, 1)
	}
	return append(out, 0)
}

// SplitConverged separates a Solve reply payload into parameter state and flag.
func SplitConverged(payload []byte) ([]byte, bool, error) {
	converged, err := Converged(payload)
	if err != nil {
		return nil, false, err
	}
	return payload[:len(payload)-1], converged, nil
}
