package types

import (
	"fmt"
	"math/big"
)

// Scalar wraps a big integer with the two wire encodings the precompiled
// contracts use. Sign handling differs between them, so both are explicit
// constructors rather than ad-hoc byte twiddling at the call sites.
type Scalar struct {
	v *big.Int
}

// NewScalar wraps v. A nil value behaves as zero.
func NewScalar(v *big.Int) Scalar {
	if v == nil {
		v = big.NewInt(0)
	}
	return Scalar{v: v}
}

// EncodeSigned is the minimal big-endian two's-complement encoding: the
// magnitude bytes with a leading zero when the high bit would read as a sign,
// a single zero byte for zero, and proper two's complement for negatives.
func (s Scalar) EncodeSigned() []byte {
	switch s.v.Sign() {
	case 0:
		return []byte{0}
	case 1:
		b := s.v.Bytes()
		if b[0]&0x80 != 0 {
			return append([]byte{0}, b...)
		}
		return b
	default:
		// Width follows the minimal two's-complement bit length, which for a
		// negative v is the bit length of -v-1 plus the sign bit.
		mag := new(big.Int).Abs(s.v)
		n := new(big.Int).Sub(mag, big.NewInt(1)).BitLen()/8 + 1
		tc := new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), uint(8*n)), s.v)
		b := tc.Bytes()
		out := make([]byte, n)
		copy(out[n-len(b):], b)
		return out
	}
}

// EncodeUnsignedPadded left-pads the magnitude to width bytes. The value must
// be non-negative and must fit.
func (s Scalar) EncodeUnsignedPadded(width int) ([]byte, error) {
	if s.v.Sign() < 0 {
		return nil, fmt.Errorf("types: cannot encode negative value unsigned")
	}
	b := s.v.Bytes()
	if len(b) > width {
		return nil, fmt.Errorf("types: value needs %d bytes, width is %d", len(b), width)
	}
	out := make([]byte, width)
	copy(out[width-len(b):], b)
	return out, nil
}

// DecodeUnsigned reads b as an unsigned big-endian integer. This matches a
// signed read with a sentinel leading zero byte: the result is never
// negative.
func DecodeUnsigned(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}
