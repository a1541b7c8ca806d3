// Package field wraps the BN-254 scalar field Fr used throughout the
// rollup: Merkle hashes, account leaves, and public-data commitments all
// live in this field. The modular arithmetic itself is delegated to
// gnark-crypto; this package only adds the bit-level conventions the
// circuits rely on (little-endian decomposition, capacity truncation).
package field

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// BitWidth is the full bit width of an Fr element (FR_BIT_WIDTH in the
// design: 254 bits for the modulus, with a leading parity bit reserved
// for point compression giving a 253-bit capacity).
const BitWidth = 254

// Capacity is the number of bits that can be safely packed into a single
// field element without wraparound -- one below BitWidth, which is also
// used to mask the public-data commitment down to a single Fr.
const Capacity = BitWidth - 1

// Element is an element of the BN-254 scalar field.
type Element = fr.Element

// Zero returns the additive identity.
func Zero() Element {
	var z Element
	return z
}

// FromUint64 builds a field element from a small unsigned integer.
func FromUint64(v uint64) Element {
	var z Element
	z.SetUint64(v)
	return z
}

// FromBigInt reduces v modulo the field order.
func FromBigInt(v *big.Int) Element {
	var z Element
	z.SetBigInt(v)
	return z
}

// ToBigInt returns the canonical (non-Montgomery) big.Int representation.
func ToBigInt(e Element) *big.Int {
	var out big.Int
	e.BigInt(&out)
	return &out
}

// BitsLE returns the little-endian bit decomposition of e, truncated or
// zero-padded to exactly width bits. Every packed field in the circuit
// carries this bit-vector alias alongside its scalar value.
func BitsLE(e Element, width int) []bool {
	v := ToBigInt(e)
	bits := make([]bool, width)
	for i := 0; i < width; i++ {
		bits[i] = v.Bit(i) == 1
	}
	return bits
}

// FromBitsLE reconstructs a field element from a little-endian bit vector.
func FromBitsLE(bits []bool) Element {
	v := new(big.Int)
	for i, b := range bits {
		if b {
			v.SetBit(v, i, 1)
		}
	}
	return FromBigInt(v)
}

// UintBitsLE decomposes an arbitrary-precision unsigned integer into a
// little-endian bit vector of the given width. Used for non-field values
// such as balances and nonces that are constrained by bit width rather
// than by the field modulus.
func UintBitsLE(v *big.Int, width int) []bool {
	bits := make([]bool, width)
	for i := 0; i < width; i++ {
		bits[i] = v.Bit(i) == 1
	}
	return bits
}

// BitsToUint reconstructs an unsigned integer from a little-endian bit
// vector.
func BitsToUint(bits []bool) *big.Int {
	v := new(big.Int)
	for i, b := range bits {
		if b {
			v.SetBit(v, i, 1)
		}
	}
	return v
}

// ReverseBits returns a new slice with the bit order reversed. The public
// data wire format is big-endian while every in-circuit decomposition is
// little-endian; encoders reverse once at the boundary.
func ReverseBits(bits []bool) []bool {
	out := make([]bool, len(bits))
	for i, b := range bits {
		out[len(bits)-1-i] = b
	}
	return out
}

// FitsInBits reports whether v can be represented in width bits, i.e.
// 0 <= v < 2^width. This backs every overflow/underflow guard in the
// state-transition relation (balance, nonce, and amount bit-width checks).
func FitsInBits(v *big.Int, width int) bool {
	if v.Sign() < 0 {
		return false
	}
	return v.BitLen() <= width
}
