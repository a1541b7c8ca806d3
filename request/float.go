// Package request defines the three operation requests the state keeper
// accepts (deposit, transfer, exit) and their bit-exact on-chain public
// data encoding.
package request

import "math/big"

// FloatCodec packs an amount into a compact (mantissa, exponent) pair,
// decoded as mantissa * 10^exponent. Transfers use this to fit amounts
// and fees into far fewer bits than the full balance width, at the cost
// of only being able to represent values with limited precision.
type FloatCodec struct {
	MantissaBits int
	ExponentBits int
}

// AmountCodec is the float codec used for transfer amounts.
var AmountCodec = FloatCodec{MantissaBits: 35, ExponentBits: 5}

// FeeCodec is the float codec used for transfer fees; fees need far less
// range than amounts so they get a smaller mantissa.
var FeeCodec = FloatCodec{MantissaBits: 11, ExponentBits: 5}

// maxMantissa returns the exclusive upper bound for the mantissa field.
func (c FloatCodec) maxMantissa() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(c.MantissaBits))
}

// maxExponent returns the exclusive upper bound for the exponent field.
func (c FloatCodec) maxExponent() uint {
	return uint(1) << uint(c.ExponentBits)
}

// Encode finds a (mantissa, exponent) pair such that
// mantissa * 10^exponent == v exactly, preferring the smallest exponent
// (hence the largest, most precise mantissa) that still fits. It reports
// false if v cannot be represented exactly within the codec's bit widths.
func (c FloatCodec) Encode(v *big.Int) (mantissa uint64, exponent uint64, ok bool) {
	if v.Sign() < 0 {
		return 0, 0, false
	}
	if v.Sign() == 0 {
		return 0, 0, true
	}

	maxMantissa := c.maxMantissa()
	ten := big.NewInt(10)
	rem := new(big.Int).Set(v)
	exp := uint64(0)
	for rem.Cmp(maxMantissa) >= 0 {
		q, r := new(big.Int), new(big.Int)
		q.QuoRem(rem, ten, r)
		if r.Sign() != 0 {
			return 0, 0, false
		}
		rem = q
		exp++
		if exp >= uint64(c.maxExponent()) {
			return 0, 0, false
		}
	}
	return rem.Uint64(), exp, true
}

// Decode reconstructs v = mantissa * 10^exponent.
func (c FloatCodec) Decode(mantissa, exponent uint64) *big.Int {
	v := new(big.Int).SetUint64(mantissa)
	if exponent == 0 {
		return v
	}
	pow := new(big.Int).Exp(big.NewInt(10), new(big.Int).SetUint64(exponent), nil)
	return v.Mul(v, pow)
}

// BitsLE packs (mantissa, exponent) into a little-endian bit vector of
// exponent-bits followed by mantissa-bits, the layout the circuits
// decompose when reconstructing the decoded amount.
func (c FloatCodec) BitsLE(mantissa, exponent uint64) []bool {
	bits := make([]bool, 0, c.MantissaBits+c.ExponentBits)
	for i := 0; i < c.ExponentBits; i++ {
		bits = append(bits, (exponent>>uint(i))&1 == 1)
	}
	for i := 0; i < c.MantissaBits; i++ {
		bits = append(bits, (mantissa>>uint(i))&1 == 1)
	}
	return bits
}
