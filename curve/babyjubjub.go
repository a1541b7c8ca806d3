// Package curve implements point arithmetic and compression on the Alt
// BabyJubjub twisted Edwards curve embedded in the BN-254 scalar field.
// This is the curve used for account public keys, the Pedersen hash
// generators, and EdDSA signature verification.
//
// Group law is delegated to gnark-crypto; this package adds the
// compression format the wire encoding and the Merkle leaf hash depend
// on: the y-coordinate as Capacity little-endian bits followed by the
// parity bit of x.
package curve

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"

	"github.com/plasmafold/rollup/field"
)

// ErrNotOnCurve is returned when a witnessed point fails the curve equation.
var ErrNotOnCurve = errors.New("curve: point is not on Alt-BabyJubjub")

// Point is an affine point on Alt-BabyJubjub.
type Point = twistededwards.PointAffine

// params caches the curve's generator, cofactor, and subgroup order. The
// curve is Alt-BabyJubjub as embedded by gnark-crypto for BN-254.
var params = twistededwards.GetEdwardsCurve()

// Generator returns the standard base point used to derive Pedersen
// generators and for key generation.
func Generator() Point {
	return params.Base
}

// SubgroupOrder returns the order of the prime-order subgroup. Scalars
// used for key generation and signing are taken modulo this order.
func SubgroupOrder() *big.Int {
	o := params.Order
	return &o
}

// Zero returns the curve's identity element (0, 1).
func Zero() Point {
	var z Point
	z.X = field.Zero()
	z.Y = field.FromUint64(1)
	return z
}

// Add returns p + q.
func Add(p, q Point) Point {
	var out Point
	out.Add(&p, &q)
	return out
}

// ScalarMul returns scalar * p.
func ScalarMul(p Point, scalar *big.Int) Point {
	var out Point
	out.ScalarMultiplication(&p, scalar)
	return out
}

// IsOnCurve reports whether p satisfies the Alt-BabyJubjub curve equation.
// The deposit circuit deliberately stops here: it does not additionally
// check that p lies in the prime-order subgroup (see design notes on
// hardening this for production use).
func IsOnCurve(p Point) bool {
	return p.IsOnCurve()
}

// InSubgroup reports whether p has order dividing the prime subgroup
// order, i.e. whether n*p is the identity. This is the subgroup check
// the deposit circuit itself intentionally omits; the keeper calls it
// out-of-band when a fresh account's public key is first accepted.
func InSubgroup(p Point) bool {
	var one field.Element
	one.SetOne()
	check := ScalarMul(p, SubgroupOrder())
	return check.X.IsZero() && check.Y.Equal(&one)
}

// Compress encodes p as Capacity little-endian y-bits followed by the
// parity bit of x, per the wire format in the spec. The result has
// field.BitWidth bits, little-endian.
func Compress(p Point) []bool {
	yBits := field.BitsLE(p.Y, field.Capacity)
	xBig := field.ToBigInt(p.X)
	parity := xBig.Bit(0) == 1
	return append(yBits, parity)
}

// Decompress reconstructs a point from its compressed bit vector by
// recovering x from y and the curve equation, then selecting the root
// with the recorded parity.
func Decompress(bits []bool) (Point, error) {
	if len(bits) != field.BitWidth {
		return Point{}, errors.New("curve: compressed point has wrong bit width")
	}
	y := field.FromBitsLE(bits[:field.Capacity])
	parity := bits[field.Capacity]

	x, err := recoverX(y, parity)
	if err != nil {
		return Point{}, err
	}
	p := Point{X: x, Y: y}
	if !p.IsOnCurve() {
		return Point{}, ErrNotOnCurve
	}
	return p, nil
}

// recoverX solves the twisted Edwards equation a*x^2 + y^2 = 1 + d*x^2*y^2
// for x^2, takes the modular square root, and picks the root matching the
// requested parity bit.
func recoverX(y field.Element, parity bool) (field.Element, error) {
	var one, ySq, num, den, xSq field.Element
	one.SetOne()
	ySq.Square(&y)

	// num = 1 - y^2
	num.Sub(&one, &ySq)
	// den = a - d*y^2
	den.Mul(&params.D, &ySq)
	den.Sub(&params.A, &den)
	if den.IsZero() {
		return field.Element{}, ErrNotOnCurve
	}
	var denInv field.Element
	denInv.Inverse(&den)
	xSq.Mul(&num, &denInv)

	x := new(big.Int).ModSqrt(field.ToBigInt(xSq), fr254Modulus)
	if x == nil {
		return field.Element{}, ErrNotOnCurve
	}
	out := field.FromBigInt(x)
	if (x.Bit(0) == 1) != parity {
		out.Neg(&out)
	}
	return out, nil
}

// fr254Modulus is the BN-254 scalar field order. gnark-crypto generates
// fr.Element arithmetic modulo this constant but does not export it as a
// big.Int directly usable with math/big.Int.ModSqrt, so it is restated
// here for the square-root step of point decompression.
var fr254Modulus, _ = new(big.Int).SetString(
	"21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)
