// Package circuit implements the deposit, transfer, and exit state-
// transition relations: per-request Merkle re-ascent, balance arithmetic
// with overflow guards, and the rolling public-data commitment. Each
// relation is expressed as a sequence of named constraints checked against
// a concrete witness, mirroring how a real constraint system reports which
// gate failed rather than a single opaque boolean.
package circuit

import (
	"math/big"

	"github.com/plasmafold/rollup/curve"
	"github.com/plasmafold/rollup/field"
	"github.com/plasmafold/rollup/kerrors"
)

// System accumulates named assertions against a witness. Unlike a real
// R1CS backend it evaluates eagerly: every assertion either holds, in
// which case its id is recorded in the trace, or the first violation is
// returned as a kerrors.CircuitUnsatisfiable error carrying that id, the
// same shape a prover uses to report the offending gate in test mode.
type System struct {
	trace []string
}

// NewSystem returns an empty constraint system.
func NewSystem() *System {
	return &System{}
}

// Trace returns the ids of every constraint checked so far, in order.
func (s *System) Trace() []string { return s.trace }

func (s *System) assert(id string, ok bool) error {
	s.trace = append(s.trace, id)
	if !ok {
		return kerrors.New(kerrors.CircuitUnsatisfiable, "constraint violated").WithDetail(id)
	}
	return nil
}

// AssertFieldEqual asserts a == b as field elements.
func (s *System) AssertFieldEqual(id string, a, b field.Element) error {
	return s.assert(id, a.Equal(&b))
}

// AssertBigEqual asserts a == b as arbitrary-precision integers.
func (s *System) AssertBigEqual(id string, a, b *big.Int) error {
	return s.assert(id, a.Cmp(b) == 0)
}

// AssertZero asserts v == 0.
func (s *System) AssertZero(id string, v *big.Int) error {
	return s.assert(id, v.Sign() == 0)
}

// AssertBitWidth asserts 0 <= v < 2^bits, the circuit's range-check gadget
// for every balance and amount update.
func (s *System) AssertBitWidth(id string, v *big.Int, bits int) error {
	return s.assert(id, field.FitsInBits(v, bits))
}

// AssertGE asserts a >= b.
func (s *System) AssertGE(id string, a, b uint64) error {
	return s.assert(id, a >= b)
}

// AssertBool asserts a precomputed boolean condition.
func (s *System) AssertBool(id string, ok bool) error {
	return s.assert(id, ok)
}

// AssertOnCurve asserts p satisfies the twisted Edwards curve equation.
func (s *System) AssertOnCurve(id string, p curve.Point) error {
	return s.assert(id, curve.IsOnCurve(p))
}
