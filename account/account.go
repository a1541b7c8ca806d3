// Package account defines the balance-tree leaf layout: a balance, a
// nonce, and an EdDSA public key. The bit layout here is the single
// source of truth the Pedersen leaf hash, the deposit/transfer/exit
// circuits, and the public-data codec all pack against.
package account

import (
	"math/big"

	"github.com/plasmafold/rollup/curve"
	"github.com/plasmafold/rollup/field"
	"github.com/plasmafold/rollup/pedersen"
)

// Bit widths fixed by the spec's configuration section.
const (
	BalanceBitWidth = 128
	NonceBitWidth   = 32
)

// MaxBalance is the exclusive upper bound on a representable balance,
// 2^BalanceBitWidth.
var MaxBalance = new(big.Int).Lsh(big.NewInt(1), BalanceBitWidth)

// Account is a single balance-tree leaf.
type Account struct {
	Balance *big.Int
	Nonce   uint32
	PubKey  curve.Point
}

// Empty returns the zero-value leaf; IsEmpty is true for it.
func Empty() Account {
	return Account{Balance: big.NewInt(0), Nonce: 0, PubKey: curve.Point{}}
}

// IsEmpty reports whether every field of the leaf is zero, the
// definition used by the circuits to decide whether a deposit is
// creating a fresh account versus topping up an existing one.
func (a Account) IsEmpty() bool {
	return a.Balance.Sign() == 0 && a.Nonce == 0 &&
		a.PubKey.X.IsZero() && a.PubKey.Y.IsZero()
}

// BitsLE packs the leaf's fields into a single little-endian bit vector:
// balance bits, then nonce bits, then the compressed public key. This is
// exactly the preimage of the leaf's Pedersen hash.
func (a Account) BitsLE() []bool {
	bits := make([]bool, 0, BalanceBitWidth+NonceBitWidth+field.BitWidth)
	bits = append(bits, field.UintBitsLE(a.Balance, BalanceBitWidth)...)
	bits = append(bits, field.UintBitsLE(new(big.Int).SetUint64(uint64(a.Nonce)), NonceBitWidth)...)
	bits = append(bits, curve.Compress(a.PubKey)...)
	return bits
}

// Hash computes the leaf's Pedersen commitment under the NoteCommitment
// personalization, returning the x-coordinate that the Merkle tree
// actually stores.
func (a Account) Hash() field.Element {
	return pedersen.HashX(pedersen.NoteCommitment, a.BitsLE())
}

// WithBalance returns a copy of a with the balance replaced.
func (a Account) WithBalance(balance *big.Int) Account {
	a.Balance = balance
	return a
}

// WithNonce returns a copy of a with the nonce replaced.
func (a Account) WithNonce(nonce uint32) Account {
	a.Nonce = nonce
	return a
}

// WithPubKey returns a copy of a with the public key replaced.
func (a Account) WithPubKey(pub curve.Point) Account {
	a.PubKey = pub
	return a
}
