// Package commitment builds the rolling SHA-256 public-data commitment
// each block's circuit binds its public data to: an initial hash over the
// block number (and, for transfer blocks, total fees), hash-extended with
// every request's public data, then truncated to field capacity.
package commitment

import (
	"crypto/sha256"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/plasmafold/rollup/field"
)

// InitDeposit returns SHA256(be_u256(blockNumber)), the initial hash block
// for deposit and exit circuits.
func InitDeposit(blockNumber uint64) [32]byte {
	return sha256.Sum256(beU256(blockNumber))
}

// InitTransfer returns SHA256(be_u256(blockNumber) ‖ be_u256(totalFees)),
// the initial hash block for transfer circuits.
func InitTransfer(blockNumber uint64, totalFees *big.Int) [32]byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, beU256(blockNumber)...)
	buf = append(buf, beU256Big(totalFees)...)
	return sha256.Sum256(buf)
}

// Finalize hash-extends init with the concatenation of every request's
// public data bits and truncates the result to field.Capacity bits,
// returning both the field element an in-circuit check would compare
// against and the raw masked bytes an out-of-circuit verifier compares
// against on-chain calldata.
func Finalize(init [32]byte, publicData []bool) (field.Element, [32]byte) {
	h := sha256.New()
	h.Write(init[:])
	h.Write(bitsToBytes(publicData))
	var sum [32]byte
	copy(sum[:], h.Sum(nil))

	// The out-of-circuit construction zeroes the high bits by masking the
	// first byte with 0x1f (256 - field.Capacity == 3 bits dropped for a
	// 253-bit capacity); the in-circuit construction truncates the bit
	// vector to field.Capacity bits. Both are driven off field.Capacity so
	// a change to the field's capacity only needs updating there.
	keep := field.Capacity % 8
	var mask byte
	if keep == 0 {
		mask = 0x00
	} else {
		mask = byte(0xff >> uint(8-keep))
	}
	sum[0] &= mask

	bits := field.UintBitsLE(new(big.Int).SetBytes(sum[:]), 256)
	truncated := bits[:field.Capacity]
	return field.FromBitsLE(truncated), sum
}

func beU256(v uint64) []byte {
	var u uint256.Int
	u.SetUint64(v)
	arr := u.Bytes32()
	return arr[:]
}

func beU256Big(v *big.Int) []byte {
	var u uint256.Int
	u.SetFromBig(v)
	arr := u.Bytes32()
	return arr[:]
}

func bitsToBytes(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}
