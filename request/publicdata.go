package request

import (
	"math/big"

	"github.com/plasmafold/rollup/account"
	"github.com/plasmafold/rollup/curve"
	"github.com/plasmafold/rollup/field"
	"github.com/plasmafold/rollup/merkle"
)

// DepositPublicData returns the big-endian bit-exact on-chain encoding of
// a single deposit: into ‖ amount ‖ packed_pubkey, widths
// Depth + BalanceBitWidth + FR_BIT_WIDTH. Every component is built as a
// little-endian bit vector and reversed to big-endian on its own before
// the components are concatenated.
func DepositPublicData(d Deposit) []bool {
	into := leBits(int64(d.Into), merkle.Depth)
	amount := uintBitsBE(d.Amount, account.BalanceBitWidth)
	pubkey := beFromLE(curve.Compress(d.PublicKey))

	out := make([]bool, 0, merkle.Depth+account.BalanceBitWidth+field.BitWidth)
	out = append(out, beFromLE(into)...)
	out = append(out, amount...)
	out = append(out, pubkey...)
	return out
}

// ExitPublicData returns from ‖ balance, widths Depth + BalanceBitWidth.
func ExitPublicData(e Exit) []bool {
	from := beFromLE(leBits(int64(e.From), merkle.Depth))
	balance := uintBitsBE(e.Amount, account.BalanceBitWidth)

	out := make([]bool, 0, merkle.Depth+account.BalanceBitWidth)
	out = append(out, from...)
	out = append(out, balance...)
	return out
}

// TransferPublicData returns from ‖ to ‖ amount_float ‖ fee_float ‖ nonce,
// a fixed-per-block layout. The wire format is implementation-defined per
// the spec; this rollup always spells nonce out as a 32-bit compact
// field so every block's public data has identical length regardless of
// which account touched which nonce.
func TransferPublicData(t Transfer) []bool {
	from := beFromLE(leBits(int64(t.From), merkle.Depth))
	to := beFromLE(leBits(int64(t.To), merkle.Depth))
	amountFloat := beFromLE(AmountCodec.BitsLE(t.AmountMantissa, t.AmountExponent))
	feeFloat := beFromLE(FeeCodec.BitsLE(t.FeeMantissa, t.FeeExponent))
	nonce := beFromLE(leBits(int64(t.Nonce), 32))

	out := make([]bool, 0, 2*merkle.Depth+AmountCodec.MantissaBits+AmountCodec.ExponentBits+FeeCodec.MantissaBits+FeeCodec.ExponentBits+32)
	out = append(out, from...)
	out = append(out, to...)
	out = append(out, amountFloat...)
	out = append(out, feeFloat...)
	out = append(out, nonce...)
	return out
}

func leBits(v int64, width int) []bool {
	return field.UintBitsLE(big.NewInt(v), width)
}

func uintBitsBE(v *big.Int, width int) []bool {
	return beFromLE(field.UintBitsLE(v, width))
}

func beFromLE(bits []bool) []bool {
	return field.ReverseBits(bits)
}
