package request

import (
	"math/big"

	"github.com/plasmafold/rollup/curve"
	"github.com/plasmafold/rollup/field"
	"github.com/plasmafold/rollup/merkle"
)

// AccountID indexes into the balance tree.
type AccountID uint64

// Deposit moves funds from L1 into a fresh or existing account, setting
// its public key the first time.
type Deposit struct {
	Into      AccountID
	Amount    *big.Int
	PublicKey curve.Point
}

// Transfer moves funds (and a fee) from an existing account to any
// account, an empty recipient included, authenticated by an EdDSA
// signature from the sender.
type Transfer struct {
	From           AccountID
	To             AccountID
	AmountMantissa uint64
	AmountExponent uint64
	FeeMantissa    uint64
	FeeExponent    uint64
	Nonce          uint32
	GoodUntilBlock uint64
	Signature      curve.Signature
	// cachedSenderKey, when set, is the sender's public key at submission
	// time; the keeper uses it to pre-validate the signature before
	// mutating the tree, mirroring the teacher's sequencer pre-check.
	cachedSenderKey *curve.PublicKey
}

// SetCachedSenderKey records the sender's public key for signature
// pre-validation.
func (t *Transfer) SetCachedSenderKey(pub curve.PublicKey) { t.cachedSenderKey = &pub }

// CachedSenderKey returns the recorded sender public key, if any.
func (t *Transfer) CachedSenderKey() (curve.PublicKey, bool) {
	if t.cachedSenderKey == nil {
		return curve.PublicKey{}, false
	}
	return *t.cachedSenderKey, true
}

// Amount decodes the transfer's float-encoded amount.
func (t Transfer) Amount() *big.Int { return AmountCodec.Decode(t.AmountMantissa, t.AmountExponent) }

// Fee decodes the transfer's float-encoded fee.
func (t Transfer) Fee() *big.Int { return FeeCodec.Decode(t.FeeMantissa, t.FeeExponent) }

// SigningMessage returns the bit-packed message an EdDSA signature over
// this transfer must cover: every field but the signature itself.
func (t Transfer) SigningMessage() []byte {
	bits := make([]bool, 0, 2*merkle.Depth+AmountCodec.MantissaBits+AmountCodec.ExponentBits+FeeCodec.MantissaBits+FeeCodec.ExponentBits+32+32)
	bits = append(bits, field.UintBitsLE(big.NewInt(int64(t.From)), merkle.Depth)...)
	bits = append(bits, field.UintBitsLE(big.NewInt(int64(t.To)), merkle.Depth)...)
	bits = append(bits, AmountCodec.BitsLE(t.AmountMantissa, t.AmountExponent)...)
	bits = append(bits, FeeCodec.BitsLE(t.FeeMantissa, t.FeeExponent)...)
	bits = append(bits, field.UintBitsLE(big.NewInt(int64(t.Nonce)), 32)...)
	bits = append(bits, field.UintBitsLE(big.NewInt(int64(t.GoodUntilBlock)), 32)...)
	return bitsToBytes(bits)
}

// Exit withdraws an account's full balance. Amount is zero at submission
// time and is filled in by the state keeper from the live leaf when the
// exit block is assembled. Assembly happens at AddBlock only if no
// transfers are queued; otherwise it waits for the transfer batch to be
// finalized, and transfers applied in between are reflected in Amount.
type Exit struct {
	From   AccountID
	Amount *big.Int
}

func bitsToBytes(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}
