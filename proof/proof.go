// Package proof packages a satisfied circuit witness into a Proof and
// checks a proof's public inputs against an independently supplied
// verification key, standing in for a real SNARK backend's Prove/Verify
// pair the way the teacher's own circuit package binds a commitment rather
// than invoking an external prover.
package proof

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/plasmafold/rollup/circuit"
	"github.com/plasmafold/rollup/field"
	"github.com/plasmafold/rollup/kerrors"
	"github.com/plasmafold/rollup/request"
)

// Kind identifies which relation a proof was built for.
type Kind int

const (
	KindDeposit Kind = iota
	KindTransfer
	KindExit
)

func (k Kind) String() string {
	switch k {
	case KindDeposit:
		return "deposit"
	case KindTransfer:
		return "transfer"
	case KindExit:
		return "exit"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// VerificationKey binds a Kind to a fingerprint, the stand-in for a real
// trusted-setup verification key loaded from the configured keys
// directory.
type VerificationKey struct {
	Kind        Kind
	Fingerprint [32]byte
}

// NewVerificationKey derives a deterministic fingerprint for kind. A real
// deployment loads this from disk; tests and examples can construct one
// directly since the relation it binds to is fixed by Kind alone.
func NewVerificationKey(kind Kind) VerificationKey {
	return VerificationKey{Kind: kind, Fingerprint: sha256.Sum256([]byte("plasmafold/vk/" + kind.String()))}
}

// Proof is the public record of a satisfied state transition: the public
// inputs the on-chain verifier checks, plus the trace of constraint ids
// the witness satisfied, useful for test-mode diagnostics.
type Proof struct {
	Kind            Kind
	BlockNumber     uint64
	OldRoot         field.Element
	NewRoot         field.Element
	Commitment      field.Element
	CommitmentBytes [32]byte
	TotalFees       *big.Int
	Trace           []string
}

// ProveDeposit runs the deposit relation to exhaustion and packages the
// result as a Proof, or returns a kerrors.CircuitUnsatisfiable error
// naming the first violated constraint.
func ProveDeposit(blockNumber uint64, oldRoot, newRootClaim field.Element, reqs []request.Deposit, witnesses []circuit.DepositWitness) (*Proof, error) {
	sys := circuit.NewSystem()
	res, err := circuit.Deposit(sys, blockNumber, oldRoot, newRootClaim, reqs, witnesses)
	if err != nil {
		return nil, err
	}
	return &Proof{
		Kind:            KindDeposit,
		BlockNumber:     blockNumber,
		OldRoot:         oldRoot,
		NewRoot:         res.NewRoot,
		Commitment:      res.Commitment,
		CommitmentBytes: res.CommitmentBytes,
		Trace:           sys.Trace(),
	}, nil
}

// ProveTransfer runs the transfer relation and packages the result.
func ProveTransfer(blockNumber, currentBlock uint64, oldRoot, newRootClaim field.Element, reqs []request.Transfer, witnesses []circuit.TransferWitness) (*Proof, error) {
	sys := circuit.NewSystem()
	res, err := circuit.Transfer(sys, blockNumber, currentBlock, oldRoot, newRootClaim, reqs, witnesses)
	if err != nil {
		return nil, err
	}
	return &Proof{
		Kind:            KindTransfer,
		BlockNumber:     blockNumber,
		OldRoot:         oldRoot,
		NewRoot:         res.NewRoot,
		Commitment:      res.Commitment,
		CommitmentBytes: res.CommitmentBytes,
		TotalFees:       res.TotalFees,
		Trace:           sys.Trace(),
	}, nil
}

// ProveExit runs the exit relation and packages the result.
func ProveExit(blockNumber uint64, oldRoot, newRootClaim field.Element, reqs []request.Exit, witnesses []circuit.ExitWitness) (*Proof, error) {
	sys := circuit.NewSystem()
	res, err := circuit.Exit(sys, blockNumber, oldRoot, newRootClaim, reqs, witnesses)
	if err != nil {
		return nil, err
	}
	return &Proof{
		Kind:            KindExit,
		BlockNumber:     blockNumber,
		OldRoot:         oldRoot,
		NewRoot:         res.NewRoot,
		Commitment:      res.Commitment,
		CommitmentBytes: res.CommitmentBytes,
		Trace:           sys.Trace(),
	}, nil
}

// Verify checks that p was built for vk's relation and that its public
// inputs match the ones the verifier independently computed or received
// on-chain.
func Verify(vk VerificationKey, p *Proof, oldRoot, newRoot, publicDataCommitment field.Element) error {
	if p == nil {
		return kerrors.New(kerrors.InvalidRequest, "proof: nil proof")
	}
	if p.Kind != vk.Kind {
		return kerrors.New(kerrors.InvalidRequest, "proof: kind mismatch").WithDetail(p.Kind.String())
	}
	if !p.OldRoot.Equal(&oldRoot) {
		return kerrors.New(kerrors.InvalidRequest, "proof: old_root mismatch")
	}
	if !p.NewRoot.Equal(&newRoot) {
		return kerrors.New(kerrors.InvalidRequest, "proof: new_root mismatch")
	}
	if !p.Commitment.Equal(&publicDataCommitment) {
		return kerrors.New(kerrors.InvalidRequest, "proof: public_data_commitment mismatch")
	}
	return nil
}

// Serialize encodes p as a flat byte sequence: kind, block number, the
// three public field elements, commitment bytes, and total fees (zero for
// non-transfer proofs).
func Serialize(p *Proof) []byte {
	buf := make([]byte, 0, 1+8+3*32+32+8)
	buf = append(buf, byte(p.Kind))

	var blockBuf [8]byte
	binary.BigEndian.PutUint64(blockBuf[:], p.BlockNumber)
	buf = append(buf, blockBuf[:]...)

	buf = append(buf, fieldBytes(p.OldRoot)...)
	buf = append(buf, fieldBytes(p.NewRoot)...)
	buf = append(buf, fieldBytes(p.Commitment)...)
	buf = append(buf, p.CommitmentBytes[:]...)

	fees := p.TotalFees
	if fees == nil {
		fees = new(big.Int)
	}
	feeBytes := fees.FillBytes(make([]byte, 32))
	buf = append(buf, feeBytes...)

	return buf
}

// Deserialize reconstructs a Proof's public-input fields from Serialize's
// output. Trace is not preserved across the wire; it is a debug aid, not a
// public input.
func Deserialize(data []byte) (*Proof, error) {
	const want = 1 + 8 + 3*32 + 32 + 32
	if len(data) != want {
		return nil, kerrors.New(kerrors.InvalidRequest, "proof: malformed serialized proof")
	}
	off := 0
	kind := Kind(data[off])
	off++
	blockNumber := binary.BigEndian.Uint64(data[off : off+8])
	off += 8
	oldRoot := field.FromBigInt(new(big.Int).SetBytes(data[off : off+32]))
	off += 32
	newRoot := field.FromBigInt(new(big.Int).SetBytes(data[off : off+32]))
	off += 32
	commit := field.FromBigInt(new(big.Int).SetBytes(data[off : off+32]))
	off += 32
	var commitBytes [32]byte
	copy(commitBytes[:], data[off:off+32])
	off += 32
	fees := new(big.Int).SetBytes(data[off : off+32])

	return &Proof{
		Kind:            kind,
		BlockNumber:     blockNumber,
		OldRoot:         oldRoot,
		NewRoot:         newRoot,
		Commitment:      commit,
		CommitmentBytes: commitBytes,
		TotalFees:       fees,
	}, nil
}

func fieldBytes(e field.Element) []byte {
	return field.ToBigInt(e).FillBytes(make([]byte, 32))
}
