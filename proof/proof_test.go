package proof

import (
	"math/big"
	"testing"

	"github.com/plasmafold/rollup/account"
	"github.com/plasmafold/rollup/circuit"
	"github.com/plasmafold/rollup/curve"
	"github.com/plasmafold/rollup/merkle"
	"github.com/plasmafold/rollup/request"
)

func TestProveDepositAndVerify(t *testing.T) {
	tr := merkle.New()
	oldRoot := tr.Root()
	sk := curve.NewPrivateKey(big.NewInt(1))
	req := request.Deposit{Into: 1, Amount: big.NewInt(10), PublicKey: sk.Public().Point}
	siblings, err := tr.Path(1)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	newLeaf := account.Account{Balance: big.NewInt(10), Nonce: 0, PubKey: sk.Public().Point}
	newRoot, err := merkle.Ascend(newLeaf.Hash(), 1, siblings)
	if err != nil {
		t.Fatalf("Ascend: %v", err)
	}

	p, err := ProveDeposit(1, oldRoot, newRoot, []request.Deposit{req}, []circuit.DepositWitness{{Leaf: account.Empty(), Siblings: siblings}})
	if err != nil {
		t.Fatalf("ProveDeposit: %v", err)
	}

	vk := NewVerificationKey(KindDeposit)
	if err := Verify(vk, p, oldRoot, newRoot, p.Commitment); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsKindMismatch(t *testing.T) {
	tr := merkle.New()
	oldRoot := tr.Root()
	sk := curve.NewPrivateKey(big.NewInt(1))
	req := request.Deposit{Into: 1, Amount: big.NewInt(10), PublicKey: sk.Public().Point}
	siblings, _ := tr.Path(1)
	newLeaf := account.Account{Balance: big.NewInt(10), Nonce: 0, PubKey: sk.Public().Point}
	newRoot, _ := merkle.Ascend(newLeaf.Hash(), 1, siblings)

	p, err := ProveDeposit(1, oldRoot, newRoot, []request.Deposit{req}, []circuit.DepositWitness{{Leaf: account.Empty(), Siblings: siblings}})
	if err != nil {
		t.Fatalf("ProveDeposit: %v", err)
	}

	vk := NewVerificationKey(KindTransfer)
	if err := Verify(vk, p, oldRoot, newRoot, p.Commitment); err == nil {
		t.Fatal("Verify accepted a proof against the wrong verification key kind")
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	tr := merkle.New()
	oldRoot := tr.Root()
	sk := curve.NewPrivateKey(big.NewInt(1))
	req := request.Deposit{Into: 1, Amount: big.NewInt(10), PublicKey: sk.Public().Point}
	siblings, _ := tr.Path(1)
	newLeaf := account.Account{Balance: big.NewInt(10), Nonce: 0, PubKey: sk.Public().Point}
	newRoot, _ := merkle.Ascend(newLeaf.Hash(), 1, siblings)

	p, err := ProveDeposit(7, oldRoot, newRoot, []request.Deposit{req}, []circuit.DepositWitness{{Leaf: account.Empty(), Siblings: siblings}})
	if err != nil {
		t.Fatalf("ProveDeposit: %v", err)
	}

	data := Serialize(p)
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.Kind != p.Kind || got.BlockNumber != p.BlockNumber {
		t.Fatal("round trip lost kind or block number")
	}
	if !got.NewRoot.Equal(&p.NewRoot) {
		t.Fatal("round trip lost new root")
	}
	if !got.Commitment.Equal(&p.Commitment) {
		t.Fatal("round trip lost commitment")
	}
}

func TestDeserializeRejectsMalformed(t *testing.T) {
	if _, err := Deserialize([]byte{1, 2, 3}); err == nil {
		t.Fatal("Deserialize accepted a malformed buffer")
	}
}
