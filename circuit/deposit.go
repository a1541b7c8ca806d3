package circuit

import (
	"fmt"
	"math/big"

	"github.com/plasmafold/rollup/account"
	"github.com/plasmafold/rollup/commitment"
	"github.com/plasmafold/rollup/field"
	"github.com/plasmafold/rollup/merkle"
	"github.com/plasmafold/rollup/request"
)

// DepositWitness supplies the per-request private inputs a deposit needs
// to re-ascend the tree: the leaf as it stood before the deposit, and its
// Depth sibling hashes.
type DepositWitness struct {
	Leaf     account.Account
	Siblings []field.Element
}

// DepositResult is what a deposit block's circuit proves: the new root and
// the public-data commitment binding it to the block number and payload.
type DepositResult struct {
	NewRoot         field.Element
	Commitment      field.Element
	CommitmentBytes [32]byte
	PublicData      []bool
}

// Deposit applies a batch of K deposit requests to oldRoot, asserting at
// every step the constraints the deposit relation enforces (§4.2), and
// returns the resulting root and commitment. newRootClaim is the publicly
// claimed new root; Deposit fails with CircuitUnsatisfiable if the
// recomputed root disagrees.
func Deposit(sys *System, blockNumber uint64, oldRoot, newRootClaim field.Element, reqs []request.Deposit, witnesses []DepositWitness) (DepositResult, error) {
	if len(reqs) != len(witnesses) {
		return DepositResult{}, fmt.Errorf("circuit: deposit request/witness count mismatch")
	}

	cur := oldRoot
	var publicData []bool

	for i, req := range reqs {
		w := witnesses[i]
		next, pd, err := applyDepositOne(sys, i, cur, req, w)
		if err != nil {
			return DepositResult{}, err
		}
		cur = next
		publicData = append(publicData, pd...)
	}

	if err := sys.AssertFieldEqual("deposit[final]/new_root", cur, newRootClaim); err != nil {
		return DepositResult{}, err
	}

	init := commitment.InitDeposit(blockNumber)
	commit, commitBytes := commitment.Finalize(init, publicData)

	return DepositResult{
		NewRoot:         cur,
		Commitment:      commit,
		CommitmentBytes: commitBytes,
		PublicData:      publicData,
	}, nil
}

// applyDepositOne applies one deposit request, returning the new subtree
// root and this request's public data.
func applyDepositOne(sys *System, i int, oldRoot field.Element, req request.Deposit, w DepositWitness) (field.Element, []bool, error) {
	id := func(name string) string { return fmt.Sprintf("deposit[%d]/%s", i, name) }

	leaf := w.Leaf
	leafIsEmpty := leaf.IsEmpty()
	oldLeafHash := emptyAwareHash(leaf, leafIsEmpty)

	index := uint64(req.Into)
	root1, err := merkle.Ascend(oldLeafHash, index, w.Siblings)
	if err != nil {
		return field.Element{}, nil, err
	}
	if err := sys.AssertFieldEqual(id("old_root"), root1, oldRoot); err != nil {
		return field.Element{}, nil, err
	}

	// Empty-leaf constraints: if the leaf is empty every stored field must
	// already be zero (a forged witness claiming emptiness with nonzero
	// balance/nonce/key is caught here).
	if leafIsEmpty {
		if err := sys.AssertZero(id("empty_balance"), leaf.Balance); err != nil {
			return field.Element{}, nil, err
		}
		if err := sys.AssertBool(id("empty_nonce"), leaf.Nonce == 0); err != nil {
			return field.Element{}, nil, err
		}
		if err := sys.AssertBool(id("empty_pub_x"), leaf.PubKey.X.IsZero()); err != nil {
			return field.Element{}, nil, err
		}
		if err := sys.AssertBool(id("empty_pub_y"), leaf.PubKey.Y.IsZero()); err != nil {
			return field.Element{}, nil, err
		}
	}

	// Choose the new public key: a fresh account adopts the requested key,
	// an existing one keeps its own. Either way the chosen point must lie
	// on the curve.
	newPubKey := leaf.PubKey
	if leafIsEmpty {
		newPubKey = req.PublicKey
	}
	if err := sys.AssertOnCurve(id("pubkey_on_curve"), newPubKey); err != nil {
		return field.Element{}, nil, err
	}

	if err := sys.AssertBitWidth(id("amount_range"), req.Amount, account.BalanceBitWidth); err != nil {
		return field.Element{}, nil, err
	}
	newBalance := new(big.Int).Add(leaf.Balance, req.Amount)
	if err := sys.AssertBitWidth(id("new_balance_range"), newBalance, account.BalanceBitWidth); err != nil {
		return field.Element{}, nil, err
	}

	newLeaf := account.Account{Balance: newBalance, Nonce: leaf.Nonce, PubKey: newPubKey}
	newLeafHash := newLeaf.Hash()

	root2, err := merkle.Ascend(newLeafHash, index, w.Siblings)
	if err != nil {
		return field.Element{}, nil, err
	}

	return root2, request.DepositPublicData(req), nil
}

// emptyAwareHash returns the Pedersen hash of leaf, or the canonical empty-
// leaf hash when the witness claims emptiness -- both are equal when the
// witness is honest, but computing from the memoized empty hash avoids
// hashing an all-zero leaf through Pedersen on the hot path.
func emptyAwareHash(leaf account.Account, isEmpty bool) field.Element {
	if isEmpty {
		return merkle.EmptyLeafHash()
	}
	return leaf.Hash()
}
