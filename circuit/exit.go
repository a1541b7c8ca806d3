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

// ExitWitness supplies the leaf being exited and its authentication path,
// witnessed before the balance is zeroed.
type ExitWitness struct {
	Leaf     account.Account
	Siblings []field.Element
}

// ExitResult is what an exit block's circuit proves.
type ExitResult struct {
	NewRoot         field.Element
	Commitment      field.Element
	CommitmentBytes [32]byte
	PublicData      []bool
}

// Exit applies a batch of exit requests to oldRoot. Each request's
// withdrawn amount must already equal the witnessed leaf's balance --
// the keeper augments Exit.Amount from live state before building the
// witness; the circuit only checks consistency, it does not read state.
func Exit(sys *System, blockNumber uint64, oldRoot, newRootClaim field.Element, reqs []request.Exit, witnesses []ExitWitness) (ExitResult, error) {
	if len(reqs) != len(witnesses) {
		return ExitResult{}, fmt.Errorf("circuit: exit request/witness count mismatch")
	}

	cur := oldRoot
	var publicData []bool

	for i, req := range reqs {
		w := witnesses[i]
		next, pd, err := applyExitOne(sys, i, cur, req, w)
		if err != nil {
			return ExitResult{}, err
		}
		cur = next
		publicData = append(publicData, pd...)
	}

	if err := sys.AssertFieldEqual("exit[final]/new_root", cur, newRootClaim); err != nil {
		return ExitResult{}, err
	}

	init := commitment.InitDeposit(blockNumber) // exit blocks use the same (no-fee) initial hash as deposit
	commit, commitBytes := commitment.Finalize(init, publicData)

	return ExitResult{
		NewRoot:         cur,
		Commitment:      commit,
		CommitmentBytes: commitBytes,
		PublicData:      publicData,
	}, nil
}

func applyExitOne(sys *System, i int, oldRoot field.Element, req request.Exit, w ExitWitness) (field.Element, []bool, error) {
	id := func(name string) string { return fmt.Sprintf("exit[%d]/%s", i, name) }

	leaf := w.Leaf
	if err := sys.AssertBool(id("not_empty"), !leaf.IsEmpty()); err != nil {
		return field.Element{}, nil, err
	}
	if err := sys.AssertBigEqual(id("withdrawn_amount"), req.Amount, leaf.Balance); err != nil {
		return field.Element{}, nil, err
	}

	oldLeafHash := leaf.Hash()
	root1, err := merkle.Ascend(oldLeafHash, uint64(req.From), w.Siblings)
	if err != nil {
		return field.Element{}, nil, err
	}
	if err := sys.AssertFieldEqual(id("old_root"), root1, oldRoot); err != nil {
		return field.Element{}, nil, err
	}

	newLeaf := account.Account{Balance: big.NewInt(0), Nonce: leaf.Nonce, PubKey: leaf.PubKey}
	newLeafHash := newLeaf.Hash()
	root2, err := merkle.Ascend(newLeafHash, uint64(req.From), w.Siblings)
	if err != nil {
		return field.Element{}, nil, err
	}

	return root2, request.ExitPublicData(req), nil
}
