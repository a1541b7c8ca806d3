package circuit

import (
	"fmt"
	"math/big"

	"github.com/plasmafold/rollup/account"
	"github.com/plasmafold/rollup/commitment"
	"github.com/plasmafold/rollup/curve"
	"github.com/plasmafold/rollup/field"
	"github.com/plasmafold/rollup/merkle"
	"github.com/plasmafold/rollup/request"
)

// TransferWitness supplies the two leaves a transfer touches and their
// authentication paths, witnessed before the transfer is applied.
type TransferWitness struct {
	From         account.Account
	FromSiblings []field.Element
	To           account.Account
	ToSiblings   []field.Element
}

// TransferResult is what a transfer block's circuit proves.
type TransferResult struct {
	NewRoot         field.Element
	Commitment      field.Element
	CommitmentBytes [32]byte
	PublicData      []bool
	TotalFees       *big.Int
}

// Transfer applies a batch of transfer requests to oldRoot. currentBlock
// gates each transfer's good_until_block. Unlike deposit, the from- and
// to-leaf are both touched, in that order, each ascended twice.
func Transfer(sys *System, blockNumber, currentBlock uint64, oldRoot, newRootClaim field.Element, reqs []request.Transfer, witnesses []TransferWitness) (TransferResult, error) {
	if len(reqs) != len(witnesses) {
		return TransferResult{}, fmt.Errorf("circuit: transfer request/witness count mismatch")
	}

	cur := oldRoot
	var publicData []bool
	totalFees := new(big.Int)

	for i, req := range reqs {
		w := witnesses[i]
		next, pd, fee, err := applyTransferOne(sys, i, currentBlock, cur, req, w)
		if err != nil {
			return TransferResult{}, err
		}
		cur = next
		publicData = append(publicData, pd...)
		totalFees.Add(totalFees, fee)
	}

	if err := sys.AssertFieldEqual("transfer[final]/new_root", cur, newRootClaim); err != nil {
		return TransferResult{}, err
	}

	init := commitment.InitTransfer(blockNumber, totalFees)
	commit, commitBytes := commitment.Finalize(init, publicData)

	return TransferResult{
		NewRoot:         cur,
		Commitment:      commit,
		CommitmentBytes: commitBytes,
		PublicData:      publicData,
		TotalFees:       totalFees,
	}, nil
}

func applyTransferOne(sys *System, i int, currentBlock uint64, oldRoot field.Element, req request.Transfer, w TransferWitness) (field.Element, []bool, *big.Int, error) {
	id := func(name string) string { return fmt.Sprintf("transfer[%d]/%s", i, name) }

	from := w.From
	to := w.To

	// The from-leaf is re-ascended before/after its own update first; the
	// resulting root becomes the old_root the to-leaf's ascent is checked
	// against, since both leaves live in the same tree and the to-leaf's
	// witnessed siblings are only valid once the from-update has already
	// been applied. Do not check both leaves against the same old_root.
	fromOldHash := from.Hash()
	root1, err := merkle.Ascend(fromOldHash, uint64(req.From), w.FromSiblings)
	if err != nil {
		return field.Element{}, nil, nil, err
	}
	if err := sys.AssertFieldEqual(id("from/old_root"), root1, oldRoot); err != nil {
		return field.Element{}, nil, nil, err
	}

	msg := req.SigningMessage()
	if err := sys.AssertBool(id("signature"), curve.Verify(curve.PublicKey{Point: from.PubKey}, msg, req.Signature) == nil); err != nil {
		return field.Element{}, nil, nil, err
	}

	if err := sys.AssertBool(id("nonce"), from.Nonce == req.Nonce); err != nil {
		return field.Element{}, nil, nil, err
	}
	if err := sys.AssertGE(id("good_until_block"), req.GoodUntilBlock, currentBlock); err != nil {
		return field.Element{}, nil, nil, err
	}

	amount := req.Amount()
	fee := req.Fee()
	total := new(big.Int).Add(amount, fee)
	if err := sys.AssertBool(id("sufficient_balance"), from.Balance.Cmp(total) >= 0); err != nil {
		return field.Element{}, nil, nil, err
	}

	newFromBalance := new(big.Int).Sub(from.Balance, total)
	if err := sys.AssertBitWidth(id("new_from_balance_range"), newFromBalance, account.BalanceBitWidth); err != nil {
		return field.Element{}, nil, nil, err
	}
	newToBalance := new(big.Int).Add(to.Balance, amount)
	if err := sys.AssertBitWidth(id("new_to_balance_range"), newToBalance, account.BalanceBitWidth); err != nil {
		return field.Element{}, nil, nil, err
	}

	newFrom := account.Account{Balance: newFromBalance, Nonce: from.Nonce + 1, PubKey: from.PubKey}
	newTo := account.Account{Balance: newToBalance, Nonce: to.Nonce, PubKey: to.PubKey}

	newFromHash := newFrom.Hash()
	midRoot, err := merkle.Ascend(newFromHash, uint64(req.From), w.FromSiblings)
	if err != nil {
		return field.Element{}, nil, nil, err
	}

	toOldHash := to.Hash()
	root2, err := merkle.Ascend(toOldHash, uint64(req.To), w.ToSiblings)
	if err != nil {
		return field.Element{}, nil, nil, err
	}
	if err := sys.AssertFieldEqual(id("to/old_root"), root2, midRoot); err != nil {
		return field.Element{}, nil, nil, err
	}

	newToHash := newTo.Hash()
	finalRoot, err := merkle.Ascend(newToHash, uint64(req.To), w.ToSiblings)
	if err != nil {
		return field.Element{}, nil, nil, err
	}

	return finalRoot, request.TransferPublicData(req), fee, nil
}
