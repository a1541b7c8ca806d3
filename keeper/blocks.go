package keeper

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/plasmafold/rollup/account"
	"github.com/plasmafold/rollup/curve"
	"github.com/plasmafold/rollup/kerrors"
	"github.com/plasmafold/rollup/request"
)

func fatalExitOnEmptyLeaf(id request.AccountID) error {
	return kerrors.New(kerrors.Fatal, fmt.Sprintf("keeper: exit on empty leaf %d", id))
}

func fatalDepositInvalidPubKey(id request.AccountID) error {
	return kerrors.New(kerrors.Fatal, fmt.Sprintf("keeper: deposit into %d carries a public key off the curve or outside the prime-order subgroup", id))
}

// drainProtoQueue processes every queued proto-block in order, building
// and forwarding a CommitRequest for each, incrementing block_number after
// each forward. Deposit application errors are fatal: they originate from
// trusted watcher input already validated on-chain.
func (k *Keeper) drainProtoQueue(ctx context.Context) {
	for len(k.protoQueue) > 0 {
		pb := k.protoQueue[0]
		k.protoQueue = k.protoQueue[1:]

		var commit CommitRequest
		var err error
		switch pb.Kind {
		case ProtoBlockTransfer:
			commit, err = k.assembleTransferBlock()
		case ProtoBlockDeposit:
			commit, err = k.assembleDepositBlock(pb)
		case ProtoBlockExit:
			commit, err = k.assembleExitBlock(pb)
		}
		if err != nil {
			logger.Error("block assembly failed", "kind", pb.Kind, "err", err)
			return
		}

		if err := k.committer.Commit(ctx, commit); err != nil {
			logger.Error("commit forwarding failed", "kind", pb.Kind, "err", err)
			return
		}
		k.blockNumber++
	}
}

// assembleTransferBlock builds the Block for the payload finalizeTransferBatch
// already computed and staged.
func (k *Keeper) assembleTransferBlock() (CommitRequest, error) {
	payload := k.pendingTransferPayload
	k.pendingTransferPayload = nil

	updated := make(map[request.AccountID]account.Account, 2*len(payload.Txs))
	for _, tx := range payload.Txs {
		updated[tx.From] = k.accounts[tx.From]
		updated[tx.To] = k.accounts[tx.To]
	}

	block := Block{
		Number:  k.blockNumber,
		NewRoot: k.tree.Root(),
		Kind:    ProtoBlockTransfer,
		Transfer: &TransferBlockPayload{
			TotalFees: payload.TotalFees,
			Txs:       payload.Txs,
		},
	}
	return CommitRequest{Block: block, UpdatedAccounts: updated}, nil
}

// assembleDepositBlock sorts the batch by account id (stable tie-break by
// original position), applies each deposit to the tree -- creating the
// account with the supplied public key if the leaf is empty -- and
// collects the touched accounts. A fresh account's public key must satisfy
// both the curve equation and prime-order subgroup membership before its
// leaf is ever written; a bad key here is fatal rather than rejected, since
// deposit input has already cleared on-chain validation by the time it
// reaches the keeper.
func (k *Keeper) assembleDepositBlock(pb ProtoBlock) (CommitRequest, error) {
	txs := append([]request.Deposit(nil), pb.Deposits...)
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Into < txs[j].Into })

	updated := make(map[request.AccountID]account.Account, len(txs))
	for _, tx := range txs {
		cur, ok := k.accounts[tx.Into]
		if !ok {
			cur = account.Empty()
		}
		var next account.Account
		if cur.IsEmpty() {
			if !curve.IsOnCurve(tx.PublicKey) || !curve.InSubgroup(tx.PublicKey) {
				return CommitRequest{}, fatalDepositInvalidPubKey(tx.Into)
			}
			next = account.Account{Balance: new(big.Int).Set(tx.Amount), Nonce: 0, PubKey: tx.PublicKey}
		} else {
			next = cur.WithBalance(new(big.Int).Add(cur.Balance, tx.Amount))
		}
		if err := k.tree.Insert(uint64(tx.Into), next.Hash()); err != nil {
			return CommitRequest{}, err
		}
		k.accounts[tx.Into] = next
		updated[tx.Into] = next
	}

	block := Block{
		Number:  k.blockNumber,
		NewRoot: k.tree.Root(),
		Kind:    ProtoBlockDeposit,
		Deposit: &DepositBlockPayload{BatchID: pb.BatchID, Txs: txs},
	}
	return CommitRequest{Block: block, UpdatedAccounts: updated}, nil
}

// assembleExitBlock sorts the batch by account id, applies each exit --
// augmenting it with the balance withdrawn, read from the live leaf before
// zeroing -- and collects the touched accounts. Exits are point-in-time at
// the moment of this call: a concurrent transfer that mutated the balance
// before this point is reflected in the augmented amount.
func (k *Keeper) assembleExitBlock(pb ProtoBlock) (CommitRequest, error) {
	txs := append([]request.Exit(nil), pb.Exits...)
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].From < txs[j].From })

	updated := make(map[request.AccountID]account.Account, len(txs))
	for i, tx := range txs {
		cur, ok := k.accounts[tx.From]
		if !ok || cur.IsEmpty() {
			return CommitRequest{}, fatalExitOnEmptyLeaf(tx.From)
		}
		txs[i].Amount = new(big.Int).Set(cur.Balance)

		next := cur.WithBalance(big.NewInt(0))
		if err := k.tree.Insert(uint64(tx.From), next.Hash()); err != nil {
			return CommitRequest{}, err
		}
		k.accounts[tx.From] = next
		updated[tx.From] = next
	}

	block := Block{
		Number:  k.blockNumber,
		NewRoot: k.tree.Root(),
		Kind:    ProtoBlockExit,
		Exit:    &ExitBlockPayload{BatchID: pb.BatchID, Txs: txs},
	}
	return CommitRequest{Block: block, UpdatedAccounts: updated}, nil
}
