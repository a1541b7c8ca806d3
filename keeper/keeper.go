// Package keeper implements the single-writer state keeper: the only
// mutator of the live account tree and block counter. It owns a goroutine
// that serializes every request through one channel, the message-passing
// shape this was modeled on rather than a mutex-guarded shared struct.
package keeper

import (
	"context"
	"math/big"
	"time"

	"github.com/plasmafold/rollup/account"
	"github.com/plasmafold/rollup/config"
	"github.com/plasmafold/rollup/curve"
	"github.com/plasmafold/rollup/kerrors"
	"github.com/plasmafold/rollup/log"
	"github.com/plasmafold/rollup/merkle"
	"github.com/plasmafold/rollup/request"
)

var logger = log.Default().Module("keeper")

// Keeper owns the in-memory balance tree and dispatches every request
// sequentially off a single inbox channel.
type Keeper struct {
	cfg       config.Config
	committer Committer
	now       func() time.Time

	inbox chan any

	tree        *merkle.Tree
	accounts    map[request.AccountID]account.Account
	blockNumber uint64

	transferQueue          []request.Transfer
	protoQueue             []ProtoBlock
	pendingTransferPayload *TransferBlockPayload
	paddingDeadline        time.Time
	paddingArmed           bool

	outstandingTransfers int
}

type reqGetNetworkStatus struct{ reply chan NetworkStatus }
type reqGetAccount struct {
	id    request.AccountID
	reply chan GetAccountOutcome
}
type reqAddTransferTx struct {
	tx    request.Transfer
	reply chan AddTransferOutcome
}
type reqAddBlock struct{ block ProtoBlock }
type reqTimerTick struct{}

// New constructs a Keeper and loads its initial state from store. Run must
// be called to start processing requests.
func New(ctx context.Context, cfg config.Config, store Store, committer Committer) (*Keeper, error) {
	lastBlock, accounts, err := store.Load(ctx)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Fatal, err, "keeper: store load failed")
	}
	if accounts == nil {
		accounts = make(map[request.AccountID]account.Account)
	}

	tree := merkle.New()
	for id, acc := range accounts {
		if err := tree.Insert(uint64(id), acc.Hash()); err != nil {
			return nil, kerrors.Wrap(kerrors.Fatal, err, "keeper: rebuilding tree from store failed")
		}
	}

	return &Keeper{
		cfg:         cfg,
		committer:   committer,
		now:         time.Now,
		inbox:       make(chan any, 64),
		tree:        tree,
		accounts:    accounts,
		blockNumber: lastBlock + 1,
	}, nil
}

// Run is the single-writer loop. It returns when ctx is canceled.
func (k *Keeper) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-k.inbox:
			k.dispatch(ctx, r)
		}
	}
}

func (k *Keeper) dispatch(ctx context.Context, r any) {
	switch req := r.(type) {
	case reqGetNetworkStatus:
		req.reply <- NetworkStatus{BlockNumber: k.blockNumber, OutstandingTransfers: k.outstandingTransfers}
	case reqGetAccount:
		acc, ok := k.accounts[req.id]
		req.reply <- GetAccountOutcome{Account: acc, Found: ok}
	case reqAddTransferTx:
		req.reply <- k.handleAddTransferTx(ctx, req.tx)
	case reqAddBlock:
		k.handleAddBlock(ctx, req.block)
	case reqTimerTick:
		k.handleTimerTick(ctx)
	}
}

// GetNetworkStatus returns the current block number and outstanding
// transfer count.
func (k *Keeper) GetNetworkStatus(ctx context.Context) (NetworkStatus, error) {
	reply := make(chan NetworkStatus, 1)
	select {
	case k.inbox <- reqGetNetworkStatus{reply: reply}:
	case <-ctx.Done():
		return NetworkStatus{}, kerrors.Wrap(kerrors.Timeout, ctx.Err(), "keeper: get network status")
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return NetworkStatus{}, kerrors.Wrap(kerrors.Timeout, ctx.Err(), "keeper: get network status")
	}
}

// GetAccount looks up an account by id.
func (k *Keeper) GetAccount(ctx context.Context, id request.AccountID) (GetAccountOutcome, error) {
	reply := make(chan GetAccountOutcome, 1)
	select {
	case k.inbox <- reqGetAccount{id: id, reply: reply}:
	case <-ctx.Done():
		return GetAccountOutcome{}, kerrors.Wrap(kerrors.Timeout, ctx.Err(), "keeper: get account")
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return GetAccountOutcome{}, kerrors.Wrap(kerrors.Timeout, ctx.Err(), "keeper: get account")
	}
}

// AddTransferTx submits a transfer for application and queuing.
func (k *Keeper) AddTransferTx(ctx context.Context, tx request.Transfer) (AddTransferOutcome, error) {
	reply := make(chan AddTransferOutcome, 1)
	select {
	case k.inbox <- reqAddTransferTx{tx: tx, reply: reply}:
	case <-ctx.Done():
		return AddTransferOutcome{}, kerrors.Wrap(kerrors.Timeout, ctx.Err(), "keeper: add transfer")
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return AddTransferOutcome{}, kerrors.Wrap(kerrors.Timeout, ctx.Err(), "keeper: add transfer")
	}
}

// AddBlock enqueues a deposit or exit proto-block. It does not wait for a
// reply: deposit/exit input already passed on-chain validation, so
// application failures here are fatal rather than rejections.
func (k *Keeper) AddBlock(ctx context.Context, block ProtoBlock) error {
	select {
	case k.inbox <- reqAddBlock{block: block}:
		return nil
	case <-ctx.Done():
		return kerrors.Wrap(kerrors.Timeout, ctx.Err(), "keeper: add block")
	}
}

// TimerTick notifies the keeper to check the padding deadline. Idempotent:
// firing with no armed deadline is a no-op.
func (k *Keeper) TimerTick(ctx context.Context) error {
	select {
	case k.inbox <- reqTimerTick{}:
		return nil
	case <-ctx.Done():
		return kerrors.Wrap(kerrors.Timeout, ctx.Err(), "keeper: timer tick")
	}
}

// handleAddTransferTx applies tx to the in-memory tree immediately,
// queuing it on success and arming the padding deadline if needed.
// Rejections (bad signature, nonce, balance, or deadline) make no state
// change.
func (k *Keeper) handleAddTransferTx(ctx context.Context, tx request.Transfer) AddTransferOutcome {
	if k.outstandingTransfers >= k.cfg.MaxOutstandingTransfers {
		return AddTransferOutcome{Err: kerrors.New(kerrors.RateLimited, "keeper: outstanding transfer budget exceeded")}
	}

	if err := k.applyTransferLocked(tx); err != nil {
		logger.Debug("transfer rejected", "from", tx.From, "to", tx.To, "err", err)
		return AddTransferOutcome{Err: err}
	}

	k.transferQueue = append(k.transferQueue, tx)
	k.outstandingTransfers++
	if !k.paddingArmed {
		k.paddingDeadline = k.now().Add(k.cfg.PaddingInterval)
		k.paddingArmed = true
	}
	if len(k.transferQueue) >= k.cfg.TransferBatchSize {
		k.finalizeTransferBatch(ctx)
	}
	return AddTransferOutcome{BlockNumber: k.blockNumber}
}

// applyTransferLocked validates and applies a single transfer to the
// in-memory tree and account map. The caller must already be running
// inside the single-writer dispatch loop.
func (k *Keeper) applyTransferLocked(tx request.Transfer) error {
	from, ok := k.accounts[tx.From]
	if !ok || from.IsEmpty() {
		return kerrors.New(kerrors.InvalidRequest, "keeper: unknown sender account")
	}
	to, ok := k.accounts[tx.To]
	if !ok {
		to = account.Empty() // an empty account is a valid recipient
	}

	if pub, ok := tx.CachedSenderKey(); ok {
		if !pub.Point.X.Equal(&from.PubKey.X) || !pub.Point.Y.Equal(&from.PubKey.Y) {
			return kerrors.New(kerrors.InvalidRequest, "keeper: cached sender key stale")
		}
	}
	if err := curve.Verify(curve.PublicKey{Point: from.PubKey}, tx.SigningMessage(), tx.Signature); err != nil {
		return kerrors.Wrap(kerrors.InvalidRequest, err, "keeper: signature verification failed")
	}
	if from.Nonce != tx.Nonce {
		return kerrors.New(kerrors.InvalidRequest, "keeper: nonce mismatch")
	}
	if tx.GoodUntilBlock < k.blockNumber {
		return kerrors.New(kerrors.InvalidRequest, "keeper: stale good_until_block")
	}

	amount := tx.Amount()
	fee := tx.Fee()
	total := new(big.Int).Add(amount, fee)
	if from.Balance.Cmp(total) < 0 {
		return kerrors.New(kerrors.InvalidRequest, "keeper: insufficient balance")
	}
	newFromBalance := new(big.Int).Sub(from.Balance, total)
	newToBalance := new(big.Int).Add(to.Balance, amount)
	if newToBalance.Cmp(account.MaxBalance) >= 0 {
		return kerrors.New(kerrors.InvalidRequest, "keeper: recipient balance overflow")
	}

	newFrom := from.WithBalance(newFromBalance).WithNonce(from.Nonce + 1)
	var newTo account.Account
	if to.IsEmpty() {
		newTo = account.Empty().WithBalance(newToBalance)
	} else {
		newTo = to.WithBalance(newToBalance)
	}

	if err := k.tree.Insert(uint64(tx.From), newFrom.Hash()); err != nil {
		return kerrors.Wrap(kerrors.Fatal, err, "keeper: from-leaf insert failed")
	}
	if err := k.tree.Insert(uint64(tx.To), newTo.Hash()); err != nil {
		return kerrors.Wrap(kerrors.Fatal, err, "keeper: to-leaf insert failed")
	}
	k.accounts[tx.From] = newFrom
	k.accounts[tx.To] = newTo
	return nil
}

// handleTimerTick finalizes the in-flight transfer batch if the padding
// deadline has elapsed. No-op if no deadline is armed.
func (k *Keeper) handleTimerTick(ctx context.Context) {
	if !k.paddingArmed {
		return
	}
	if k.now().Before(k.paddingDeadline) {
		return
	}
	k.finalizeTransferBatch(ctx)
}

// finalizeTransferBatch pads the queue to TransferBatchSize with signed
// no-op transfers from the padding account, pushes a Transfer proto-block
// at the front of the proto-block queue, and drains it.
func (k *Keeper) finalizeTransferBatch(ctx context.Context) {
	if err := k.padTransferQueue(); err != nil {
		logger.Error("padding failed", "err", err)
		return
	}

	totalFees := new(big.Int)
	for _, tx := range k.transferQueue {
		totalFees.Add(totalFees, tx.Fee())
	}

	block := ProtoBlock{Kind: ProtoBlockTransfer}
	pending := TransferBlockPayload{TotalFees: totalFees, Txs: append([]request.Transfer(nil), k.transferQueue...)}

	k.protoQueue = append([]ProtoBlock{block}, k.protoQueue...)
	k.pendingTransferPayload = &pending

	k.transferQueue = nil
	k.outstandingTransfers = 0
	k.paddingArmed = false

	k.drainProtoQueue(ctx)
}

// padTransferQueue appends signed no-op transfers from the configured
// padding account until the queue reaches TransferBatchSize. Each padding
// transfer carries the next ascending nonce for that account and is
// applied exactly like a real transfer.
func (k *Keeper) padTransferQueue() error {
	if k.cfg.PaddingPrivateKey == nil {
		return kerrors.New(kerrors.Fatal, "keeper: no padding private key configured")
	}
	sk := curve.PrivateKey{Scalar: k.cfg.PaddingPrivateKey}
	paddingID := request.AccountID(k.cfg.PaddingAccountID)

	for len(k.transferQueue) < k.cfg.TransferBatchSize {
		padding, ok := k.accounts[paddingID]
		if !ok {
			return kerrors.New(kerrors.Fatal, "keeper: padding account not funded")
		}
		tx := request.Transfer{
			From:           paddingID,
			To:             0,
			AmountMantissa: 0,
			AmountExponent: 0,
			FeeMantissa:    0,
			FeeExponent:    0,
			Nonce:          padding.Nonce,
			GoodUntilBlock: k.blockNumber,
		}
		tx.Signature = curve.Sign(sk, tx.SigningMessage())
		if err := k.applyTransferLocked(tx); err != nil {
			return kerrors.Wrap(kerrors.Fatal, err, "keeper: padding transfer rejected")
		}
		k.transferQueue = append(k.transferQueue, tx)
	}
	return nil
}

// handleAddBlock enqueues a deposit or exit proto-block; if no transfers
// are currently queued it drains the proto-block queue immediately rather
// than waiting for a transfer batch to trigger the drain.
func (k *Keeper) handleAddBlock(ctx context.Context, block ProtoBlock) {
	k.protoQueue = append(k.protoQueue, block)
	if len(k.transferQueue) == 0 {
		k.drainProtoQueue(ctx)
	}
}
