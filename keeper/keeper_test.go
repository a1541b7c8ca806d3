package keeper

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/plasmafold/rollup/account"
	"github.com/plasmafold/rollup/config"
	"github.com/plasmafold/rollup/curve"
	"github.com/plasmafold/rollup/request"
)

// memStore is a fixed-seed Store fake: it hands a fresh deployment with a
// funded padding account to every New().
type memStore struct {
	lastBlock uint64
	accounts  map[request.AccountID]account.Account
}

func (s *memStore) Load(ctx context.Context) (uint64, map[request.AccountID]account.Account, error) {
	out := make(map[request.AccountID]account.Account, len(s.accounts))
	for id, acc := range s.accounts {
		out[id] = acc
	}
	return s.lastBlock, out, nil
}

// recordingCommitter collects every CommitRequest the keeper forwards.
type recordingCommitter struct {
	mu      sync.Mutex
	commits []CommitRequest
	done    chan struct{}
}

func newRecordingCommitter(want int) *recordingCommitter {
	return &recordingCommitter{done: make(chan struct{}, want)}
}

func (c *recordingCommitter) Commit(ctx context.Context, req CommitRequest) error {
	c.mu.Lock()
	c.commits = append(c.commits, req)
	c.mu.Unlock()
	select {
	case c.done <- struct{}{}:
	default:
	}
	return nil
}

func (c *recordingCommitter) waitFor(n int, timeout time.Duration) []CommitRequest {
	deadline := time.After(timeout)
	for {
		c.mu.Lock()
		got := len(c.commits)
		c.mu.Unlock()
		if got >= n {
			c.mu.Lock()
			out := append([]CommitRequest(nil), c.commits...)
			c.mu.Unlock()
			return out
		}
		select {
		case <-c.done:
		case <-deadline:
			return nil
		}
	}
}

func testPaddingKey() *big.Int {
	return curve.NewPrivateKey(big.NewInt(424242)).Scalar
}

func newTestKeeper(t *testing.T, accounts map[request.AccountID]account.Account, committer Committer) *Keeper {
	t.Helper()
	cfg := config.Default()
	cfg.TransferBatchSize = 2
	cfg.PaddingPrivateKey = testPaddingKey()
	cfg.PaddingAccountID = 2

	store := &memStore{lastBlock: 0, accounts: accounts}
	k, err := New(context.Background(), cfg, store, committer)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go k.Run(ctx)
	return k
}

func fundedPaddingAccount() account.Account {
	sk := curve.PrivateKey{Scalar: testPaddingKey()}
	return account.Account{Balance: big.NewInt(0), Nonce: 0, PubKey: sk.Public().Point}
}

func TestAddTransferTxAppliesAndQueues(t *testing.T) {
	fromSK := curve.NewPrivateKey(big.NewInt(1))
	from := account.Account{Balance: big.NewInt(1000), Nonce: 0, PubKey: fromSK.Public().Point}
	to := account.Empty()

	committer := newRecordingCommitter(1)
	k := newTestKeeper(t, map[request.AccountID]account.Account{
		1: from,
		2: fundedPaddingAccount(),
		3: to,
	}, committer)

	tx := request.Transfer{From: 1, To: 3, AmountMantissa: 100, FeeMantissa: 1, Nonce: 0, GoodUntilBlock: 1000}
	tx.Signature = curve.Sign(fromSK, tx.SigningMessage())

	outcome, err := k.AddTransferTx(context.Background(), tx)
	if err != nil {
		t.Fatalf("AddTransferTx: %v", err)
	}
	if outcome.Err != nil {
		t.Fatalf("transfer rejected: %v", outcome.Err)
	}

	status, err := k.GetNetworkStatus(context.Background())
	if err != nil {
		t.Fatalf("GetNetworkStatus: %v", err)
	}
	if status.OutstandingTransfers != 1 {
		t.Fatalf("OutstandingTransfers = %d, want 1", status.OutstandingTransfers)
	}

	acc, err := k.GetAccount(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !acc.Found || acc.Account.Balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("recipient balance = %v, want 100", acc.Account.Balance)
	}
}

func TestAddTransferTxRejectsBadSignature(t *testing.T) {
	fromSK := curve.NewPrivateKey(big.NewInt(1))
	otherSK := curve.NewPrivateKey(big.NewInt(2))
	from := account.Account{Balance: big.NewInt(1000), Nonce: 0, PubKey: fromSK.Public().Point}

	committer := newRecordingCommitter(1)
	k := newTestKeeper(t, map[request.AccountID]account.Account{
		1: from,
		2: fundedPaddingAccount(),
	}, committer)

	tx := request.Transfer{From: 1, To: 3, AmountMantissa: 10, Nonce: 0, GoodUntilBlock: 1000}
	tx.Signature = curve.Sign(otherSK, tx.SigningMessage())

	outcome, err := k.AddTransferTx(context.Background(), tx)
	if err != nil {
		t.Fatalf("AddTransferTx: %v", err)
	}
	if outcome.Err == nil {
		t.Fatal("transfer with a bad signature was not rejected")
	}
}

func TestTransferBatchFillsAndCommits(t *testing.T) {
	fromSK := curve.NewPrivateKey(big.NewInt(5))
	from := account.Account{Balance: big.NewInt(1000), Nonce: 0, PubKey: fromSK.Public().Point}

	cfg := config.Default()
	cfg.TransferBatchSize = 1 // a single real transfer already fills the batch
	cfg.PaddingPrivateKey = testPaddingKey()
	cfg.PaddingAccountID = 2

	committer := newRecordingCommitter(1)
	store := &memStore{accounts: map[request.AccountID]account.Account{
		1: from,
		2: fundedPaddingAccount(),
	}}
	k, err := New(context.Background(), cfg, store, committer)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go k.Run(ctx)

	tx := request.Transfer{From: 1, To: 3, AmountMantissa: 10, Nonce: 0, GoodUntilBlock: 1000}
	tx.Signature = curve.Sign(fromSK, tx.SigningMessage())

	if _, err := k.AddTransferTx(context.Background(), tx); err != nil {
		t.Fatalf("AddTransferTx: %v", err)
	}

	commits := committer.waitFor(1, 2*time.Second)
	if len(commits) != 1 {
		t.Fatalf("got %d commits, want 1", len(commits))
	}
	block := commits[0].Block
	if block.Kind != ProtoBlockTransfer {
		t.Fatalf("block kind = %v, want transfer", block.Kind)
	}
	if len(block.Transfer.Txs) != 1 {
		t.Fatalf("transfer batch has %d txs, want 1", len(block.Transfer.Txs))
	}
}

func TestAddBlockDepositCommitsImmediately(t *testing.T) {
	committer := newRecordingCommitter(1)
	k := newTestKeeper(t, map[request.AccountID]account.Account{
		2: fundedPaddingAccount(),
	}, committer)

	sk := curve.NewPrivateKey(big.NewInt(9))
	pb := ProtoBlock{Kind: ProtoBlockDeposit, Deposits: []request.Deposit{
		{Into: 10, Amount: big.NewInt(500), PublicKey: sk.Public().Point},
	}}
	if err := k.AddBlock(context.Background(), pb); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}

	commits := committer.waitFor(1, 2*time.Second)
	if len(commits) != 1 {
		t.Fatalf("got %d commits, want 1", len(commits))
	}
	if commits[0].Block.Kind != ProtoBlockDeposit {
		t.Fatalf("block kind = %v, want deposit", commits[0].Block.Kind)
	}

	acc, err := k.GetAccount(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !acc.Found || acc.Account.Balance.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("deposited account balance = %v, want 500", acc.Account.Balance)
	}
}

func TestAddBlockExitZeroesBalance(t *testing.T) {
	sk := curve.NewPrivateKey(big.NewInt(4))
	holder := account.Account{Balance: big.NewInt(777), Nonce: 0, PubKey: sk.Public().Point}

	committer := newRecordingCommitter(1)
	k := newTestKeeper(t, map[request.AccountID]account.Account{
		5: holder,
		2: fundedPaddingAccount(),
	}, committer)

	pb := ProtoBlock{Kind: ProtoBlockExit, Exits: []request.Exit{{From: 5}}}
	if err := k.AddBlock(context.Background(), pb); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}

	commits := committer.waitFor(1, 2*time.Second)
	if len(commits) != 1 {
		t.Fatalf("got %d commits, want 1", len(commits))
	}
	exitTxs := commits[0].Block.Exit.Txs
	if len(exitTxs) != 1 || exitTxs[0].Amount.Cmp(big.NewInt(777)) != 0 {
		t.Fatalf("exit did not record the live balance as the withdrawn amount: %+v", exitTxs)
	}

	acc, err := k.GetAccount(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acc.Account.Balance.Sign() != 0 {
		t.Fatalf("exited account balance = %v, want 0", acc.Account.Balance)
	}
}

func TestTimerTickPadsAfterDeadline(t *testing.T) {
	fromSK := curve.NewPrivateKey(big.NewInt(6))
	from := account.Account{Balance: big.NewInt(1000), Nonce: 0, PubKey: fromSK.Public().Point}

	cfg := config.Default()
	cfg.TransferBatchSize = 5 // won't fill from one tx alone
	cfg.PaddingPrivateKey = testPaddingKey()
	cfg.PaddingAccountID = 2
	cfg.PaddingInterval = 10 * time.Millisecond

	committer := newRecordingCommitter(1)
	store := &memStore{accounts: map[request.AccountID]account.Account{
		1: from,
		2: fundedPaddingAccount(),
	}}
	k, err := New(context.Background(), cfg, store, committer)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go k.Run(ctx)

	tx := request.Transfer{From: 1, To: 3, AmountMantissa: 10, Nonce: 0, GoodUntilBlock: 1000}
	tx.Signature = curve.Sign(fromSK, tx.SigningMessage())
	if _, err := k.AddTransferTx(context.Background(), tx); err != nil {
		t.Fatalf("AddTransferTx: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if err := k.TimerTick(context.Background()); err != nil {
		t.Fatalf("TimerTick: %v", err)
	}

	commits := committer.waitFor(1, 2*time.Second)
	if len(commits) != 1 {
		t.Fatalf("got %d commits after timer tick, want 1", len(commits))
	}
	if len(commits[0].Block.Transfer.Txs) != 5 {
		t.Fatalf("padded batch has %d txs, want 5", len(commits[0].Block.Transfer.Txs))
	}
}
