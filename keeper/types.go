package keeper

import (
	"context"
	"math/big"

	"github.com/plasmafold/rollup/account"
	"github.com/plasmafold/rollup/field"
	"github.com/plasmafold/rollup/request"
)

// ProtoBlockKind discriminates the three shapes a proto-block can take.
// Modeled as a tagged union rather than an interface so the keeper's
// dispatch switch is exhaustive and checkable at a single site.
type ProtoBlockKind int

const (
	ProtoBlockTransfer ProtoBlockKind = iota
	ProtoBlockDeposit
	ProtoBlockExit
)

func (k ProtoBlockKind) String() string {
	switch k {
	case ProtoBlockTransfer:
		return "transfer"
	case ProtoBlockDeposit:
		return "deposit"
	case ProtoBlockExit:
		return "exit"
	default:
		return "unknown"
	}
}

// ProtoBlock is a not-yet-finalized unit of work queued for the next
// block: either a batch of deposits or a batch of exits. Transfer blocks
// are assembled internally from the transfer queue rather than submitted
// as a ProtoBlock (see AddTransferTx).
type ProtoBlock struct {
	Kind     ProtoBlockKind
	BatchID  uint64
	Deposits []request.Deposit
	Exits    []request.Exit
}

// TransferBlockPayload is a finalized transfer block's contents.
type TransferBlockPayload struct {
	TotalFees *big.Int
	Txs       []request.Transfer
}

// DepositBlockPayload is a finalized deposit block's contents.
type DepositBlockPayload struct {
	BatchID uint64
	Txs     []request.Deposit
}

// ExitBlockPayload is a finalized exit block's contents, each tx already
// augmented with the balance withdrawn.
type ExitBlockPayload struct {
	BatchID uint64
	Txs     []request.Exit
}

// Block is a finalized, tree-applied unit the committer receives. Exactly
// one of Transfer, Deposit, Exit is populated, selected by Kind.
type Block struct {
	Number   uint64
	NewRoot  field.Element
	Kind     ProtoBlockKind
	Transfer *TransferBlockPayload
	Deposit  *DepositBlockPayload
	Exit     *ExitBlockPayload
}

// CommitRequest is what the keeper forwards to the committer once a block
// is finalized: the block itself and every account the block touched, so
// the committer/prover can build witnesses without re-reading the whole
// tree.
type CommitRequest struct {
	Block           Block
	UpdatedAccounts map[request.AccountID]account.Account
}

// NetworkStatus is the read-mostly snapshot GetNetworkStatus returns.
type NetworkStatus struct {
	BlockNumber          uint64
	OutstandingTransfers int
}

// Store is the persistence boundary the keeper reads from at startup.
// Implementations (a database, a snapshot file) are out of scope for this
// core; the keeper depends only on this interface.
type Store interface {
	Load(ctx context.Context) (lastCommittedBlock uint64, accounts map[request.AccountID]account.Account, err error)
}

// Committer receives finalized blocks for proving and on-chain submission.
// A real implementation hands the request to a prover goroutine and a
// chain-submission pipeline; out of scope for this core.
type Committer interface {
	Commit(ctx context.Context, req CommitRequest) error
}

// AddTransferOutcome is the reply to AddTransferTx: either the transfer
// was applied and queued, or it was rejected with no state change.
type AddTransferOutcome struct {
	BlockNumber uint64
	Err         error // an *kerrors.Error of kind InvalidRequest or RateLimited on rejection
}

// GetAccountOutcome is the reply to GetAccount.
type GetAccountOutcome struct {
	Account account.Account
	Found   bool
}
