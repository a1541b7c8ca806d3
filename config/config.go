// Package config holds the rollup core's compile-time and runtime
// parameters. Compile-time parameters are constants because the circuits
// are parameterized over them at construction; runtime parameters live on
// a Config struct with documented defaults, overridable by environment
// variable.
package config

import (
	"math/big"
	"os"
	"strconv"
	"time"
)

// Compile-time parameters. Changing any of these changes the shape of the
// circuits and the wire format; they are not runtime-configurable.
const (
	// BalanceTreeDepth is the fixed depth of the sparse balance tree.
	BalanceTreeDepth = 24
	// BalanceBitWidth bounds every account balance to [0, 2^128).
	BalanceBitWidth = 128
	// NonceBitWidth bounds the per-account nonce.
	NonceBitWidth = 32
	// FrBitWidth is the full bit width of a BN-254 scalar field element;
	// FrCapacity (one less) is the packing capacity used for truncation.
	FrBitWidth         = 254
	FrCapacity         = FrBitWidth - 1
	AmountMantissaBits = 35
	AmountExponentBits = 5
	FeeMantissaBits    = 11
	FeeExponentBits    = 5
)

// Config holds runtime parameters, defaulted and then overridden from the
// environment by FromEnv.
type Config struct {
	// TransferBatchSize is the fixed number of transfers per block; the
	// keeper pads short batches with signed no-op transfers to reach it.
	TransferBatchSize int
	// DepositBatchSize and ExitBatchSize are the configured request counts
	// per deposit and exit batch. The keeper does not read them: it
	// assembles each submitted ProtoBlock whole, whatever its length.
	DepositBatchSize int
	ExitBatchSize    int
	// PaddingInterval is how long the keeper waits for a transfer batch to
	// fill before padding and finalizing it anyway.
	PaddingInterval time.Duration
	// ProverTimeout bounds how long the prover may take on one block.
	ProverTimeout time.Duration
	// ProverTimerTick and ProverCycleWait pace the prover's polling loop.
	ProverTimerTick time.Duration
	ProverCycleWait time.Duration
	// KeysPath is the directory the trusted-setup keys are loaded from.
	KeysPath string
	// MaxOutstandingTransfers bounds the number of transfers awaiting
	// confirmation before new submissions are rate-limited.
	MaxOutstandingTransfers int
	// PaddingPrivateKey signs padding transfers. It must be supplied by
	// configuration; this package never embeds a literal key.
	PaddingPrivateKey *big.Int
	// PaddingAccountID is the account padding transfers are sent from.
	PaddingAccountID uint64
}

// Default returns the documented defaults for every runtime parameter
// except PaddingPrivateKey, which has none and must be supplied by the
// deployment (see FromEnv).
func Default() Config {
	return Config{
		TransferBatchSize:       8,
		DepositBatchSize:        1,
		ExitBatchSize:           1,
		PaddingInterval:         60 * time.Second,
		ProverTimeout:           60 * time.Second,
		ProverTimerTick:         5 * time.Second,
		ProverCycleWait:         5 * time.Second,
		KeysPath:                "keys",
		MaxOutstandingTransfers: 120000,
		PaddingAccountID:        2,
	}
}

// FromEnv returns Default() with every PLASMAFOLD_*-prefixed environment
// variable applied over it, following this codebase's defaults-plus-
// override convention rather than a flags or viper-style library.
func FromEnv() Config {
	c := Default()
	if v, ok := lookupInt("PLASMAFOLD_TRANSFER_BATCH_SIZE"); ok {
		c.TransferBatchSize = v
	}
	if v, ok := lookupInt("PLASMAFOLD_DEPOSIT_BATCH_SIZE"); ok {
		c.DepositBatchSize = v
	}
	if v, ok := lookupInt("PLASMAFOLD_EXIT_BATCH_SIZE"); ok {
		c.ExitBatchSize = v
	}
	if v, ok := lookupDuration("PLASMAFOLD_PADDING_INTERVAL"); ok {
		c.PaddingInterval = v
	}
	if v, ok := lookupDuration("PLASMAFOLD_PROVER_TIMEOUT"); ok {
		c.ProverTimeout = v
	}
	if v, ok := lookupDuration("PLASMAFOLD_PROVER_TIMER_TICK"); ok {
		c.ProverTimerTick = v
	}
	if v, ok := lookupDuration("PLASMAFOLD_PROVER_CYCLE_WAIT"); ok {
		c.ProverCycleWait = v
	}
	if v, ok := os.LookupEnv("PLASMAFOLD_KEYS_PATH"); ok {
		c.KeysPath = v
	}
	if v, ok := lookupInt("PLASMAFOLD_MAX_OUTSTANDING_TRANSFERS"); ok {
		c.MaxOutstandingTransfers = v
	}
	if v, ok := os.LookupEnv("PLASMAFOLD_PADDING_PRIVATE_KEY"); ok {
		if key, ok := new(big.Int).SetString(v, 16); ok {
			c.PaddingPrivateKey = key
		}
	}
	if v, ok := lookupInt("PLASMAFOLD_PADDING_ACCOUNT_ID"); ok {
		c.PaddingAccountID = uint64(v)
	}
	return c
}

func lookupInt(name string) (int, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupDuration(name string) (time.Duration, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
