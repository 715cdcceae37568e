// Package chain defines the aggregator's view of the blockchain: reading
// the pool/proof/bus accounts, submitting signed instruction bundles, and
// streaming reward settlement events. The wire protocol and the on-chain
// program itself are external collaborators (SPEC_FULL.md §1) — only the
// interface the rest of the aggregator depends on lives here, plus one
// concrete JSON-RPC implementation of it.
package chain

import (
	"context"

	"github.com/berith-pool/poold/pool"
)

// PoolAccount is the subset of the on-chain pool account the aggregator
// reads each round.
type PoolAccount struct {
	LastHashAt       int64
	LastTotalMembers uint64
}

// ProofAccount is the subset of the on-chain proof account the aggregator
// reads to learn the next challenge.
type ProofAccount struct {
	Challenge     [32]byte
	CutoffTimeSecs uint64
	MinDifficulty uint32
}

// BusAccount is one bus's on-chain balance, as read by a bulk account fetch.
type BusAccount struct {
	Address  pool.Pubkey
	Rewards  uint64
	Readable bool
}

// Instruction is an opaque, chain-specific instruction payload. The
// aggregator never interprets these; it only assembles and hands the bundle
// to Client.Submit.
type Instruction struct {
	Tag  string
	Data []byte
}

// Client is everything RoundDriver, Submitter, and ChallengeRotator need
// from the chain.
type Client interface {
	// GetPool fetches the current pool account.
	GetPool(ctx context.Context) (PoolAccount, error)
	// GetProof fetches the current proof account.
	GetProof(ctx context.Context) (ProofAccount, error)
	// GetBusBalances fetches every bus account's balance in one round trip.
	GetBusBalances(ctx context.Context) ([]BusAccount, error)
	// GetStakers fetches the staker balances for one boost mint.
	GetStakers(ctx context.Context, mint pool.Pubkey) (pool.StakerBalances, error)

	// Submit dispatches a signed instruction bundle with the given compute
	// budget and returns the confirmed transaction signature, or an error
	// if confirmation fails (SPEC_FULL.md §4.4). The round is not reset on
	// error; the caller decides how to recover.
	Submit(ctx context.Context, ixs []Instruction, cuLimit, cuPriceMicroLamports uint64) (signature string, err error)

	// Rewards returns the single-producer/single-consumer channel the
	// aggregator listens on for on-chain settlement events. Closing this
	// channel is a fatal condition for the driver (SPEC_FULL.md §5).
	Rewards() <-chan pool.RewardsEvent

	// AttributeMembers performs the periodic on-chain batch attribution
	// call described in SPEC_FULL.md §4.8.
	AttributeMembers(ctx context.Context) error
}

// ComputeUnitLimit and ComputeUnitPrice are the fixed compute budget the
// aggregator requests for its one submit transaction per round
// (SPEC_FULL.md §4.3 Submitting).
const (
	ComputeUnitLimit            = 1_500_000
	ComputeUnitPriceMicroLamports = 500_000
)
