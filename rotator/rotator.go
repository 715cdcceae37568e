// Package rotator implements ChallengeRotator (SPEC_FULL.md §4.7): after a
// round's submission settles, fetch the next challenge, retrying a bounded
// number of times while on-chain state catches up.
//
// The retry shape — a fixed attempt ceiling with a flat sleep between
// attempts, returning a fatal error once exhausted — mirrors the Rust
// original's update_challenge loop (original_source/server/src/aggregator.rs)
// adapted to the teacher's idiom of small, typed sentinel errors surfaced up
// through poolerr rather than panics.
package rotator

import (
	"context"
	"time"

	"github.com/berith-pool/poold/chain"
	"github.com/berith-pool/poold/logging"
	"github.com/berith-pool/poold/pool"
	"github.com/berith-pool/poold/poolerr"
)

// MaxAttempts and RetryDelay bound the rotation retry loop (SPEC_FULL.md
// §4.7).
const (
	MaxAttempts = 10
	RetryDelay  = time.Second
)

// Rotator fetches the next challenge from the chain, retrying while the
// on-chain pool has not yet advanced past the round just submitted.
type Rotator struct {
	client chain.Client
	log    *logging.Logger
	sleep  func(time.Duration)
}

// New constructs a Rotator over the given chain client.
func New(client chain.Client, log *logging.Logger) *Rotator {
	return &Rotator{client: client, log: log, sleep: time.Sleep}
}

// Rotate polls for a pool whose last_hash_at has advanced past
// priorLastHashAt, refreshes the challenge from the matching proof account,
// and returns it. After MaxAttempts failed attempts it returns a fatal
// internal error (SPEC_FULL.md §4.7, §7).
func (r *Rotator) Rotate(ctx context.Context, priorLastHashAt int64) (pool.Challenge, uint64, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if attempt > 0 {
			r.sleep(RetryDelay)
		}

		p, err := r.client.GetPool(ctx)
		if err != nil {
			r.log.Warn("rotate: get pool failed", "attempt", attempt, "err", err)
			continue
		}
		if p.LastHashAt <= priorLastHashAt {
			continue
		}

		proof, err := r.client.GetProof(ctx)
		if err != nil {
			r.log.Warn("rotate: get proof failed", "attempt", attempt, "err", err)
			continue
		}

		return pool.Challenge{
			ChallengeDigest: proof.Challenge,
			LastHashAt:      p.LastHashAt,
			MinDifficulty:   proof.MinDifficulty,
			CutoffTimeSecs:  proof.CutoffTimeSecs,
		}, p.LastTotalMembers, nil
	}
	return pool.Challenge{}, 0, poolerr.Internal("challenge rotation exhausted retries", nil)
}
