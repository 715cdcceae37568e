// Package rewards implements RewardsAllocator (SPEC_FULL.md §4.6): given a
// settled RewardsEvent, it apportions base-mine and up-to-three boost
// streams across miners, stakers, and the operator commission.
//
// Every multiply-then-divide is carried out in holiman/uint256's fixed-width
// 256-bit type, wide enough that a uint64 x uint64 product never overflows
// (the required 128-bit width is a subset of it); this mirrors the
// teacher's own use of wide big.Int arithmetic for stake-weighted point
// calculations in berith/staking/point.go, swapped here for a fixed-width
// type that avoids big.Int's heap allocation.
package rewards

import (
	"github.com/holiman/uint256"

	"github.com/berith-pool/poold/pool"
	"github.com/berith-pool/poold/poolerr"
)

// Config carries the commission split. Commission + Commission must sum to
// at most 100; Config values are validated once at process startup
// (SPEC_FULL.md §9 Commission overflow), never at round time.
type Config struct {
	OperatorCommissionPct uint64
	StakerCommissionPct   uint64
}

// Result bundles the three attribution vectors produced for one round.
type Result struct {
	Miners   []pool.MemberAmount
	Boost1Stakers []pool.MemberAmount
	Boost2Stakers []pool.MemberAmount
	Boost3Stakers []pool.MemberAmount
	Operator pool.MemberAmount
}

// mulDivU64 computes a*b/c using 256-bit intermediate width, truncating on
// division and returning 0 for a zero denominator instead of panicking
// (SPEC_FULL.md §4.6).
func mulDivU64(a, b, c uint64) uint64 {
	if c == 0 {
		return 0
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	q := new(uint256.Int).Div(prod, uint256.NewInt(c))
	return q.Uint64()
}

// Allocate computes the miners, per-boost stakers, and operator attribution
// vectors for a settled round (SPEC_FULL.md §4.6).
//
// contributions and stakers are the round's authoritative snapshots:
// contributions drives the miner denominator D = total_score, and stakers
// must carry an entry for every boost mint actually present in the
// RewardsEvent or this returns an Internal error (a declared boost stream
// with no staker snapshot is an invariant violation, never a zero payout).
func Allocate(
	poolPDA pool.Pubkey,
	operatorAuthority pool.Pubkey,
	contributions map[pool.Pubkey]pool.Contribution,
	totalScore uint64,
	stakers pool.StakerSnapshot,
	rewardsEvent pool.RewardsEvent,
	cfg Config,
) (Result, error) {
	var res Result

	minerPot := mulDivU64(rewardsEvent.Base, 100-cfg.OperatorCommissionPct, 100)

	boosts := []*pool.BoostEvent{rewardsEvent.Boost1, rewardsEvent.Boost2, rewardsEvent.Boost3}
	var stakerVectors [3][]pool.MemberAmount

	operatorMine := mulDivU64(rewardsEvent.Base, cfg.OperatorCommissionPct, 100)
	var operatorStake uint64

	for i, boost := range boosts {
		if boost == nil {
			continue
		}
		minerResidualPct := uint64(100) - cfg.OperatorCommissionPct - cfg.StakerCommissionPct
		minerPot += mulDivU64(boost.Reward, minerResidualPct, 100)

		operatorStake += mulDivU64(boost.Reward, cfg.OperatorCommissionPct, 100)

		balances, ok := stakers[boost.Mint]
		if !ok {
			return Result{}, poolerr.Internal("missing staker balances for declared boost mint", nil)
		}
		stakePot := mulDivU64(boost.Reward, cfg.StakerCommissionPct, 100)

		var denom uint64
		for _, bal := range balances {
			denom += bal
		}

		vec := make([]pool.MemberAmount, 0, len(balances))
		for authority, bal := range balances {
			share := mulDivU64(bal, stakePot, denom)
			vec = append(vec, pool.MemberAmount{
				MemberPDA: pool.MemberPDA(authority, poolPDA).String(),
				Amount:    share,
			})
		}
		stakerVectors[i] = vec
	}

	res.Boost1Stakers = stakerVectors[0]
	res.Boost2Stakers = stakerVectors[1]
	res.Boost3Stakers = stakerVectors[2]

	minerVec := make([]pool.MemberAmount, 0, len(contributions))
	for member, c := range contributions {
		share := mulDivU64(c.Score, minerPot, totalScore)
		minerVec = append(minerVec, pool.MemberAmount{
			MemberPDA: pool.MemberPDA(member, poolPDA).String(),
			Amount:    share,
		})
	}
	res.Miners = minerVec

	res.Operator = pool.MemberAmount{
		MemberPDA: pool.MemberPDA(operatorAuthority, poolPDA).String(),
		Amount:    operatorMine + operatorStake,
	}

	return res, nil
}
