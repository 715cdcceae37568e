// Package busselect implements the bus-selection rule of SPEC_FULL.md §4.5:
// seed the candidate with a uniformly random bus index, then scan the
// fetched balances and replace the candidate with any bus whose balance
// strictly exceeds the best seen so far.
//
// This mirrors the teacher's candidate/queue selection style in
// berith/selection/candidates.go — a weighted pick seeded by randomness and
// then refined by a deterministic scan — adapted here from staking-weight
// selection to reward-balance selection.
package busselect

import "math/rand"

// Bus is one account's observed state in a bus-balance fetch.
type Bus struct {
	Address string
	Balance uint64
	// Readable is false when the account fetch failed or decoded no data;
	// such buses are never promoted over the random seed.
	Readable bool
}

// Rand is the subset of math/rand.Rand that Select needs, so callers can
// inject a deterministic source in tests.
type Rand interface {
	Intn(n int) int
}

// Select returns the bus the round should submit against: a uniformly
// random seed among the candidates, promoted to any bus whose balance
// strictly exceeds the best seen so far (SPEC_FULL.md §4.5, §8 Bus
// selection invariant). When all balances are zero or unreadable, the
// randomly seeded bus is returned unchanged.
func Select(r Rand, buses []Bus) Bus {
	if len(buses) == 0 {
		return Bus{}
	}
	seedIdx := r.Intn(len(buses))
	best := buses[seedIdx]
	var bestBalance uint64
	if best.Readable {
		bestBalance = best.Balance
	}

	for _, b := range buses {
		if !b.Readable {
			continue
		}
		if b.Balance > bestBalance {
			bestBalance = b.Balance
			best = b
		}
	}
	return best
}

// DefaultRand is a convenience wrapper over the package-level math/rand
// source, used by production callers that don't need determinism.
var DefaultRand Rand = defaultRand{}

type defaultRand struct{}

func (defaultRand) Intn(n int) int { return rand.Intn(n) }
