// Package roundstate implements the aggregator's per-round state: the
// deduplicated contribution set, running score total, monotonic winner, and
// the attestation commitment over the accepted set (SPEC_FULL.md §3, §4.2).
//
// RoundState is exclusively owned by the RoundDriver goroutine; nothing
// else is permitted a reference into it. Callers outside the driver only
// ever hold a send handle to the ingress channel.
package roundstate

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/berith-pool/poold/logging"
	"github.com/berith-pool/poold/pool"
)

// State holds everything the driver accumulates for the round in progress.
type State struct {
	Challenge    pool.Challenge
	Contributions map[pool.Pubkey]pool.Contribution
	TotalScore   uint64
	Winner       *pool.Winner
	NumMembers   uint64
	Stakers      pool.StakerSnapshot

	log *logging.Logger
}

// New starts a fresh round for the given challenge and staker snapshot.
func New(challenge pool.Challenge, numMembers uint64, stakers pool.StakerSnapshot, log *logging.Logger) *State {
	return &State{
		Challenge:     challenge,
		Contributions: make(map[pool.Pubkey]pool.Contribution),
		NumMembers:    numMembers,
		Stakers:       stakers,
		log:           log,
	}
}

// Insert admits a contribution into the round. Identity for deduplication
// is Member alone: a second arrival from the same member in the same round
// is discarded with a warning log, never an error (SPEC_FULL.md §3, §4.2).
func (s *State) Insert(c pool.Contribution, difficulty uint32) {
	if _, exists := s.Contributions[c.Member]; exists {
		if s.log != nil {
			s.log.Warn("duplicate contribution discarded", "member", c.Member.String())
		}
		return
	}
	s.Contributions[c.Member] = c
	s.TotalScore += c.Score

	// Winner is replaced only if strictly better; ties keep the earlier
	// entrant (first-writer-wins, SPEC_FULL.md §3 Winner).
	if s.Winner == nil || difficulty > s.Winner.Difficulty {
		s.Winner = &pool.Winner{Solution: c.Solution, Difficulty: difficulty}
	}
}

// sortedMembers returns the contribution set's members ordered by ascending
// raw pubkey bytes, the deterministic ordering chosen to resolve the open
// question in SPEC_FULL.md §9.
func (s *State) sortedMembers() []pool.Pubkey {
	members := make([]pool.Pubkey, 0, len(s.Contributions))
	for m := range s.Contributions {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Less(members[j]) })
	return members
}

// Attestation commits to the exact contribution set: one line per
// contribution, "{member_base58} {hex(d)} {le_u64(n)}\n", in ascending
// pubkey order, SHA3-256 over the concatenation (SPEC_FULL.md §4.2, §6).
func (s *State) Attestation() [32]byte {
	var sb strings.Builder
	for _, member := range s.sortedMembers() {
		c := s.Contributions[member]
		sb.WriteString(member.String())
		sb.WriteByte(' ')
		sb.WriteString(hex.EncodeToString(c.Solution.D[:]))
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatUint(c.Solution.Nonce(), 10))
		sb.WriteByte('\n')
	}
	h := sha3.New256()
	h.Write([]byte(sb.String()))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// NumContributions reports the number of accepted contributions.
func (s *State) NumContributions() int { return len(s.Contributions) }
