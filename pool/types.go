// Package pool defines the wire-level value types shared by the aggregator:
// pubkeys, solutions, challenges, contributions and the reward event emitted
// by the chain once a round settles.
package pool

import (
	"encoding/binary"
	"time"

	"github.com/mr-tron/base58"
)

// PubkeySize is the width of an on-chain account address.
const PubkeySize = 32

// Pubkey is a raw on-chain account address.
type Pubkey [PubkeySize]byte

// String renders the pubkey as base58, the wire encoding used by /contribute
// payloads and member-PDA strings.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// ParsePubkey decodes a base58-encoded pubkey.
func ParsePubkey(s string) (Pubkey, error) {
	var p Pubkey
	b, err := base58.Decode(s)
	if err != nil {
		return p, err
	}
	if len(b) != PubkeySize {
		return p, ErrBadPubkeyLength
	}
	copy(p[:], b)
	return p, nil
}

// DecodeSignature decodes a base58-encoded Ed25519 signature.
func DecodeSignature(s string) ([]byte, error) {
	return base58.Decode(s)
}

// Less orders pubkeys lexicographically on their raw bytes. Used to produce
// a deterministic attestation ordering (SPEC_FULL.md §4.2, §9).
func (p Pubkey) Less(other Pubkey) bool {
	for i := range p {
		if p[i] != other[i] {
			return p[i] < other[i]
		}
	}
	return false
}

// DigestSize is the width of a solution's hash digest.
const DigestSize = 16

// NonceSize is the width of a solution's nonce.
const NonceSize = 8

// Solution is a candidate answer to the current challenge: a 16-byte digest
// and an 8-byte little-endian nonce, as produced by a worker's puzzle search.
type Solution struct {
	D [DigestSize]byte
	N [NonceSize]byte
}

// Nonce returns the nonce as a little-endian uint64.
func (s Solution) Nonce() uint64 {
	return binary.LittleEndian.Uint64(s.N[:])
}

// Bytes returns the canonical byte serialization of the solution, the
// message over which the client's signature is computed.
func (s Solution) Bytes() []byte {
	b := make([]byte, 0, DigestSize+NonceSize)
	b = append(b, s.D[:]...)
	b = append(b, s.N[:]...)
	return b
}

// Challenge is the puzzle parameters in force for the current round.
// Immutable within a round; replaced atomically at rotation.
type Challenge struct {
	// ChallengeDigest seeds is_valid_digest checks for submitted solutions.
	ChallengeDigest [32]byte
	// LastHashAt is the on-chain pool's last_hash_at at challenge issuance.
	// Strictly monotonic across rounds.
	LastHashAt int64
	// MinDifficulty is the minimum accepted leading-zero count.
	MinDifficulty uint32
	// CutoffTimeSecs is the number of seconds from round start after which
	// no further contributions are accepted.
	CutoffTimeSecs uint64
}

// BufferOperator is the operator's share of the client cutoff buffer. It
// only enters BufferClient; the driver itself closes the window at exactly
// CutoffTimeSecs, with no slack added.
const BufferOperator = 3

// BufferClient is the asymmetric window clients observe so a well-behaved
// client's last submission lands inside the server's strict cutoff.
const BufferClient = 2 + BufferOperator

// ClientCutoff returns the cutoff a client should treat as authoritative.
func (c Challenge) ClientCutoff() uint64 {
	if c.CutoffTimeSecs <= BufferClient {
		return 0
	}
	return c.CutoffTimeSecs - BufferClient
}

// Contribution is a validated, scored submission from a pool member.
// Equality and identity for deduplication purposes is Member alone.
type Contribution struct {
	Member   Pubkey
	Score    uint64
	Solution Solution
}

// Winner is the best solution seen so far in the round.
type Winner struct {
	Solution   Solution
	Difficulty uint32
}

// BoostEvent is a single boost stream's on-chain reward for the round.
type BoostEvent struct {
	Mint   Pubkey
	Reward uint64
}

// RewardsEvent is the on-chain settlement outcome for one submitted round,
// delivered once on the rewards channel per round.
type RewardsEvent struct {
	Base    uint64
	Boost1  *BoostEvent
	Boost2  *BoostEvent
	Boost3  *BoostEvent
}

// MemberAmount is one entry of an attribution vector: a member PDA string
// paired with the token amount credited to it.
type MemberAmount struct {
	MemberPDA string
	Amount    uint64
}

// SettledRound is a recent-history record of a round's on-chain submission,
// kept for replay diagnostics only; it is not an attribution durability
// guarantee (SPEC_FULL.md §4.9, §9).
type SettledRound struct {
	LastHashAt int64
	Attestation [32]byte
	Signature   string
	SettledAt   time.Time
}

// StakerBalances maps a stake authority to its snapshotted balance for one
// boost mint.
type StakerBalances map[Pubkey]uint64

// StakerSnapshot maps each active boost mint to its staker balances, taken
// once at round start and held fixed for the round's duration.
type StakerSnapshot map[Pubkey]StakerBalances
