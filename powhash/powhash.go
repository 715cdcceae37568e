// Package powhash reimplements the server side of the puzzle verification
// contract the original drillx-based worker search relies on: given a
// challenge digest and a candidate solution, recompute the solution's hash
// and read off its difficulty (leading zero bits), and check the solution's
// digest is the one the hash function actually produces for that nonce.
//
// The pool never re-executes the search itself (SPEC_FULL.md §1 Non-goals);
// it only reverifies a claimed answer, which is cheap relative to search.
package powhash

import (
	"golang.org/x/crypto/sha3"

	"github.com/berith-pool/poold/pool"
)

// Hash is the fixed-width output of hashing a solution against a challenge.
type Hash [32]byte

// Difficulty returns the number of leading zero bits in h.
func (h Hash) Difficulty() uint32 {
	var count uint32
	for _, b := range h {
		if b == 0 {
			count += 8
			continue
		}
		for mask := byte(0x80); mask != 0; mask >>= 1 {
			if b&mask != 0 {
				return count
			}
			count++
		}
	}
	return count
}

// ComputeDigest derives the digest a correct solution must carry for the
// given challenge and nonce: SHA3-256(challenge || nonce).
func ComputeDigest(challenge [32]byte, nonce [pool.NonceSize]byte) [pool.DigestSize]byte {
	h := sha3.New256()
	h.Write(challenge[:])
	h.Write(nonce[:])
	sum := h.Sum(nil)
	var digest [pool.DigestSize]byte
	copy(digest[:], sum[:pool.DigestSize])
	return digest
}

// IsValidDigest reports whether d is the digest the puzzle function
// produces for (challenge, nonce). This is the server's reverification of
// the claimed proof of work (SPEC_FULL.md §4.1.3).
func IsValidDigest(challenge [32]byte, nonce [pool.NonceSize]byte, d [pool.DigestSize]byte) bool {
	return ComputeDigest(challenge, nonce) == d
}

// SolutionHash returns the hash whose leading-zero count is the solution's
// difficulty: SHA3-256(challenge || digest || nonce).
func SolutionHash(challenge [32]byte, s pool.Solution) Hash {
	h := sha3.New256()
	h.Write(challenge[:])
	h.Write(s.D[:])
	h.Write(s.N[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Difficulty is a convenience wrapper returning SolutionHash(...).Difficulty().
func Difficulty(challenge [32]byte, s pool.Solution) uint32 {
	return SolutionHash(challenge, s).Difficulty()
}

// Score is 2^difficulty, the weight a contribution carries in miner
// attribution (SPEC_FULL.md §3 Contribution, §8 Score).
func Score(difficulty uint32) uint64 {
	return uint64(1) << difficulty
}
