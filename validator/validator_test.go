package validator

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/berith-pool/poold/pool"
	"github.com/berith-pool/poold/poolerr"
	"github.com/berith-pool/poold/powhash"
)

type fixedView struct{ c pool.Challenge }

func (f fixedView) CurrentChallenge() pool.Challenge { return f.c }

// findSolution brute-forces a nonce that clears minDifficulty for the given
// challenge digest; the digest bytes produced by powhash's own digest
// function are used so the fixture is self-consistent.
func findSolution(t *testing.T, challenge [32]byte, minDifficulty uint32) pool.Solution {
	t.Helper()
	for n := uint64(0); n < 1_000_000; n++ {
		var s pool.Solution
		for i := 0; i < 8; i++ {
			s.N[i] = byte(n >> (8 * i))
		}
		s.D = powhash.ComputeDigest(challenge, s.N)
		if powhash.Difficulty(challenge, s) >= minDifficulty {
			return s
		}
	}
	t.Fatal("no solution found in search budget")
	return pool.Solution{}
}

func TestValidatorAcceptsValidContribution(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	challenge := pool.Challenge{MinDifficulty: 1}
	sol := findSolution(t, challenge.ChallengeDigest, challenge.MinDifficulty)
	sig := ed25519.Sign(priv, sol.Bytes())

	var authority pool.Pubkey
	copy(authority[:], pub)
	var sigArr [ed25519.SignatureSize]byte
	copy(sigArr[:], sig)

	v := New(fixedView{challenge})
	c, err := v.Validate(Payload{Authority: authority, Solution: sol, Signature: sigArr})
	require.NoError(t, err)
	require.Equal(t, authority, c.Member)
	require.Equal(t, sol, c.Solution)
	require.GreaterOrEqual(t, c.Score, uint64(1))
}

func TestValidatorRejectsBadSignature(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	otherPub, _, _ := ed25519.GenerateKey(nil)

	challenge := pool.Challenge{MinDifficulty: 1}
	sol := findSolution(t, challenge.ChallengeDigest, challenge.MinDifficulty)
	sig := ed25519.Sign(priv, sol.Bytes())

	var authority pool.Pubkey
	copy(authority[:], otherPub) // signed by a different key than claimed
	var sigArr [ed25519.SignatureSize]byte
	copy(sigArr[:], sig)

	v := New(fixedView{challenge})
	_, err := v.Validate(Payload{Authority: authority, Solution: sol, Signature: sigArr})
	require.Error(t, err)
	require.True(t, poolerr.Is(err, poolerr.KindValidation))
}

func TestValidatorRejectsBelowMinDifficulty(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	challenge := pool.Challenge{MinDifficulty: 40} // unreachable in the search budget
	sol := findSolution(t, challenge.ChallengeDigest, 0)
	sig := ed25519.Sign(priv, sol.Bytes())

	var authority pool.Pubkey
	copy(authority[:], pub)
	var sigArr [ed25519.SignatureSize]byte
	copy(sigArr[:], sig)

	v := New(fixedView{challenge})
	_, err := v.Validate(Payload{Authority: authority, Solution: sol, Signature: sigArr})
	require.Error(t, err)
	require.True(t, poolerr.Is(err, poolerr.KindValidation))
}

func TestValidatorRejectsInvalidDigest(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	challenge := pool.Challenge{MinDifficulty: 0}
	sol := findSolution(t, challenge.ChallengeDigest, 0)
	sol.D[0] ^= 0xFF // corrupt the digest after signing decision inputs
	sig := ed25519.Sign(priv, sol.Bytes())

	var authority pool.Pubkey
	copy(authority[:], pub)
	var sigArr [ed25519.SignatureSize]byte
	copy(sigArr[:], sig)

	v := New(fixedView{challenge})
	_, err := v.Validate(Payload{Authority: authority, Solution: sol, Signature: sigArr})
	require.Error(t, err)
	require.True(t, poolerr.Is(err, poolerr.KindValidation))
}
