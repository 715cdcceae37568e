// Package validator implements ContributionValidator (SPEC_FULL.md §4.1):
// it authenticates a submitted solution, checks it clears the round's
// minimum difficulty, and reverifies the proof-of-work digest before the
// contribution is ever allowed to touch round state.
package validator

import (
	"crypto/ed25519"

	"github.com/berith-pool/poold/pool"
	"github.com/berith-pool/poold/poolerr"
	"github.com/berith-pool/poold/powhash"
)

// ChallengeView is the read-only slice of the current round's challenge a
// validator needs. Ingress handlers take only a read lock to obtain it
// (SPEC_FULL.md §5 Shared state).
type ChallengeView interface {
	CurrentChallenge() pool.Challenge
}

// Payload is the decoded /contribute request body.
type Payload struct {
	Authority pool.Pubkey
	Solution  pool.Solution
	Signature [ed25519.SignatureSize]byte
}

// Validator performs the three checks of SPEC_FULL.md §4.1, in order,
// failing fast on the first violation.
type Validator struct {
	view ChallengeView
}

// New constructs a Validator reading challenge parameters from view.
func New(view ChallengeView) *Validator {
	return &Validator{view: view}
}

// Validate runs the three-step check and returns a ready-to-enqueue
// Contribution on success, or a *poolerr.Error (KindValidation) naming the
// first failed check.
func (v *Validator) Validate(p Payload) (pool.Contribution, error) {
	challenge := v.view.CurrentChallenge()

	// 1. signature is a valid Ed25519 signature by authority over the
	// solution's canonical byte serialization.
	msg := p.Solution.Bytes()
	if !ed25519.Verify(p.Authority[:], msg, p.Signature[:]) {
		return pool.Contribution{}, poolerr.Validation(poolerr.CodeInvalidSignature, "invalid signature")
	}

	// 2. difficulty(solution) >= challenge.min_difficulty.
	difficulty := powhash.Difficulty(challenge.ChallengeDigest, p.Solution)
	if difficulty < challenge.MinDifficulty {
		return pool.Contribution{}, poolerr.Validation(poolerr.CodeBelowMinDifficulty, "solution below minimum difficulty")
	}

	// 3. the server reverifies the claimed proof of work.
	if !powhash.IsValidDigest(challenge.ChallengeDigest, p.Solution.N, p.Solution.D) {
		return pool.Contribution{}, poolerr.Validation(poolerr.CodeInvalidDigest, "invalid digest")
	}

	return pool.Contribution{
		Member:   p.Authority,
		Score:    powhash.Score(difficulty),
		Solution: p.Solution,
	}, nil
}

// Difficulty exposes the recomputed difficulty for a solution against the
// given challenge digest, for callers that need it after Validate already
// confirmed correctness. The driver computes it with powhash.Difficulty
// directly.
func Difficulty(challenge pool.Challenge, s pool.Solution) uint32 {
	return powhash.Difficulty(challenge.ChallengeDigest, s)
}
