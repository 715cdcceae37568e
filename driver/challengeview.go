package driver

import (
	"sync"

	"github.com/berith-pool/poold/pool"
)

// ChallengeView is the read/write lock guarding the single field ingress
// handlers need to read: the round's current challenge. It is the only
// piece of RoundState ever exposed outside the driver goroutine
// (SPEC_FULL.md §5 Shared state).
type ChallengeView struct {
	mu        sync.RWMutex
	challenge pool.Challenge
}

// CurrentChallenge satisfies validator.ChallengeView and the HTTP
// /challenge handler.
func (v *ChallengeView) CurrentChallenge() pool.Challenge {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.challenge
}

func (v *ChallengeView) set(c pool.Challenge) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.challenge = c
}
