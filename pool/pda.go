package pool

import "golang.org/x/crypto/sha3"

// pdaMarker namespaces program-derived addresses so member and pool PDAs
// never collide even if seeds overlap.
type pdaMarker byte

const (
	markerPool   pdaMarker = 1
	markerMember pdaMarker = 2
)

// derive computes a deterministic program-derived address from a marker and
// a sequence of seed byte-slices. The real on-chain program derivation
// (find_program_address with a bump search) is out of this server's scope
// (SPEC_FULL.md §1); this reproduces only the address the aggregator needs
// to address attribution entries by, which is sufficient because the
// aggregator never submits this address on-chain itself — it is an account
// key the program has already created during /register.
func derive(marker pdaMarker, seeds ...[]byte) Pubkey {
	h := sha3.New256()
	h.Write([]byte{byte(marker)})
	for _, s := range seeds {
		h.Write(s)
	}
	var out Pubkey
	copy(out[:], h.Sum(nil))
	return out
}

// PoolPDA derives the pool account address from its authority.
func PoolPDA(authority Pubkey) Pubkey {
	return derive(markerPool, authority[:])
}

// MemberPDA derives the member account address for (member, pool).
func MemberPDA(member, pool Pubkey) Pubkey {
	return derive(markerMember, member[:], pool[:])
}
