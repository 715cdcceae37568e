// Package submitter implements Submitter (SPEC_FULL.md §4.4): build the
// auth and submit instructions for the round's winning solution, pick a bus
// via busselect, and dispatch the bundle through a ChainClient.
package submitter

import (
	"context"
	"encoding/binary"

	"github.com/berith-pool/poold/busselect"
	"github.com/berith-pool/poold/chain"
	"github.com/berith-pool/poold/pool"
)

// Submitter builds and dispatches the single auth+submit bundle a round
// produces.
type Submitter struct {
	client chain.Client
	rand   busselect.Rand
}

// New constructs a Submitter over the given chain client. rand is the
// source busselect.Select draws its seed from; production callers pass
// busselect.DefaultRand.
func New(client chain.Client, rand busselect.Rand) *Submitter {
	return &Submitter{client: client, rand: rand}
}

// Submit fetches bus balances, selects one, builds the instruction bundle
// for the winning solution and attestation, and dispatches it with the
// fixed compute budget of SPEC_FULL.md §4.3.
func (s *Submitter) Submit(ctx context.Context, poolAuthority pool.Pubkey, winner pool.Winner, attestation [32]byte) (string, error) {
	buses, err := s.client.GetBusBalances(ctx)
	if err != nil {
		return "", err
	}
	chosen := busselect.Select(s.rand, toBuses(buses))

	authIx := buildAuthIx(poolAuthority)
	submitIx := buildSubmitIx(chosen.Address, winner, attestation)

	return s.client.Submit(ctx, []chain.Instruction{authIx, submitIx}, chain.ComputeUnitLimit, chain.ComputeUnitPriceMicroLamports)
}

func toBuses(accts []chain.BusAccount) []busselect.Bus {
	out := make([]busselect.Bus, len(accts))
	for i, a := range accts {
		out[i] = busselect.Bus{Address: a.Address.String(), Balance: a.Rewards, Readable: a.Readable}
	}
	return out
}

// buildAuthIx constructs the Auth instruction naming the pool authority
// that must co-sign the round's submission.
func buildAuthIx(poolAuthority pool.Pubkey) chain.Instruction {
	return chain.Instruction{Tag: "auth", Data: poolAuthority[:]}
}

// buildSubmitIx constructs the Submit instruction carrying the chosen bus,
// the winning solution, and the attestation commitment over the round's
// contribution set.
func buildSubmitIx(bus string, winner pool.Winner, attestation [32]byte) chain.Instruction {
	data := make([]byte, 0, len(bus)+pool.DigestSize+pool.NonceSize+32+4)
	data = append(data, []byte(bus)...)
	data = append(data, winner.Solution.D[:]...)
	data = append(data, winner.Solution.N[:]...)
	data = append(data, attestation[:]...)
	diff := make([]byte, 4)
	binary.LittleEndian.PutUint32(diff, winner.Difficulty)
	data = append(data, diff...)
	return chain.Instruction{Tag: "submit", Data: data}
}
