package submitter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/berith-pool/poold/chain"
	"github.com/berith-pool/poold/pool"
)

type fakeClient struct {
	buses    []chain.BusAccount
	gotIxs   []chain.Instruction
	gotLimit uint64
	gotPrice uint64
	sig      string
	err      error
}

func (f *fakeClient) GetPool(ctx context.Context) (chain.PoolAccount, error)   { return chain.PoolAccount{}, nil }
func (f *fakeClient) GetProof(ctx context.Context) (chain.ProofAccount, error) { return chain.ProofAccount{}, nil }
func (f *fakeClient) GetBusBalances(ctx context.Context) ([]chain.BusAccount, error) {
	return f.buses, nil
}
func (f *fakeClient) GetStakers(ctx context.Context, mint pool.Pubkey) (pool.StakerBalances, error) {
	return nil, nil
}
func (f *fakeClient) Submit(ctx context.Context, ixs []chain.Instruction, cuLimit, cuPrice uint64) (string, error) {
	f.gotIxs = ixs
	f.gotLimit = cuLimit
	f.gotPrice = cuPrice
	return f.sig, f.err
}
func (f *fakeClient) Rewards() <-chan pool.RewardsEvent       { return nil }
func (f *fakeClient) AttributeMembers(ctx context.Context) error { return nil }

type zeroRand struct{}

func (zeroRand) Intn(n int) int { return 0 }

func TestSubmitBuildsAuthAndSubmitInstructionsWithFixedBudget(t *testing.T) {
	fc := &fakeClient{
		buses: []chain.BusAccount{
			{Address: pkFor(1), Rewards: 10, Readable: true},
			{Address: pkFor(2), Rewards: 90, Readable: true},
		},
		sig: "sig123",
	}
	s := New(fc, zeroRand{})

	winner := pool.Winner{Difficulty: 12}
	var attestation [32]byte
	attestation[0] = 0xAB

	sig, err := s.Submit(context.Background(), pkFor(9), winner, attestation)
	require.NoError(t, err)
	require.Equal(t, "sig123", sig)
	require.Len(t, fc.gotIxs, 2)
	require.Equal(t, "auth", fc.gotIxs[0].Tag)
	require.Equal(t, "submit", fc.gotIxs[1].Tag)
	require.EqualValues(t, chain.ComputeUnitLimit, fc.gotLimit)
	require.EqualValues(t, chain.ComputeUnitPriceMicroLamports, fc.gotPrice)
}

func pkFor(b byte) pool.Pubkey {
	var p pool.Pubkey
	p[0] = b
	return p
}
