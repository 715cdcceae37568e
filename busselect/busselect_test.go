package busselect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fixedRand struct{ idx int }

func (f fixedRand) Intn(n int) int { return f.idx % n }

func TestSelectPromotesStrictlyLargerBalance(t *testing.T) {
	buses := []Bus{
		{Address: "a", Balance: 10, Readable: true},
		{Address: "b", Balance: 100, Readable: true},
		{Address: "c", Balance: 5, Readable: true},
	}
	got := Select(fixedRand{idx: 0}, buses) // seeds at "a" (balance 10)
	require.Equal(t, "b", got.Address)
	require.GreaterOrEqual(t, got.Balance, buses[0].Balance)
}

func TestSelectKeepsSeedWhenAllZeroOrUnreadable(t *testing.T) {
	buses := []Bus{
		{Address: "a", Balance: 0, Readable: true},
		{Address: "b", Balance: 0, Readable: false},
		{Address: "c", Balance: 0, Readable: true},
	}
	got := Select(fixedRand{idx: 1}, buses) // seeds at "b"
	require.Equal(t, "b", got.Address)
}

func TestSelectKeepsSeedWhenItIsAlreadyBest(t *testing.T) {
	buses := []Bus{
		{Address: "a", Balance: 1, Readable: true},
		{Address: "b", Balance: 50, Readable: true},
	}
	got := Select(fixedRand{idx: 1}, buses) // seeds at "b", the max
	require.Equal(t, "b", got.Address)
}
