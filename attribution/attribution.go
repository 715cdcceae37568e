// Package attribution implements AttributionWriter (SPEC_FULL.md §4.3 step
// 4, §6 Persistence): a Postgres-backed sink that persists per-member
// reward deltas. The sink is additive and is never assumed idempotent; the
// aggregator is responsible for calling it at most once per round.
package attribution

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/berith-pool/poold/pool"
)

// Writer persists attribution vectors to Postgres.
type Writer struct {
	db *sqlx.DB
}

// Open connects to the given Postgres DSN and returns a ready Writer.
func Open(dsn string) (*Writer, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect attribution db: %w", err)
	}
	return &Writer{db: db}, nil
}

// Close releases the underlying connection pool.
func (w *Writer) Close() error { return w.db.Close() }

const upsertMemberBalance = `
INSERT INTO member_balances (member_pda, pool_last_hash_at, stream, amount)
VALUES (:member_pda, :pool_last_hash_at, :stream, :amount)
ON CONFLICT (member_pda, pool_last_hash_at, stream) DO NOTHING
`

type balanceRow struct {
	MemberPDA      string `db:"member_pda"`
	PoolLastHashAt int64  `db:"pool_last_hash_at"`
	Stream         string `db:"stream"`
	Amount         uint64 `db:"amount"`
}

// WriteMemberTotalBalances persists one attribution vector for a round
// (SPEC_FULL.md §6). Called four times per round (miners, boost_1..3) and
// once more for the operator singleton; the stream label distinguishes the
// rows so a retried call for a different stream never collides.
func (w *Writer) WriteMemberTotalBalances(ctx context.Context, lastHashAt int64, stream string, amounts []pool.MemberAmount) error {
	if len(amounts) == 0 {
		return nil
	}
	rows := make([]balanceRow, len(amounts))
	for i, a := range amounts {
		rows[i] = balanceRow{MemberPDA: a.MemberPDA, PoolLastHashAt: lastHashAt, Stream: stream, Amount: a.Amount}
	}
	_, err := w.db.NamedExecContext(ctx, upsertMemberBalance, rows)
	if err != nil {
		return fmt.Errorf("write %s attribution: %w", stream, err)
	}
	return nil
}

// WriteRoundAttribution persists all streams produced for one round: the
// four vectors plus the operator singleton. Each stream is written
// independently so a partial failure still records the streams that
// succeeded (persistence failures are logged by the caller, not retried
// here — SPEC_FULL.md §7).
func (w *Writer) WriteRoundAttribution(ctx context.Context, lastHashAt int64, miners, boost1, boost2, boost3 []pool.MemberAmount, operator pool.MemberAmount) error {
	streams := []struct {
		name   string
		amounts []pool.MemberAmount
	}{
		{"miners", miners},
		{"boost_1", boost1},
		{"boost_2", boost2},
		{"boost_3", boost3},
		{"operator", []pool.MemberAmount{operator}},
	}
	var firstErr error
	for _, s := range streams {
		if err := w.WriteMemberTotalBalances(ctx, lastHashAt, s.name, s.amounts); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
