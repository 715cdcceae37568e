// Package driver implements RoundDriver (SPEC_FULL.md §4.3): the
// cutoff-timer loop that collects contributions, submits the round's
// winning solution, consumes the rewards event, and rotates to the next
// challenge.
//
// The Collecting state's select-on-(ingress, timer) race is adapted from
// the teacher's miner/worker.go main loop, which races new-work and
// resubmit-interval events against a shared commit channel; here the same
// shape races incoming contributions against the round's cutoff timer.
package driver

import (
	"context"
	"time"

	"github.com/berith-pool/poold/chain"
	"github.com/berith-pool/poold/logging"
	"github.com/berith-pool/poold/pool"
	"github.com/berith-pool/poold/poolerr"
	"github.com/berith-pool/poold/powhash"
	"github.com/berith-pool/poold/rewards"
	"github.com/berith-pool/poold/roundhistory"
	"github.com/berith-pool/poold/roundstate"
	"github.com/berith-pool/poold/submitter"
)

// AttributionWriter is the persistence sink RoundDriver hands each round's
// attribution vectors to, fire-and-forget (SPEC_FULL.md §4.3 step 4).
type AttributionWriter interface {
	WriteRoundAttribution(ctx context.Context, lastHashAt int64, miners, boost1, boost2, boost3 []pool.MemberAmount, operator pool.MemberAmount) error
}

// Rotator is the subset of rotator.Rotator the driver depends on.
type Rotator interface {
	Rotate(ctx context.Context, priorLastHashAt int64) (pool.Challenge, uint64, error)
}

// RoundMetrics is the subset of metrics.Metrics the driver records against.
type RoundMetrics interface {
	ObserveRound(outcome string, d time.Duration)
	ObserveSubmit(d time.Duration)
	SetActiveMembers(n float64)
}

// Config bundles the values fixed for the process lifetime.
type Config struct {
	PoolAuthority     pool.Pubkey
	OperatorAuthority pool.Pubkey
	BoostMints        []pool.Pubkey
	Rewards           rewards.Config
	IngressBuffer     int
}

// attributionBarrierReq is sent by the periodic on-chain attribution task to
// pause ingress consumption for the duration of its call (SPEC_FULL.md §4.8,
// §9). The Collecting loop acknowledges as soon as it is ready to receive,
// then blocks until release is closed.
type attributionBarrierReq struct {
	ack     chan struct{}
	release chan struct{}
}

// Driver owns RoundState exclusively and runs the Collecting/Submitting/
// Rotating state machine.
type Driver struct {
	cfg     Config
	client  chain.Client
	sub     *submitter.Submitter
	rotator Rotator
	writer  AttributionWriter
	history *roundhistory.History
	metrics RoundMetrics
	log     *logging.Logger

	view       *ChallengeView
	ingress    chan pool.Contribution
	barrierReq chan attributionBarrierReq
}

// New constructs a Driver. view is shared with the HTTP layer and the
// validator so both can read the current challenge under a read lock
// without ever touching RoundState itself.
func New(cfg Config, client chain.Client, sub *submitter.Submitter, rot Rotator, writer AttributionWriter, history *roundhistory.History, m RoundMetrics, log *logging.Logger, view *ChallengeView) *Driver {
	return &Driver{
		cfg:        cfg,
		client:     client,
		sub:        sub,
		rotator:    rot,
		writer:     writer,
		history:    history,
		metrics:    m,
		log:        log.Named("driver"),
		view:       view,
		ingress:    make(chan pool.Contribution, cfgIngressBuffer(cfg)),
		barrierReq: make(chan attributionBarrierReq),
	}
}

func cfgIngressBuffer(cfg Config) int {
	if cfg.IngressBuffer <= 0 {
		return 1024
	}
	return cfg.IngressBuffer
}

// Ingress returns the send-only handle HTTP ingress handlers use to enqueue
// a validated contribution. Handlers hold no other reference into
// RoundState (SPEC_FULL.md §3 Ownership).
func (d *Driver) Ingress() chan<- pool.Contribution { return d.ingress }

// RequestAttributionBarrier pauses the Collecting loop's ingress consumption
// until the returned release func is called, giving the periodic on-chain
// attribution task exclusive access to RoundState for its call (SPEC_FULL.md
// §4.8, §9). It blocks until the driver acknowledges, which happens the next
// time the Collecting select loop is ready to receive; if a round is
// currently in Submitting or Rotating, ingress is already not being
// consumed there, so the request is acknowledged as soon as Collecting
// resumes.
func (d *Driver) RequestAttributionBarrier(ctx context.Context) (func(), error) {
	req := attributionBarrierReq{ack: make(chan struct{}), release: make(chan struct{})}
	select {
	case d.barrierReq <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case <-req.ack:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return func() { close(req.release) }, nil
}

// Bootstrap fetches the initial pool/proof accounts and primes the
// challenge view before Run's first round begins.
func (d *Driver) Bootstrap(ctx context.Context) (pool.Challenge, uint64, error) {
	p, err := d.client.GetPool(ctx)
	if err != nil {
		return pool.Challenge{}, 0, poolerr.TransientChain("bootstrap: get pool", err)
	}
	proof, err := d.client.GetProof(ctx)
	if err != nil {
		return pool.Challenge{}, 0, poolerr.TransientChain("bootstrap: get proof", err)
	}
	challenge := pool.Challenge{
		ChallengeDigest: proof.Challenge,
		LastHashAt:      p.LastHashAt,
		MinDifficulty:   proof.MinDifficulty,
		CutoffTimeSecs:  proof.CutoffTimeSecs,
	}
	return challenge, p.LastTotalMembers, nil
}

func (d *Driver) fetchStakerSnapshot(ctx context.Context) (pool.StakerSnapshot, error) {
	snap := make(pool.StakerSnapshot, len(d.cfg.BoostMints))
	for _, mint := range d.cfg.BoostMints {
		balances, err := d.client.GetStakers(ctx, mint)
		if err != nil {
			return nil, poolerr.TransientChain("fetch staker snapshot", err)
		}
		snap[mint] = balances
	}
	return snap, nil
}

// Run executes rounds back to back until a fatal error occurs or ctx is
// cancelled. A returned error is always fatal: the caller (main) should
// exit non-zero so a supervisor restarts the process (SPEC_FULL.md §7).
func (d *Driver) Run(ctx context.Context) error {
	challenge, numMembers, err := d.Bootstrap(ctx)
	if err != nil {
		return err
	}
	stakers, err := d.fetchStakerSnapshot(ctx)
	if err != nil {
		return err
	}
	d.view.set(challenge)
	if d.metrics != nil {
		d.metrics.SetActiveMembers(float64(numMembers))
	}

	for {
		roundStart := time.Now()
		nextChallenge, nextNumMembers, nextStakers, outcome, err := d.runRound(ctx, challenge, numMembers, stakers)
		if err != nil {
			if d.metrics != nil {
				d.metrics.ObserveRound("fatal", time.Since(roundStart))
			}
			return err
		}
		if d.metrics != nil {
			d.metrics.ObserveRound(outcome, time.Since(roundStart))
		}
		challenge, numMembers, stakers = nextChallenge, nextNumMembers, nextStakers
		d.view.set(challenge)
		if d.metrics != nil {
			d.metrics.SetActiveMembers(float64(numMembers))
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// runRound executes exactly one Collecting → Submitting → Rotating cycle.
func (d *Driver) runRound(ctx context.Context, challenge pool.Challenge, numMembers uint64, stakers pool.StakerSnapshot) (pool.Challenge, uint64, pool.StakerSnapshot, string, error) {
	state := roundstate.New(challenge, numMembers, stakers, d.log)

	if err := d.collect(ctx, state); err != nil {
		return pool.Challenge{}, 0, nil, "", err
	}

	outcome, err := d.submit(ctx, state)
	if err != nil {
		return pool.Challenge{}, 0, nil, "", err
	}

	nextChallenge, nextNumMembers, err := d.rotator.Rotate(ctx, state.Challenge.LastHashAt)
	if err != nil {
		return pool.Challenge{}, 0, nil, "", err
	}
	nextStakers, err := d.fetchStakerSnapshot(ctx)
	if err != nil {
		return pool.Challenge{}, 0, nil, "", err
	}

	return nextChallenge, nextNumMembers, nextStakers, outcome, nil
}

// collect implements the Collecting state (SPEC_FULL.md §4.3): race the
// next contribution against the remaining cutoff, inserting into state
// until the round has at least one contribution and the cutoff has passed.
func (d *Driver) collect(ctx context.Context, state *roundstate.State) error {
	start := time.Now()
	for {
		remaining := cutoffRemaining(state.Challenge, start)
		timer := time.NewTimer(remaining)

		select {
		case <-ctx.Done():
			timer.Stop()
			return poolerr.Internal("context cancelled during collecting", ctx.Err())

		case req := <-d.barrierReq:
			timer.Stop()
			d.waitOutBarrier(req)
			// The freeze consumed part of the cutoff; loop back around to
			// recompute remaining against the same start time.

		case c, ok := <-d.ingress:
			timer.Stop()
			if !ok {
				return poolerr.Internal("ingress channel closed", nil)
			}
			difficulty := powhash.Difficulty(state.Challenge.ChallengeDigest, c.Solution)
			state.Insert(c, difficulty)
			// Insert, then loop back around to recompute remaining and race
			// again; the cutoff timer alone ends Collecting.

		case <-timer.C:
			if state.TotalScore > 0 {
				return nil
			}
			// No contributions yet: block on the channel or a barrier
			// request alone until the first one arrives (SPEC_FULL.md §4.3
			// Collecting, scenario 4).
			for state.TotalScore == 0 {
				select {
				case req := <-d.barrierReq:
					d.waitOutBarrier(req)
				case c, ok := <-d.ingress:
					if !ok {
						return poolerr.Internal("ingress channel closed", nil)
					}
					difficulty := powhash.Difficulty(state.Challenge.ChallengeDigest, c.Solution)
					state.Insert(c, difficulty)
				}
			}
			return nil
		}
	}
}

// waitOutBarrier acknowledges a pending attribution barrier request and
// blocks until it is released, holding up ingress consumption for the
// duration.
func (d *Driver) waitOutBarrier(req attributionBarrierReq) {
	close(req.ack)
	<-req.release
}

func cutoffRemaining(c pool.Challenge, start time.Time) time.Duration {
	elapsed := time.Since(start)
	remaining := time.Duration(c.CutoffTimeSecs)*time.Second - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// submit implements the Submitting state (SPEC_FULL.md §4.3).
func (d *Driver) submit(ctx context.Context, state *roundstate.State) (string, error) {
	// 1. Reconciliation check.
	p, err := d.client.GetPool(ctx)
	if err != nil {
		return "", poolerr.TransientChain("submitting: get pool", err)
	}
	if p.LastHashAt != state.Challenge.LastHashAt {
		d.log.Warn("irregular reset: missed rotation", "onchain_last_hash_at", p.LastHashAt, "local_last_hash_at", state.Challenge.LastHashAt)
		return "irregular_reset", nil
	}

	winner := *state.Winner
	attestation := state.Attestation()

	submitStart := time.Now()
	sig, err := d.sub.Submit(ctx, d.cfg.PoolAuthority, winner, attestation)
	if d.metrics != nil {
		d.metrics.ObserveSubmit(time.Since(submitStart))
	}
	if err != nil {
		return "", err
	}

	rewardsEvent, ok := <-d.client.Rewards()
	if !ok {
		return "", poolerr.Internal("rewards channel closed", nil)
	}

	result, err := rewards.Allocate(pool.PoolPDA(d.cfg.PoolAuthority), d.cfg.OperatorAuthority, state.Contributions, state.TotalScore, state.Stakers, rewardsEvent, d.cfg.Rewards)
	if err != nil {
		return "", err
	}

	d.history.Record(pool.SettledRound{
		LastHashAt:  state.Challenge.LastHashAt,
		Attestation: attestation,
		Signature:   sig,
		SettledAt:   time.Now(),
	})

	go d.persist(state.Challenge.LastHashAt, result)

	return "submitted", nil
}

// persist is the detached, fire-and-forget attribution write (SPEC_FULL.md
// §4.3 step 4, §6 Persistence). Failure is logged only.
func (d *Driver) persist(lastHashAt int64, result rewards.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.writer.WriteRoundAttribution(ctx, lastHashAt, result.Miners, result.Boost1Stakers, result.Boost2Stakers, result.Boost3Stakers, result.Operator); err != nil {
		d.log.Error("attribution write failed", "last_hash_at", lastHashAt, "err", err)
	}
}
