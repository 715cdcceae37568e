// Command poold runs the mining-pool coordinator server: the challenge-round
// aggregator, its HTTP ingress, its metrics endpoint, and the periodic
// on-chain attribution task.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/berith-pool/poold/attribution"
	"github.com/berith-pool/poold/busselect"
	"github.com/berith-pool/poold/chain"
	"github.com/berith-pool/poold/config"
	"github.com/berith-pool/poold/driver"
	"github.com/berith-pool/poold/httpapi"
	"github.com/berith-pool/poold/logging"
	"github.com/berith-pool/poold/metrics"
	"github.com/berith-pool/poold/pool"
	"github.com/berith-pool/poold/rewards"
	"github.com/berith-pool/poold/roundhistory"
	"github.com/berith-pool/poold/rotator"
	"github.com/berith-pool/poold/submitter"
	"github.com/berith-pool/poold/validator"
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	httpAddrFlag = cli.StringFlag{
		Name:  "http.addr",
		Usage: "HTTP contribute/challenge/health bind address",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics.addr",
		Usage: "Prometheus metrics bind address",
	}
	logLevelFlag = cli.StringFlag{
		Name:  "loglevel",
		Usage: "Logging level (debug, info, warn, error)",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "poold"
	app.Usage = "mining pool coordinator server"
	app.Flags = []cli.Flag{configFileFlag, httpAddrFlag, metricsAddrFlag, logLevelFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	cfg := config.Default()
	if path := ctx.String(configFileFlag.Name); path != "" {
		if err := config.LoadFile(path, &cfg); err != nil {
			return err
		}
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return err
	}
	if v := ctx.String(httpAddrFlag.Name); v != "" {
		cfg.HTTPAddr = v
	}
	if v := ctx.String(metricsAddrFlag.Name); v != "" {
		cfg.MetricsAddr = v
	}
	if v := ctx.String(logLevelFlag.Name); v != "" {
		cfg.LogLevel = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.New(cfg.LogLevel)
	defer log.Sync()

	operatorAuthority, err := loadOperatorAuthority(cfg.KeypairPath)
	if err != nil {
		return fmt.Errorf("load operator keypair: %w", err)
	}

	m, reg := metrics.New()

	writer, err := attribution.Open(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer writer.Close()

	// Bus addresses and boost mints are pool-specific on-chain constants;
	// in a real deployment these are read from the pool account at
	// startup. A single self-derived bus stands in here since bus
	// discovery itself is the on-chain program's concern (SPEC_FULL.md §1).
	busAddrs := []pool.Pubkey{pool.PoolPDA(operatorAuthority)}
	chainClient := chain.NewJSONRPCClient(cfg.RPCURL, operatorAuthority, busAddrs, log)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go chainClient.RunRewardsSubscription(rootCtx, 2*time.Second)

	sub := submitter.New(chainClient, busselect.DefaultRand)
	rot := rotator.New(chainClient, log)
	history := roundhistory.New()

	driverCfg := driver.Config{
		PoolAuthority:     operatorAuthority,
		OperatorAuthority: operatorAuthority,
		Rewards: rewards.Config{
			OperatorCommissionPct: cfg.OperatorCommissionPct,
			StakerCommissionPct:   cfg.StakerCommissionPct,
		},
	}
	view := &driver.ChallengeView{}
	d := driver.New(driverCfg, chainClient, sub, rot, writer, history, m, log, view)

	v := validator.New(view)
	srv := httpapi.New(v, d, view, history, m, log)

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Handler()}
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler(reg)}

	errCh := make(chan error, 3)
	go func() { errCh <- httpServer.ListenAndServe() }()
	go func() { errCh <- metricsServer.ListenAndServe() }()
	go func() { errCh <- d.Run(rootCtx) }()
	go runPeriodicAttribution(rootCtx, d, chainClient, time.Duration(cfg.AttributionEpochMin)*time.Minute, log, errCh)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
		return nil
	case err := <-errCh:
		log.Error("fatal error, exiting for supervisor restart", "err", err)
		return err
	}
}

// runPeriodicAttribution implements the second long-lived task of
// SPEC_FULL.md §4.8: every attribution_epoch minutes, freeze RoundState's
// ingress for the duration of a batch on-chain attribution call so the
// on-chain member balances observed match what gets persisted.
func runPeriodicAttribution(ctx context.Context, d *driver.Driver, client chain.Client, epoch time.Duration, log *logging.Logger, errCh chan<- error) {
	ticker := time.NewTicker(epoch)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			release, err := d.RequestAttributionBarrier(ctx)
			if err != nil {
				errCh <- fmt.Errorf("periodic attribution: acquire barrier: %w", err)
				return
			}
			err = client.AttributeMembers(ctx)
			release()
			if err != nil {
				errCh <- fmt.Errorf("periodic attribution: %w", err)
				return
			}
			log.Info("periodic attribution complete")
		}
	}
}

// loadOperatorAuthority reads the operator's pubkey from the keypair file.
// Keypair custody is an external collaborator (SPEC_FULL.md §1 Out of
// scope); this server only ever needs the public half to address
// attribution entries and name itself as pool authority.
func loadOperatorAuthority(path string) (pool.Pubkey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return pool.Pubkey{}, err
	}
	if pk, err := pool.ParsePubkey(string(raw)); err == nil {
		return pk, nil
	}
	var pk pool.Pubkey
	copy(pk[:], raw)
	return pk, nil
}
