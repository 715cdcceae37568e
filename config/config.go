// Package config implements Config (SPEC_FULL.md §6 Environment, §10
// Configuration): a TOML file, overridden field-by-field by environment
// variables, with startup validation before any goroutine starts.
//
// The file-then-env precedence and the flat struct-of-fields shape mirror
// cmd/berith/config.go's loadConfig + flag-override sequence, inverted here
// because this server is env-first in production (the file is optional,
// the environment is authoritative).
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"

	"github.com/naoina/toml"

	"github.com/berith-pool/poold/poolerr"
)

// tomlSettings ensures TOML keys use the same names as the Go struct
// fields, matching cmd/berith/config.go's decoder configuration.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
}

// Config is the aggregator's full runtime configuration.
type Config struct {
	RPCURL                string `toml:"rpc_url"`
	DatabaseDSN           string `toml:"db_dsn"`
	KeypairPath           string `toml:"keypair_path"`
	OperatorCommissionPct uint64 `toml:"operator_commission_pct"`
	StakerCommissionPct   uint64 `toml:"staker_commission_pct"`
	HTTPAddr              string `toml:"http_addr"`
	MetricsAddr           string `toml:"metrics_addr"`
	LogLevel              string `toml:"log_level"`
	AttributionEpochMin   uint64 `toml:"attribution_epoch_minutes"`
}

// Default returns the baseline configuration overridden by LoadFile and
// ApplyEnv.
func Default() Config {
	return Config{
		HTTPAddr:            ":8080",
		MetricsAddr:         ":9090",
		LogLevel:            "info",
		AttributionEpochMin: 60,
	}
}

// LoadFile decodes a TOML config file into cfg, leaving fields the file
// omits untouched.
func LoadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(path + ", " + err.Error())
	}
	return err
}

// ApplyEnv applies the environment variables that override config fields
// (SPEC_FULL.md §6 Environment), applied after the TOML file so the
// environment is authoritative in production.
func ApplyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("POOL_RPC_URL"); ok {
		cfg.RPCURL = v
	}
	if v, ok := os.LookupEnv("POOL_DB_DSN"); ok {
		cfg.DatabaseDSN = v
	}
	if v, ok := os.LookupEnv("POOL_KEYPAIR_PATH"); ok {
		cfg.KeypairPath = v
	}
	if v, ok := os.LookupEnv("POOL_HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := os.LookupEnv("POOL_METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}
	if v, ok := os.LookupEnv("POOL_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("POOL_OPERATOR_COMMISSION_PCT"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("POOL_OPERATOR_COMMISSION_PCT: %w", err)
		}
		cfg.OperatorCommissionPct = n
	}
	if v, ok := os.LookupEnv("POOL_STAKER_COMMISSION_PCT"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("POOL_STAKER_COMMISSION_PCT: %w", err)
		}
		cfg.StakerCommissionPct = n
	}
	if v, ok := os.LookupEnv("ATTR_EPOCH"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("ATTR_EPOCH: %w", err)
		}
		cfg.AttributionEpochMin = n
	}
	return nil
}

// Validate rejects configurations that would underflow the reward
// allocator's arithmetic or stall the round loop (SPEC_FULL.md §9
// Commission overflow). Called once at startup, before any goroutine
// starts.
func (c Config) Validate() error {
	if c.OperatorCommissionPct+c.StakerCommissionPct > 100 {
		return poolerr.Internal("operator_commission_pct + staker_commission_pct exceeds 100", nil)
	}
	if c.AttributionEpochMin == 0 {
		return poolerr.Internal("attribution_epoch_minutes must be positive", nil)
	}
	if c.RPCURL == "" {
		return poolerr.Internal("rpc_url is required", nil)
	}
	return nil
}
