package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRejectsCommissionOverflow(t *testing.T) {
	cfg := Default()
	cfg.RPCURL = "http://localhost"
	cfg.OperatorCommissionPct = 60
	cfg.StakerCommissionPct = 50
	require.Error(t, cfg.Validate())
}

func TestValidateAcceptsExactly100(t *testing.T) {
	cfg := Default()
	cfg.RPCURL = "http://localhost"
	cfg.OperatorCommissionPct = 60
	cfg.StakerCommissionPct = 40
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvOverridesFields(t *testing.T) {
	cfg := Default()
	os.Setenv("POOL_HTTP_ADDR", ":1234")
	os.Setenv("POOL_OPERATOR_COMMISSION_PCT", "7")
	defer os.Unsetenv("POOL_HTTP_ADDR")
	defer os.Unsetenv("POOL_OPERATOR_COMMISSION_PCT")

	require.NoError(t, ApplyEnv(&cfg))
	require.Equal(t, ":1234", cfg.HTTPAddr)
	require.EqualValues(t, 7, cfg.OperatorCommissionPct)
}
