package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	// Defaults run in replay mode and therefore need data files.
	cfg.Data.TradesFile = "trades.csv"
	cfg.Data.BooksFile = "books.csv"
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "panic"
	cfg.LogLevel = "loud"
	cfg.Simulation.TimestepMode = "sideways"
	cfg.Simulation.MakerFee = 1.5
	cfg.Strategy.Size = 0
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"unknown mode", "log_level", "timestep_mode", "maker_fee", "strategy: size", "redis: addr"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateMarketDrivenNeedsNoBooks(t *testing.T) {
	cfg := Defaults()
	cfg.Simulation.TimestepMode = "market_driven"
	cfg.Data.TradesFile = "trades.csv"
	assert.NoError(t, cfg.Validate())
}

func TestLoadAppliesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "serve"

[simulation]
taker_fee = 0.004

[strategy]
name = "momentum"
`), 0o644))

	t.Setenv("REVIVAL_SIMULATION_MAKER_FEE", "0.0005")
	t.Setenv("REVIVAL_POSTGRES_PASSWORD", "hunter2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, 0.004, cfg.Simulation.TakerFee)
	assert.Equal(t, "momentum", cfg.Strategy.Name)
	// Env wins over defaults.
	assert.Equal(t, 0.0005, cfg.Simulation.MakerFee)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	// Untouched defaults survive the merge.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "secret"
	cfg.S3.SecretKey = "key"
	cfg.Redis.Password = ""

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Empty(t, red.Redis.Password)
	// Original is untouched.
	assert.Equal(t, "secret", cfg.Postgres.Password)
}
