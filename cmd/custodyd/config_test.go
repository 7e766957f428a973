package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
addr: ":9000"
principal: "0xvault"
owner: "0xowner"
operators: ["0xop1", "0xop2"]
reconcile: "0 * * * *"
demurrage:
  epoch_length: 24h
  free_epochs: 14
  numerator: 1
  denominator: 1000
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "custodyd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t), true)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "0xvault", cfg.Principal)
	assert.Equal(t, []string{"0xop1", "0xop2"}, cfg.Operators)
	assert.Equal(t, "0 * * * *", cfg.Reconcile)
	assert.Equal(t, 20, cfg.RateBurst)
	require.NotNil(t, cfg.Demurrage)
	assert.Equal(t, 24*time.Hour, cfg.Demurrage.EpochLength)
	assert.EqualValues(t, 14, cfg.Demurrage.FreeEpochs)
}

func TestLoadConfigMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := loadConfig(missing, false)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	_, err = loadConfig(missing, true)
	assert.Error(t, err)
}

func TestFlagsOverrideFile(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t), true)
	require.NoError(t, err)

	f := newFlags()
	require.NoError(t, f.set.Parse([]string{"--addr", ":7000", "--operator", "0xcli", "--reconcile", ""}))
	f.apply(&cfg)

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, []string{"0xcli"}, cfg.Operators)
	assert.Empty(t, cfg.Reconcile)
	assert.Equal(t, "0xowner", cfg.Owner)
}
