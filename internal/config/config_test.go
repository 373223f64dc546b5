package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	assert.NoError(t, err)

	check.Equal(t, "memory", cfg.Store.Driver)
	check.Equal(t, 5, cfg.Bidding.MaxRetries)
	check.Equal(t, 4, cfg.Bidding.AmountScale)
	check.Equal(t, "@every 1s", cfg.Sweeper.Schedule)
	check.Equal(t, "auction_events", cfg.Events.Channel)
	check.Equal(t, 30*time.Second, cfg.Leader.TTL)
	check.Equal(t, 3, len(cfg.Bidding.IncrementTiers))
	check.Equal(t, 25.0, cfg.Bidding.IncrementTiers[2].Increment)
	check.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("BIDDING_MAX_RETRIES", "9")
	t.Setenv("SWEEPER_SCHEDULE", "@every 5s")

	cfg, err := Load()
	assert.NoError(t, err)

	check.Equal(t, "redis", cfg.Store.Driver)
	check.Equal(t, 9, cfg.Bidding.MaxRetries)
	check.Equal(t, "@every 5s", cfg.Sweeper.Schedule)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STORE_DRIVER", "cassandra")

	_, err := Load()
	check.Error(t, err)
}

func TestValidateRejectsBadScaleAndTTL(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load()
	assert.NoError(t, err)

	cfg.Bidding.AmountScale = 19
	check.Error(t, cfg.Validate())
	cfg.Bidding.AmountScale = 6
	check.NoError(t, cfg.Validate())

	cfg.Leader.Enabled = true
	cfg.Leader.TTL = 2 * time.Nanosecond
	check.Error(t, cfg.Validate())
	cfg.Leader.TTL = 10 * time.Second
	check.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	yaml := `
server:
  port: 9090
store:
  driver: mysql
bidding:
  max_retries: 2
  increment_tiers:
    - up_to: 50
      increment: 1
    - up_to: 0
      increment: 2
`
	assert.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadFromFile(path)
	assert.NoError(t, err)

	check.Equal(t, 9090, cfg.Server.Port)
	check.Equal(t, "mysql", cfg.Store.Driver)
	check.Equal(t, 2, cfg.Bidding.MaxRetries)
	check.Equal(t, 2, len(cfg.Bidding.IncrementTiers))
	check.Equal(t, 50.0, cfg.Bidding.IncrementTiers[0].UpTo)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	assert.NoError(t, err)
	assert.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
