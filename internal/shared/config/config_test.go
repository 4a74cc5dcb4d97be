package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("PORT", "")
	t.Setenv("BONUS_BETA", "")

	cfg := FromEnv()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, int64(10), cfg.BonusBeta)
	assert.Equal(t, "0 0 0 1 * *", cfg.ResetSchedule)
	assert.Equal(t, 90, cfg.BetaDays)
}

func TestOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/credits")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("BONUS_FREE", "7")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("TX_MAX_RETRIES", "oops")

	cfg := FromEnv()
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, int64(7), cfg.BonusFree)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 5, cfg.TxMaxRetries, "invalid values fall back to the default")
}
