package credits

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/models"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/shared/config"
)

func TestModuleUsesConfiguredBonuses(t *testing.T) {
	cfg := &config.Config{
		StoreDriver:      config.DriverSQLite,
		SQLitePath:       filepath.Join(t.TempDir(), "credits.db"),
		TxMaxRetries:     3,
		ResetMaxAttempts: 2,
		BonusFree:        1,
		BonusBeta:        42,
		BonusSubscriber:  3,
		BetaDays:         30,
	}
	store, err := OpenStore(cfg)
	require.NoError(t, err)
	defer store.Close()

	m := NewModule(store, cfg)
	acc, err := m.Credits.InitializeAccount(context.Background(), "u1", models.TierBeta)
	require.NoError(t, err)
	assert.Equal(t, int64(42), acc.Balance)
	require.NotNil(t, acc.BetaExpiresAt)
	assert.Equal(t, 30*24., acc.BetaExpiresAt.Sub(acc.CreatedAt).Hours())
	assert.NotNil(t, m.Handlers(cfg.StoreDriver).Accounts)
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	_, err := OpenStore(&config.Config{StoreDriver: "mongo"})
	assert.Error(t, err)
}
