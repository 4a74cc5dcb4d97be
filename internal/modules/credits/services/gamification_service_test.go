package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/models"
)

func TestXPCurveAndConversionRates(t *testing.T) {
	cfg := DefaultGamificationConfig()

	prev := int64(0)
	for level := 1; level <= 20; level++ {
		need := cfg.XPToNextLevel(level)
		assert.Greater(t, need, prev)
		prev = need
	}

	assert.Equal(t, int64(2), cfg.Convert(60, models.TierFree))
	assert.Equal(t, int64(3), cfg.Convert(60, models.TierBeta))
	assert.Equal(t, int64(4), cfg.Convert(60, models.TierSubscriber))
	assert.Equal(t, int64(0), cfg.Convert(29, models.TierFree))
	assert.Equal(t, int64(0), cfg.Convert(-5, models.TierFree))
	assert.Equal(t, int64(40), cfg.XPForRun(30))
}

func TestRecordToolRunLevelsUp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	progress, err := env.gamification.RecordToolRun(ctx, "u1", "blog", 50, 20)
	require.NoError(t, err)
	assert.False(t, progress.LeveledUp)
	assert.Equal(t, 1, progress.Level)

	progress, err = env.gamification.RecordToolRun(ctx, "u1", "blog", 60, 10)
	require.NoError(t, err)
	assert.True(t, progress.LeveledUp)
	assert.Equal(t, 2, progress.Level)
	assert.Equal(t, int64(10), progress.XP)
	assert.Equal(t, 1, progress.PendingLevelUps)
	assert.Equal(t, int64(30), progress.TimeBankMinutes)

	// 10 + 490 covers level 2 (200) and level 3 (300)
	progress, err = env.gamification.RecordToolRun(ctx, "u1", "blog", 490, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, progress.Level)
	assert.Equal(t, 2, progress.LevelsGained)
	assert.Equal(t, int64(0), progress.XP)

	_, err = env.gamification.RecordToolRun(ctx, "u1", "blog", -1, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestOnLevelUpDrainsTimeBankOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.credits.InitializeAccount(ctx, "u1", models.TierFree)
	require.NoError(t, err)

	_, err = env.gamification.RecordToolRun(ctx, "u1", "blog", 100, 95)
	require.NoError(t, err)

	res, err := env.gamification.OnLevelUp(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Converted)
	assert.Equal(t, int64(95), res.MinutesConverted)
	assert.Equal(t, int64(3), res.CreditsAwarded)
	assert.Equal(t, int64(8), res.NewBalance)

	profile, err := env.gamification.GetGamificationProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), profile.TimeBankMinutes)
	assert.Equal(t, int64(95), profile.CumulativeMinutes)
	assert.Equal(t, 0, profile.PendingLevelUps)

	again, err := env.gamification.OnLevelUp(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, again.Converted)
	assert.Equal(t, int64(0), again.CreditsAwarded)
	assert.Equal(t, int64(8), env.balance(t, "u1"))

	history, err := env.credits.GetHistory(ctx, "u1", 0, "")
	require.NoError(t, err)
	assert.Equal(t, models.EntryConversion, history.Entries[0].Type)
	assert.Equal(t, "level-up conversion", history.Entries[0].Reason)
	env.requireConsistent(t, "u1")
}

func TestExpiredBetaConvertsAtFreeRate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.credits.InitializeAccount(ctx, "u1", models.TierBeta)
	require.NoError(t, err)

	env.clock.Advance(91 * 24 * time.Hour)
	_, err = env.gamification.RecordToolRun(ctx, "u1", "blog", 100, 60)
	require.NoError(t, err)

	res, err := env.gamification.OnLevelUp(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.CreditsAwarded)
}

func TestOnLevelUpZeroCreditConversionStillDrains(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.credits.InitializeAccount(ctx, "u1", models.TierFree)
	require.NoError(t, err)

	_, err = env.gamification.RecordToolRun(ctx, "u1", "blog", 100, 10)
	require.NoError(t, err)

	res, err := env.gamification.OnLevelUp(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Converted)
	assert.Equal(t, int64(0), res.CreditsAwarded)

	profile, err := env.gamification.GetGamificationProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), profile.TimeBankMinutes)
	assert.Equal(t, int64(5), env.balance(t, "u1"))
}

func TestUnknownProfileDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	profile, err := env.gamification.GetGamificationProfile(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 1, profile.Level)
	assert.Equal(t, int64(100), profile.XPToNextLevel)
	assert.Len(t, profile.Missions, 2)

	res, err := env.gamification.OnLevelUp(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, res.Converted)
}
