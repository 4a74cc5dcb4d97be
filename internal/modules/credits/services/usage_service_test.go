package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/models"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/repositories"
)

func TestRunToolChargesAndBanksMinutes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.credits.InitializeAccount(ctx, "u1", models.TierSubscriber)
	require.NoError(t, err)

	res, err := env.usage.RunTool(ctx, ToolRunRequest{
		UserID: "u1", ToolID: "blog-generator", ToolName: "Blog Generator", CreditCost: 2, MinutesSaved: 30,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(23), res.NewBalance)
	assert.Equal(t, int64(40), res.Progress.XP)
	assert.Empty(t, res.LevelUps)
	require.Len(t, res.Missions, 2)

	profile, err := env.gamification.GetGamificationProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), profile.TimeBankMinutes)
	assert.Equal(t, int64(30), profile.MonthlyMinutes)
	for _, m := range profile.Missions {
		switch m.Kind {
		case models.MissionToolRuns:
			assert.Equal(t, int64(1), m.Current)
		case models.MissionMinutesSaved:
			assert.Equal(t, int64(30), m.Current)
		}
	}

	acc, err := env.credits.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), acc.MonthlyUsed)
}

func TestRunToolConvertsLevelUpInSameTransaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.credits.InitializeAccount(ctx, "u1", models.TierSubscriber)
	require.NoError(t, err)

	res, err := env.usage.RunTool(ctx, ToolRunRequest{UserID: "u1", ToolID: "t", CreditCost: 2, MinutesSaved: 100})
	require.NoError(t, err)
	require.Len(t, res.LevelUps, 1)
	assert.Equal(t, int64(6), res.LevelUps[0].CreditsAwarded)
	assert.Equal(t, 2, res.Progress.Level)
	assert.Equal(t, int64(0), res.Progress.TimeBankMinutes)
	assert.Equal(t, int64(29), res.NewBalance)
	assert.Equal(t, int64(29), env.balance(t, "u1"))
	env.requireConsistent(t, "u1")
}

func TestRunToolReplayAwardsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := ToolRunRequest{UserID: "u1", ToolID: "t", CreditCost: 1, MinutesSaved: 15, IdempotencyKey: "run-1"}

	first, err := env.usage.RunTool(ctx, req)
	require.NoError(t, err)
	second, err := env.usage.RunTool(ctx, req)
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.EntryID, second.EntryID)
	assert.Equal(t, first.NewBalance, second.NewBalance)
	assert.Nil(t, second.Progress)

	profile, err := env.gamification.GetGamificationProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(25), profile.XP)
	assert.Equal(t, int64(15), profile.TimeBankMinutes)
	assert.Equal(t, int64(4), env.balance(t, "u1"))
}

func TestRunToolInsufficientLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.usage.RunTool(ctx, ToolRunRequest{UserID: "u1", ToolID: "t", CreditCost: 50, MinutesSaved: 30})
	var insufficient *InsufficientCreditsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, int64(5), insufficient.CurrentBalance)

	_, err = env.store.GetProfile(ctx, "u1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.Equal(t, int64(5), env.balance(t, "u1"))

	_, err = env.usage.RunTool(ctx, ToolRunRequest{UserID: "u1", ToolID: "t", CreditCost: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = env.usage.RunTool(ctx, ToolRunRequest{UserID: "u1", ToolID: "t", CreditCost: 1, MinutesSaved: -1})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRunToolCompletesWeeklyMission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var last *ToolRunResult
	for i := 0; i < 3; i++ {
		res, err := env.usage.RunTool(ctx, ToolRunRequest{UserID: "u1", ToolID: "t", CreditCost: 1, IdempotencyKey: fmt.Sprintf("run-%d", i)})
		require.NoError(t, err)
		last = res
	}

	require.Len(t, last.Missions, 1)
	assert.True(t, last.Missions[0].JustCompleted)
	assert.Equal(t, int64(7), last.NewBalance)

	// a fourth run does not pay the mission again
	res, err := env.usage.RunTool(ctx, ToolRunRequest{UserID: "u1", ToolID: "t", CreditCost: 1})
	require.NoError(t, err)
	assert.Empty(t, res.Missions)
	assert.Equal(t, int64(6), env.balance(t, "u1"))
	env.requireConsistent(t, "u1")
}

func TestRunToolReplayReturnsFinalBalanceOfFirstRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var third *ToolRunResult
	for i := 0; i < 3; i++ {
		res, err := env.usage.RunTool(ctx, ToolRunRequest{UserID: "u1", ToolID: "t", CreditCost: 1, IdempotencyKey: fmt.Sprintf("run-%d", i)})
		require.NoError(t, err)
		third = res
	}
	require.Len(t, third.Missions, 1)
	require.True(t, third.Missions[0].JustCompleted)

	replay, err := env.usage.RunTool(ctx, ToolRunRequest{UserID: "u1", ToolID: "t", CreditCost: 1, IdempotencyKey: "run-2"})
	require.NoError(t, err)
	assert.True(t, replay.Duplicate)
	assert.Equal(t, third.NewBalance, replay.NewBalance)
	assert.Equal(t, int64(7), replay.NewBalance)
	assert.Equal(t, third.EntryID, replay.EntryID)
	require.Len(t, replay.Missions, 1)
	assert.True(t, replay.Missions[0].JustCompleted)
	assert.Equal(t, int64(7), env.balance(t, "u1"))
	env.requireConsistent(t, "u1")
}

func TestRunToolReplayAfterLevelUpReturnsConvertedBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.credits.InitializeAccount(ctx, "u1", models.TierSubscriber)
	require.NoError(t, err)

	req := ToolRunRequest{UserID: "u1", ToolID: "t", CreditCost: 2, MinutesSaved: 100, IdempotencyKey: "big-run"}
	first, err := env.usage.RunTool(ctx, req)
	require.NoError(t, err)
	require.Len(t, first.LevelUps, 1)

	replay, err := env.usage.RunTool(ctx, req)
	require.NoError(t, err)
	assert.True(t, replay.Duplicate)
	assert.Equal(t, int64(29), replay.NewBalance)
	assert.Equal(t, first.LevelUps[0].CreditsAwarded, replay.LevelUps[0].CreditsAwarded)
	assert.Equal(t, int64(29), env.balance(t, "u1"))

	profile, err := env.gamification.GetGamificationProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, profile.Level)
}

func TestRunToolReplayOfPlainSpendKeepsSpendBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.credits.InitializeAccount(ctx, "u1", models.TierFree)
	require.NoError(t, err)

	spent, err := env.credits.Spend(ctx, "u1", 1, "tool run", "t", "manual-1")
	require.NoError(t, err)

	res, err := env.usage.RunTool(ctx, ToolRunRequest{UserID: "u1", ToolID: "t", CreditCost: 1, IdempotencyKey: "manual-1"})
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, spent.NewBalance, res.NewBalance)
	assert.Nil(t, res.Progress)
}

func TestRunToolRetriesConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.credits.InitializeAccount(ctx, "u1", models.TierFree)
	require.NoError(t, err)

	env.store.setConflicts(2)
	res, err := env.usage.RunTool(ctx, ToolRunRequest{UserID: "u1", ToolID: "t", CreditCost: 1, MinutesSaved: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.NewBalance)

	profile, err := env.gamification.GetGamificationProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), profile.XP)
}
