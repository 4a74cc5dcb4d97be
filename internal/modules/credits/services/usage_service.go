package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/models"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/repositories"
)

// ToolRunRequest is what the tool execution boundary reports per invocation
type ToolRunRequest struct {
	UserID         string `json:"user_id"`
	ToolID         string `json:"tool_id"`
	ToolName       string `json:"tool_name"`
	CreditCost     int64  `json:"credit_cost"`
	MinutesSaved   int64  `json:"minutes_saved"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// ToolRunResult is returned to the tool execution boundary
type ToolRunResult struct {
	Success    bool              `json:"success"`
	NewBalance int64             `json:"new_balance"`
	Duplicate  bool              `json:"duplicate"`
	EntryID    string            `json:"entry_id"`
	Progress   *ToolRunProgress  `json:"progress,omitempty"`
	LevelUps   []LevelUpResult   `json:"level_ups,omitempty"`
	Missions   []MissionProgress `json:"missions,omitempty"`
}

// UsageService charges tool runs and feeds the rewards engines
type UsageService struct {
	base
	credits      *CreditService
	gamification *GamificationService
	missions     *MissionService
}

// NewUsageService creates a new usage service
func NewUsageService(store repositories.Store, credits *CreditService, gamification *GamificationService, missions *MissionService, opts ...Option) *UsageService {
	return &UsageService{
		base:         newBase(store, opts...),
		credits:      credits,
		gamification: gamification,
		missions:     missions,
	}
}

// RunTool spends the cost, banks XP and minutes, converts level-ups and advances missions,
// all in one transaction. A replayed idempotency key returns the first result and awards nothing.
func (s *UsageService) RunTool(ctx context.Context, req ToolRunRequest) (*ToolRunResult, error) {
	if req.CreditCost <= 0 {
		return nil, fmt.Errorf("%w: credit cost must be positive", ErrInvalidAmount)
	}
	if req.MinutesSaved < 0 {
		return nil, fmt.Errorf("%w: minutes saved must not be negative", ErrInvalidAmount)
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}
	if err := s.credits.ensureAccount(ctx, req.UserID); err != nil {
		return nil, err
	}

	reason := "tool run"
	if req.ToolName != "" {
		reason = "tool run: " + req.ToolName
	}

	var (
		result *ToolRunResult
		spend  *MutationResult
	)
	err := s.runner.run(ctx, "run_tool", func(tx repositories.Tx) error {
		var err error
		spend, err = s.credits.applyTx(ctx, tx, Mutation{
			UserID:         req.UserID,
			Type:           models.EntrySpend,
			Amount:         -req.CreditCost,
			Reason:         reason,
			RelatedTool:    req.ToolID,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			return err
		}
		result = &ToolRunResult{Success: true, NewBalance: spend.NewBalance, Duplicate: spend.Duplicate, EntryID: spend.Entry.ID}
		if spend.Duplicate {
			return replayTx(ctx, tx, result)
		}

		p, isNew, err := loadProfileTx(ctx, tx, req.UserID, s.now())
		if err != nil {
			return err
		}
		result.Progress = s.gamification.applyRun(p, s.gamification.cfg.XPForRun(req.MinutesSaved), req.MinutesSaved)
		for p.PendingLevelUps() > 0 {
			lu, err := s.gamification.onLevelUpTx(ctx, tx, p)
			if err != nil {
				return err
			}
			result.LevelUps = append(result.LevelUps, *lu)
		}
		result.Progress.PendingLevelUps = 0
		result.Progress.TimeBankMinutes = p.TimeBankMinutes

		if _, err := ensureWeek(p, s.missions.catalog, s.now()); err != nil {
			return err
		}
		runs, err := s.missions.advanceKindTx(ctx, tx, p, models.MissionToolRuns, 1)
		if err != nil {
			return err
		}
		minutes, err := s.missions.advanceKindTx(ctx, tx, p, models.MissionMinutesSaved, req.MinutesSaved)
		if err != nil {
			return err
		}
		result.Missions = append(runs, minutes...)

		if err := saveProfileTx(ctx, tx, p, isNew); err != nil {
			return err
		}

		acc, err := tx.GetAccount(ctx, req.UserID)
		if err != nil {
			return err
		}
		result.NewBalance = acc.Balance

		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode tool run result: %w", err)
		}
		return tx.InsertToolRun(ctx, &models.ToolRun{
			ID:        spend.Entry.ID,
			UserID:    req.UserID,
			ToolID:    req.ToolID,
			Result:    raw,
			CreatedAt: s.now(),
		})
	})
	if err != nil {
		noteRejection(req.UserID, err)
		return nil, err
	}

	recordCommitted(spend)
	if !result.Duplicate {
		for i := range result.LevelUps {
			s.gamification.recordLevelUp(req.UserID, &result.LevelUps[i])
		}
		s.missions.recordProgress(req.UserID, result.Missions...)
	}

	log.Info().Str("user_id", req.UserID).Str("tool_id", req.ToolID).Int64("cost", req.CreditCost).
		Int64("balance", result.NewBalance).Bool("duplicate", result.Duplicate).Msg("✅ Tool run charged")
	return result, nil
}

// replayTx fills result from the receipt of the first run under the same key.
// A spend made outside RunTool has no receipt and keeps the spend's own balance.
func replayTx(ctx context.Context, tx repositories.Tx, result *ToolRunResult) error {
	run, err := tx.GetToolRun(ctx, result.EntryID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var first ToolRunResult
	if err := json.Unmarshal(run.Result, &first); err != nil {
		return fmt.Errorf("decode tool run %s: %w", run.ID, err)
	}
	*result = first
	result.Duplicate = true
	return nil
}
