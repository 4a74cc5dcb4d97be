package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/models"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/repositories"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/shared/metrics"
)

// GamificationConfig holds the XP curve and time bank conversion rates
type GamificationConfig struct {
	// BaseXP is the XP needed to leave level 1; each level needs BaseXP more than the last
	BaseXP       int64
	XPPerToolRun int64

	// MinutesPerCredit is how many banked minutes buy one credit, per tier
	MinutesPerCredit map[models.Tier]int64
}

// DefaultGamificationConfig returns the standard curve
func DefaultGamificationConfig() GamificationConfig {
	return GamificationConfig{
		BaseXP:       100,
		XPPerToolRun: 10,
		MinutesPerCredit: map[models.Tier]int64{
			models.TierFree:       30,
			models.TierBeta:       20,
			models.TierSubscriber: 15,
		},
	}
}

// XPToNextLevel is the XP required to go from level to level+1
func (c GamificationConfig) XPToNextLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	return c.BaseXP * int64(level)
}

// XPForRun is the XP a tool run earns
func (c GamificationConfig) XPForRun(minutesSaved int64) int64 {
	if minutesSaved < 0 {
		minutesSaved = 0
	}
	return c.XPPerToolRun + minutesSaved
}

// Convert turns banked minutes into whole credits; the remainder is forfeited
func (c GamificationConfig) Convert(minutes int64, tier models.Tier) int64 {
	rate := c.MinutesPerCredit[tier]
	if rate <= 0 || minutes <= 0 {
		return 0
	}
	return minutes / rate
}

// ToolRunProgress reports the profile after a tool run was recorded
type ToolRunProgress struct {
	Level           int   `json:"level"`
	XP              int64 `json:"xp"`
	XPToNextLevel   int64 `json:"xp_to_next_level"`
	TimeBankMinutes int64 `json:"time_bank_minutes"`
	LevelsGained    int   `json:"levels_gained"`
	LeveledUp       bool  `json:"leveled_up"`
	PendingLevelUps int   `json:"pending_level_ups"`
}

// LevelUpResult is the outcome of converting one level-up
type LevelUpResult struct {
	Level            int   `json:"level"`
	Converted        bool  `json:"converted"`
	MinutesConverted int64 `json:"minutes_converted"`
	CreditsAwarded   int64 `json:"credits_awarded"`
	NewBalance       int64 `json:"new_balance"`

	mutation *MutationResult
}

// ProfileView is the dashboard shape of a profile
type ProfileView struct {
	UserID            string        `json:"user_id"`
	Level             int           `json:"level"`
	XP                int64         `json:"xp"`
	XPToNextLevel     int64         `json:"xp_to_next_level"`
	TimeBankMinutes   int64         `json:"time_bank_minutes"`
	CumulativeMinutes int64         `json:"cumulative_minutes"`
	MonthlyMinutes    int64         `json:"monthly_minutes"`
	PendingLevelUps   int           `json:"pending_level_ups"`
	Missions          []MissionView `json:"missions"`
}

// GamificationService tracks XP, levels and the time bank
type GamificationService struct {
	base
	cfg     GamificationConfig
	credits *CreditService
}

// NewGamificationService creates a new gamification service
func NewGamificationService(store repositories.Store, credits *CreditService, cfg GamificationConfig, opts ...Option) *GamificationService {
	return &GamificationService{base: newBase(store, opts...), cfg: cfg, credits: credits}
}

// Config returns the active curve
func (s *GamificationService) Config() GamificationConfig {
	return s.cfg
}

// XPToNextLevel is exposed for dashboards
func (s *GamificationService) XPToNextLevel(level int) int64 {
	return s.cfg.XPToNextLevel(level)
}

// Convert is exposed for dashboards
func (s *GamificationService) Convert(minutes int64, tier models.Tier) int64 {
	return s.cfg.Convert(minutes, tier)
}

func loadProfileTx(ctx context.Context, tx repositories.Tx, userID string, now time.Time) (*models.GamificationProfile, bool, error) {
	p, err := tx.GetProfile(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.NewGamificationProfile(userID, now), true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return p, false, nil
}

func saveProfileTx(ctx context.Context, tx repositories.Tx, p *models.GamificationProfile, isNew bool) error {
	if isNew {
		return tx.InsertProfile(ctx, p)
	}
	return tx.UpdateProfile(ctx, p)
}

// applyRun adds a run to the profile and climbs as many levels as the XP covers.
// Levels gained stay pending until converted.
func (s *GamificationService) applyRun(p *models.GamificationProfile, xpGain, minutesSaved int64) *ToolRunProgress {
	p.XP += xpGain
	p.TimeBankMinutes += minutesSaved
	p.CumulativeMinutes += minutesSaved
	p.MonthlyMinutes += minutesSaved

	gained := 0
	for need := s.cfg.XPToNextLevel(p.Level); need > 0 && p.XP >= need; need = s.cfg.XPToNextLevel(p.Level) {
		p.XP -= need
		p.Level++
		gained++
	}
	p.UpdatedAt = s.now()

	return &ToolRunProgress{
		Level:           p.Level,
		XP:              p.XP,
		XPToNextLevel:   s.cfg.XPToNextLevel(p.Level),
		TimeBankMinutes: p.TimeBankMinutes,
		LevelsGained:    gained,
		LeveledUp:       gained > 0,
		PendingLevelUps: p.PendingLevelUps(),
	}
}

// onLevelUpTx converts the time bank for the next pending level-up.
// The credit and the drained bank land in the same transaction as the profile write.
func (s *GamificationService) onLevelUpTx(ctx context.Context, tx repositories.Tx, p *models.GamificationProfile) (*LevelUpResult, error) {
	if p.PendingLevelUps() == 0 {
		return &LevelUpResult{Level: p.Level}, nil
	}

	acc, err := tx.GetAccount(ctx, p.UserID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	level := p.ConvertedLevel + 1
	minutes := p.TimeBankMinutes
	credits := s.cfg.Convert(minutes, acc.EffectiveTier(s.now()))
	res := &LevelUpResult{Level: level, Converted: true, MinutesConverted: minutes, CreditsAwarded: credits, NewBalance: acc.Balance}

	if credits > 0 {
		mut, err := s.credits.applyTx(ctx, tx, Mutation{
			UserID:         p.UserID,
			Type:           models.EntryConversion,
			Amount:         credits,
			Reason:         "level-up conversion",
			IdempotencyKey: fmt.Sprintf("levelup:%s:%d", p.UserID, level),
		})
		if err != nil {
			return nil, err
		}
		res.NewBalance = mut.NewBalance
		res.mutation = mut
	}

	p.TimeBankMinutes = 0
	p.ConvertedLevel = level
	p.UpdatedAt = s.now()
	return res, nil
}

// RecordToolRun adds XP and banked minutes. Level-ups are left pending for OnLevelUp.
func (s *GamificationService) RecordToolRun(ctx context.Context, userID, toolID string, xpGain, minutesSaved int64) (*ToolRunProgress, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if xpGain < 0 || minutesSaved < 0 {
		return nil, fmt.Errorf("%w: xp and minutes must not be negative", ErrInvalidAmount)
	}

	var progress *ToolRunProgress
	err := s.runner.run(ctx, "record_tool_run", func(tx repositories.Tx) error {
		p, isNew, err := loadProfileTx(ctx, tx, userID, s.now())
		if err != nil {
			return err
		}
		progress = s.applyRun(p, xpGain, minutesSaved)
		return saveProfileTx(ctx, tx, p, isNew)
	})
	if err != nil {
		return nil, fmt.Errorf("record tool run: %w", err)
	}

	if progress.LeveledUp {
		log.Info().Str("user_id", userID).Str("tool_id", toolID).Int("level", progress.Level).Msg("🎉 Level up")
	}
	return progress, nil
}

// OnLevelUp converts the time bank for one pending level-up.
// With nothing pending it awards 0 and changes nothing.
func (s *GamificationService) OnLevelUp(ctx context.Context, userID string) (*LevelUpResult, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	var res *LevelUpResult
	err := s.runner.run(ctx, "level_up", func(tx repositories.Tx) error {
		p, isNew, err := loadProfileTx(ctx, tx, userID, s.now())
		if err != nil {
			return err
		}
		res, err = s.onLevelUpTx(ctx, tx, p)
		if err != nil || !res.Converted {
			return err
		}
		return saveProfileTx(ctx, tx, p, isNew)
	})
	if err != nil {
		return nil, fmt.Errorf("level up: %w", err)
	}

	s.recordLevelUp(userID, res)
	return res, nil
}

func (s *GamificationService) recordLevelUp(userID string, res *LevelUpResult) {
	if !res.Converted {
		return
	}
	metrics.RecordLevelUp()
	recordCommitted(res.mutation)
	log.Info().Str("user_id", userID).Int("level", res.Level).Int64("minutes", res.MinutesConverted).
		Int64("credits", res.CreditsAwarded).Msg("✅ Time bank converted")
}

// GetGamificationProfile returns the profile with this week's missions.
// Unknown users get a level 1 profile that is not persisted.
func (s *GamificationService) GetGamificationProfile(ctx context.Context, userID string) (*ProfileView, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		p = models.NewGamificationProfile(userID, s.now())
	} else if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	now := s.now()
	if _, err := ensureWeek(p, DefaultMissionCatalog(), now); err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	missions, err := p.Missions()
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &ProfileView{
		UserID:            p.UserID,
		Level:             p.Level,
		XP:                p.XP,
		XPToNextLevel:     s.cfg.XPToNextLevel(p.Level),
		TimeBankMinutes:   p.TimeBankMinutes,
		CumulativeMinutes: p.CumulativeMinutes,
		MonthlyMinutes:    p.MonthlyMinutes,
		PendingLevelUps:   p.PendingLevelUps(),
		Missions:          missionViews(missions, now),
	}, nil
}
