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

// MissionTemplate describes a mission assigned every week
type MissionTemplate struct {
	Key    string
	Kind   models.MissionKind
	Title  string
	Target int64
	Reward int64
}

// DefaultMissionCatalog is the weekly mission set
func DefaultMissionCatalog() []MissionTemplate {
	return []MissionTemplate{
		{Key: "tool-runs", Kind: models.MissionToolRuns, Title: "Run 3 tools this week", Target: 3, Reward: 5},
		{Key: "minutes-saved", Kind: models.MissionMinutesSaved, Title: "Save 120 minutes this week", Target: 120, Reward: 10},
	}
}

// WeekBounds returns the Monday 00:00 UTC that starts the week of t, and the next one
func WeekBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7 // days since Monday
	start := time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 7)
}

// MissionView is a mission with its derived state
type MissionView struct {
	models.Mission
	Status models.MissionStatus `json:"status"`
}

// MissionProgress is the outcome of advancing one mission
type MissionProgress struct {
	Mission          MissionView     `json:"mission"`
	JustCompleted    bool            `json:"just_completed"`
	AlreadyCompleted bool            `json:"already_completed"`
	Reward           *MutationResult `json:"reward,omitempty"`
}

func missionViews(missions []models.Mission, now time.Time) []MissionView {
	views := make([]MissionView, 0, len(missions))
	for _, m := range missions {
		views = append(views, MissionView{Mission: m, Status: m.Status(now)})
	}
	return views
}

// ensureWeek assigns the catalog for the week of now and drops instances older than last week.
// It reports whether the profile changed.
func ensureWeek(p *models.GamificationProfile, catalog []MissionTemplate, now time.Time) (bool, error) {
	current, err := p.Missions()
	if err != nil {
		return false, err
	}
	start, end := WeekBounds(now)
	keepFrom := start.AddDate(0, 0, -7)

	changed := false
	var kept []models.Mission
	have := map[string]bool{}
	for _, m := range current {
		if m.WeekStart.Before(keepFrom) {
			changed = true
			continue
		}
		kept = append(kept, m)
		have[m.ID] = true
	}

	for _, tpl := range catalog {
		id := tpl.Key + ":" + start.Format("2006-01-02")
		if have[id] {
			continue
		}
		kept = append(kept, models.Mission{
			ID:        id,
			Kind:      tpl.Kind,
			Title:     tpl.Title,
			Target:    tpl.Target,
			Reward:    tpl.Reward,
			WeekStart: start,
			WeekEnd:   end,
		})
		changed = true
	}

	if changed {
		p.SetMissions(kept)
	}
	return changed, nil
}

// MissionService runs the weekly mission state machine
type MissionService struct {
	base
	catalog []MissionTemplate
	credits *CreditService
}

// NewMissionService creates a new mission service
func NewMissionService(store repositories.Store, credits *CreditService, opts ...Option) *MissionService {
	return &MissionService{base: newBase(store, opts...), catalog: DefaultMissionCatalog(), credits: credits}
}

// advanceOne moves missions[i] forward by amount and pays the reward on completion.
// Completion flips false to true once; the reward key makes a replay a no-op too.
func (s *MissionService) advanceOne(ctx context.Context, tx repositories.Tx, userID string, m *models.Mission, amount int64) (*MissionProgress, error) {
	now := s.now()
	switch m.Status(now) {
	case models.MissionCompleted:
		return &MissionProgress{Mission: MissionView{Mission: *m, Status: models.MissionCompleted}, AlreadyCompleted: true}, nil
	case models.MissionExpired:
		return nil, fmt.Errorf("%w: %s", ErrMissionExpired, m.ID)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: progress must be positive", ErrInvalidAmount)
	}

	m.Current += amount
	if m.Current > m.Target {
		m.Current = m.Target
	}

	progress := &MissionProgress{}
	if m.Current >= m.Target {
		m.Completed = true
		m.CompletedAt = &now
		progress.JustCompleted = true

		if m.Reward > 0 {
			reward, err := s.credits.applyTx(ctx, tx, Mutation{
				UserID:         userID,
				Type:           models.EntryEarn,
				Amount:         m.Reward,
				Reason:         "mission reward: " + m.Title,
				IdempotencyKey: fmt.Sprintf("mission:%s:%s", userID, m.ID),
			})
			if err != nil {
				return nil, err
			}
			progress.Reward = reward
		}
	}
	progress.Mission = MissionView{Mission: *m, Status: m.Status(now)}
	return progress, nil
}

// advanceTx advances a mission by id
func (s *MissionService) advanceTx(ctx context.Context, tx repositories.Tx, p *models.GamificationProfile, missionID string, amount int64) (*MissionProgress, error) {
	missions, err := p.Missions()
	if err != nil {
		return nil, err
	}
	for i := range missions {
		if missions[i].ID != missionID {
			continue
		}
		progress, err := s.advanceOne(ctx, tx, p.UserID, &missions[i], amount)
		if err != nil {
			return nil, err
		}
		p.SetMissions(missions)
		return progress, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrMissionNotFound, missionID)
}

// advanceKindTx advances every open mission of kind, skipping finished ones
func (s *MissionService) advanceKindTx(ctx context.Context, tx repositories.Tx, p *models.GamificationProfile, kind models.MissionKind, amount int64) ([]MissionProgress, error) {
	if amount <= 0 {
		return nil, nil
	}
	now := s.now()
	missions, err := p.Missions()
	if err != nil {
		return nil, err
	}

	var out []MissionProgress
	for i := range missions {
		m := &missions[i]
		if m.Kind != kind {
			continue
		}
		if st := m.Status(now); st == models.MissionCompleted || st == models.MissionExpired {
			continue
		}
		progress, err := s.advanceOne(ctx, tx, p.UserID, m, amount)
		if err != nil {
			return nil, err
		}
		out = append(out, *progress)
	}
	if len(out) > 0 {
		p.SetMissions(missions)
	}
	return out, nil
}

// Missions returns this week's missions without persisting an assignment
func (s *MissionService) Missions(ctx context.Context, userID string) ([]MissionView, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		p = models.NewGamificationProfile(userID, s.now())
	} else if err != nil {
		return nil, fmt.Errorf("get missions: %w", err)
	}
	now := s.now()
	if _, err := ensureWeek(p, s.catalog, now); err != nil {
		return nil, fmt.Errorf("get missions: %w", err)
	}
	missions, err := p.Missions()
	if err != nil {
		return nil, fmt.Errorf("get missions: %w", err)
	}
	return missionViews(missions, now), nil
}

// AssignWeekly persists this week's missions for the user
func (s *MissionService) AssignWeekly(ctx context.Context, userID string) ([]MissionView, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	var missions []models.Mission
	err := s.runner.run(ctx, "assign_missions", func(tx repositories.Tx) error {
		p, isNew, err := loadProfileTx(ctx, tx, userID, s.now())
		if err != nil {
			return err
		}
		changed, err := ensureWeek(p, s.catalog, s.now())
		if err != nil {
			return err
		}
		if missions, err = p.Missions(); err != nil {
			return err
		}
		if !changed && !isNew {
			return nil
		}
		return saveProfileTx(ctx, tx, p, isNew)
	})
	if err != nil {
		return nil, fmt.Errorf("assign missions: %w", err)
	}
	return missionViews(missions, s.now()), nil
}

// Advance records progress on one mission. A completed mission ignores further progress.
func (s *MissionService) Advance(ctx context.Context, userID, missionID string, amount int64) (*MissionProgress, error) {
	if err := s.credits.ensureAccount(ctx, userID); err != nil {
		return nil, err
	}

	var progress *MissionProgress
	err := s.runner.run(ctx, "advance_mission", func(tx repositories.Tx) error {
		p, isNew, err := loadProfileTx(ctx, tx, userID, s.now())
		if err != nil {
			return err
		}
		if _, err := ensureWeek(p, s.catalog, s.now()); err != nil {
			return err
		}
		progress, err = s.advanceTx(ctx, tx, p, missionID, amount)
		if err != nil {
			return err
		}
		if progress.AlreadyCompleted {
			return nil
		}
		p.UpdatedAt = s.now()
		return saveProfileTx(ctx, tx, p, isNew)
	})
	if err != nil {
		return nil, fmt.Errorf("advance mission: %w", err)
	}

	s.recordProgress(userID, *progress)
	return progress, nil
}

func (s *MissionService) recordProgress(userID string, progress ...MissionProgress) {
	for _, p := range progress {
		if !p.JustCompleted {
			continue
		}
		metrics.RecordMissionCompleted(string(p.Mission.Kind))
		recordCommitted(p.Reward)
		log.Info().Str("user_id", userID).Str("mission_id", p.Mission.ID).Int64("reward", p.Mission.Reward).Msg("🏆 Mission completed")
	}
}
