package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// GamificationProfile tracks progression and the time bank of a user
type GamificationProfile struct {
	UserID string `gorm:"type:text;primaryKey" json:"user_id"`
	Level  int    `gorm:"not null;default:1" json:"level"`

	// ConvertedLevel is the highest level whose time bank conversion has been paid.
	// Level - ConvertedLevel is the number of pending level-ups.
	ConvertedLevel int `gorm:"not null;default:1" json:"-"`

	// XP is progress within the current level
	XP                int64          `gorm:"not null;default:0" json:"xp"`
	TimeBankMinutes   int64          `gorm:"not null;default:0" json:"time_bank_minutes"`
	CumulativeMinutes int64          `gorm:"not null;default:0" json:"cumulative_minutes"`
	MonthlyMinutes    int64          `gorm:"not null;default:0" json:"monthly_minutes"`
	WeeklyMissions    datatypes.JSON `gorm:"type:jsonb;not null" json:"-"`
	Version           int64          `gorm:"not null;default:0" json:"-"`
	CreatedAt         time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name
func (GamificationProfile) TableName() string {
	return "gamification_profiles"
}

// NewGamificationProfile returns a level 1 profile with no progress
func NewGamificationProfile(userID string, now time.Time) *GamificationProfile {
	return &GamificationProfile{
		UserID:         userID,
		Level:          1,
		ConvertedLevel: 1,
		WeeklyMissions: datatypes.JSON("[]"),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// PendingLevelUps is the number of level-ups not yet converted into credits
func (p *GamificationProfile) PendingLevelUps() int {
	if p.Level <= p.ConvertedLevel {
		return 0
	}
	return p.Level - p.ConvertedLevel
}

// Missions decodes the embedded mission instances
func (p *GamificationProfile) Missions() ([]Mission, error) {
	var missions []Mission
	if len(p.WeeklyMissions) == 0 {
		return missions, nil
	}
	if err := json.Unmarshal(p.WeeklyMissions, &missions); err != nil {
		return nil, fmt.Errorf("decode missions of %s: %w", p.UserID, err)
	}
	return missions, nil
}

// SetMissions replaces the embedded mission instances
func (p *GamificationProfile) SetMissions(missions []Mission) {
	if missions == nil {
		missions = []Mission{}
	}
	raw, _ := json.Marshal(missions)
	p.WeeklyMissions = datatypes.JSON(raw)
}
