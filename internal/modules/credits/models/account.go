package models

import (
	"fmt"
	"strings"
	"time"
)

// Tier is the commercial plan of an account
type Tier string

const (
	TierFree       Tier = "free"
	TierBeta       Tier = "beta"
	TierSubscriber Tier = "subscriber"
)

// Valid reports whether t is a known tier
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierBeta, TierSubscriber:
		return true
	}
	return false
}

// ParseTier parses a tier name, defaulting an empty string to free
func ParseTier(s string) (Tier, error) {
	if s == "" {
		return TierFree, nil
	}
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// CreditAccount holds the spendable balance of one user.
// Balance always equals TotalEarned - TotalSpent and never goes negative.
type CreditAccount struct {
	UserID        string     `gorm:"type:text;primaryKey" json:"user_id"`
	Balance       int64      `gorm:"not null;default:0" json:"balance"`
	TotalEarned   int64      `gorm:"not null;default:0" json:"total_earned"`
	TotalSpent    int64      `gorm:"not null;default:0" json:"total_spent"`
	MonthlyUsed   int64      `gorm:"not null;default:0" json:"monthly_used"`
	LastResetAt   time.Time  `gorm:"not null" json:"last_reset_at"`
	Tier          Tier       `gorm:"type:text;not null;default:'free'" json:"tier"`
	BetaExpiresAt *time.Time `json:"beta_expires_at,omitempty"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`

	// Version is the compare-and-set token, bumped on every update
	Version int64 `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name
func (CreditAccount) TableName() string {
	return "credit_accounts"
}

// EffectiveTier returns the tier used for pricing at now.
// A beta account past its expiry is treated as free.
func (a *CreditAccount) EffectiveTier(now time.Time) Tier {
	if a.Tier == TierBeta && a.BetaExpiresAt != nil && !now.Before(*a.BetaExpiresAt) {
		return TierFree
	}
	return a.Tier
}

// IsClosed reports whether the account has been tombstoned
func (a *CreditAccount) IsClosed() bool {
	return a.ClosedAt != nil
}
