package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"gorm.io/datatypes"
)

// ReferralRecord tracks who referred a user and whom they referred
type ReferralRecord struct {
	UserID        string         `gorm:"type:text;primaryKey" json:"user_id"`
	Code          string         `gorm:"type:text;uniqueIndex;not null" json:"code"`
	ReferredBy    *string        `gorm:"type:text" json:"referred_by,omitempty"`
	ReferredUsers datatypes.JSON `gorm:"type:jsonb;not null" json:"referred_users"`
	CreditsEarned int64          `gorm:"not null;default:0" json:"credits_earned"`
	Version       int64          `gorm:"not null;default:0" json:"-"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name
func (ReferralRecord) TableName() string {
	return "referral_records"
}

// ReferredUserIDs decodes the referred users set
func (r *ReferralRecord) ReferredUserIDs() ([]string, error) {
	var ids []string
	if len(r.ReferredUsers) == 0 {
		return ids, nil
	}
	if err := json.Unmarshal(r.ReferredUsers, &ids); err != nil {
		return nil, fmt.Errorf("decode referred users of %s: %w", r.UserID, err)
	}
	return ids, nil
}

// HasReferred reports whether userID is in the referred set
func (r *ReferralRecord) HasReferred(userID string) (bool, error) {
	ids, err := r.ReferredUserIDs()
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, userID), nil
}

// AddReferred adds userID to the referred set.
// It returns false if the user was already present. A set that does not decode is left untouched.
func (r *ReferralRecord) AddReferred(userID string) (bool, error) {
	ids, err := r.ReferredUserIDs()
	if err != nil {
		return false, err
	}
	if slices.Contains(ids, userID) {
		return false, nil
	}
	ids = append(ids, userID)
	raw, err := json.Marshal(ids)
	if err != nil {
		return false, err
	}
	r.ReferredUsers = datatypes.JSON(raw)
	return true, nil
}
