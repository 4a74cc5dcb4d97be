package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/models"
)

// SignupRequest is an account creation coming from the identity provider
type SignupRequest struct {
	UserID       string      `json:"user_id"`
	Tier         models.Tier `json:"tier"`
	ReferralCode string      `json:"referral_code,omitempty"`
}

// SignupResult is the state after signup
type SignupResult struct {
	Account    *models.CreditAccount `json:"account"`
	Code       string                `json:"referral_code"`
	ReferrerID string                `json:"referrer_id,omitempty"`
	Linked     bool                  `json:"linked"`
	Reward     *ReferralReward       `json:"referral_reward,omitempty"`
	Warning    string                `json:"warning,omitempty"`
}

// SignupService creates accounts and attributes referrals
type SignupService struct {
	credits   *CreditService
	referrals *ReferralService
}

// NewSignupService creates a new signup service
func NewSignupService(credits *CreditService, referrals *ReferralService) *SignupService {
	return &SignupService{credits: credits, referrals: referrals}
}

// Signup initializes the account, issues a code and links the referral.
// An invalid referral code is reported in Warning and signup proceeds unlinked.
// Every step is idempotent so a retried signup pays at most once.
func (s *SignupService) Signup(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	if req.Tier == "" {
		req.Tier = models.TierFree
	}
	acc, err := s.credits.InitializeAccount(ctx, req.UserID, req.Tier)
	if err != nil {
		return nil, err
	}

	code, err := s.referrals.GenerateCode(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	result := &SignupResult{Account: acc, Code: code}

	if req.ReferralCode == "" {
		return result, nil
	}

	link, err := s.referrals.Link(ctx, req.UserID, req.ReferralCode)
	if errors.Is(err, ErrInvalidReferralCode) {
		log.Warn().Err(err).Str("user_id", req.UserID).Str("code", req.ReferralCode).Msg("⚠️ Ignoring invalid referral code at signup")
		result.Warning = err.Error()
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.ReferrerID = link.ReferrerID
	result.Linked = link.Linked

	reward, err := s.referrals.RewardSignup(ctx, link.ReferrerID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("signup reward: %w", err)
	}
	result.Reward = reward

	if result.Account, err = s.credits.GetAccount(ctx, req.UserID); err != nil {
		return nil, err
	}
	return result, nil
}
