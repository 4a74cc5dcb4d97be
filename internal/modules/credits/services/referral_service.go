package services

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
	"gorm.io/datatypes"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/models"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/repositories"
)

// codeAlphabet drops 0/O and 1/I so codes survive being read aloud
const (
	codeAlphabet      = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength        = 6
	maxCodeSuffix     = 1000
	qrCodeSize        = 256
	defaultSignupPath = "/signup?ref="
)

// ReferralConfig sets referral bonuses
type ReferralConfig struct {
	SignupBonus        int64
	FirstPurchaseBonus int64
	PublicBaseURL      string
}

// DefaultReferralConfig returns the standard bonuses
func DefaultReferralConfig() ReferralConfig {
	return ReferralConfig{SignupBonus: 5, FirstPurchaseBonus: 20, PublicBaseURL: "http://localhost:8080"}
}

// LinkResult is the outcome of attaching a new user to a referrer
type LinkResult struct {
	ReferrerID string `json:"referrer_id"`
	Linked     bool   `json:"linked"`
}

// ReferralReward holds both sides of a signup bonus
type ReferralReward struct {
	Referrer *MutationResult `json:"referrer"`
	Referee  *MutationResult `json:"referee"`
}

// ReferralStats is the dashboard summary of a referrer
type ReferralStats struct {
	Code          string `json:"code"`
	ShareURL      string `json:"share_url"`
	ReferredCount int    `json:"referred_count"`
	CreditsEarned int64  `json:"credits_earned"`
}

// ReferralService issues codes, links signups and pays referral bonuses
type ReferralService struct {
	base
	cfg     ReferralConfig
	credits *CreditService
}

// NewReferralService creates a new referral service
func NewReferralService(store repositories.Store, credits *CreditService, cfg ReferralConfig, opts ...Option) *ReferralService {
	return &ReferralService{base: newBase(store, opts...), cfg: cfg, credits: credits}
}

// BaseCode is the deterministic code candidate for userID
func BaseCode(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	var b strings.Builder
	for i := 0; i < codeLength; i++ {
		b.WriteByte(codeAlphabet[int(sum[i])%len(codeAlphabet)])
	}
	return b.String()
}

// NormalizeCode canonicalises user-typed codes
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// generateCodeTx returns the user's record, creating it with the first free code if needed
func (s *ReferralService) generateCodeTx(ctx context.Context, tx repositories.Tx, userID string) (*models.ReferralRecord, error) {
	rec, err := tx.GetReferral(ctx, userID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	base := BaseCode(userID)
	code := base
	for suffix := 1; ; suffix++ {
		_, err := tx.GetReferralByCode(ctx, code)
		if errors.Is(err, repositories.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		if suffix > maxCodeSuffix {
			return nil, fmt.Errorf("no free referral code for %s", userID)
		}
		code = base + strconv.Itoa(suffix)
	}

	now := s.now()
	rec = &models.ReferralRecord{
		UserID:        userID,
		Code:          code,
		ReferredUsers: datatypes.JSON("[]"),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.InsertReferral(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// GenerateCode returns the user's referral code, assigning one on first use
func (s *ReferralService) GenerateCode(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", ErrMissingUserID
	}

	var code string
	err := s.runner.run(ctx, "generate_code", func(tx repositories.Tx) error {
		rec, err := s.generateCodeTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		code = rec.Code
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return code, nil
}

// Link attaches newUserID to the owner of code.
// A user that already has a referrer is left unchanged and Linked is false.
func (s *ReferralService) Link(ctx context.Context, newUserID, code string) (*LinkResult, error) {
	if newUserID == "" {
		return nil, ErrMissingUserID
	}
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrInvalidReferralCode
	}

	var res *LinkResult
	err := s.runner.run(ctx, "link_referral", func(tx repositories.Tx) error {
		owner, err := tx.GetReferralByCode(ctx, code)
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrInvalidReferralCode
		}
		if err != nil {
			return err
		}
		if owner.UserID == newUserID {
			return ErrSelfReferral
		}

		rec, err := s.generateCodeTx(ctx, tx, newUserID)
		if err != nil {
			return err
		}
		if rec.ReferredBy != nil {
			res = &LinkResult{ReferrerID: *rec.ReferredBy}
			return nil
		}
		if owner.ReferredBy != nil && *owner.ReferredBy == newUserID {
			return ErrReferralCycle
		}

		now := s.now()
		added, err := owner.AddReferred(newUserID)
		if err != nil {
			return err
		}
		if added {
			owner.UpdatedAt = now
			if err := tx.UpdateReferral(ctx, owner); err != nil {
				return err
			}
		}
		referrer := owner.UserID
		rec.ReferredBy = &referrer
		rec.UpdatedAt = now
		if err := tx.UpdateReferral(ctx, rec); err != nil {
			return err
		}
		res = &LinkResult{ReferrerID: referrer, Linked: true}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("link referral: %w", err)
	}

	if res.Linked {
		log.Info().Str("user_id", newUserID).Str("referrer_id", res.ReferrerID).Msg("✅ Referral linked")
	}
	return res, nil
}

func (s *ReferralService) requireReferredBy(ctx context.Context, referrerID, userID string) error {
	rec, err := s.store.GetReferral(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrNotReferred
	}
	if err != nil {
		return fmt.Errorf("load referral: %w", err)
	}
	if rec.ReferredBy == nil || *rec.ReferredBy != referrerID {
		return ErrNotReferred
	}
	return nil
}

// payReferrer credits the referrer and bumps their running total in one transaction
func (s *ReferralService) payReferrer(ctx context.Context, op, referrerID string, amount int64, reason, key string) (*MutationResult, error) {
	var res *MutationResult
	err := s.runner.run(ctx, op, func(tx repositories.Tx) error {
		var err error
		res, err = s.credits.applyTx(ctx, tx, Mutation{
			UserID: referrerID, Type: models.EntryEarn, Amount: amount, Reason: reason, IdempotencyKey: key,
		})
		if err != nil || res.Duplicate {
			return err
		}
		rec, err := s.generateCodeTx(ctx, tx, referrerID)
		if err != nil {
			return err
		}
		rec.CreditsEarned += amount
		rec.UpdatedAt = s.now()
		return tx.UpdateReferral(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	recordCommitted(res)
	return res, nil
}

// RewardSignup pays the signup bonus to both sides.
// Each side is its own transaction keyed by the pair, so a retry only pays the side that failed.
func (s *ReferralService) RewardSignup(ctx context.Context, referrerID, newUserID string) (*ReferralReward, error) {
	if err := s.requireReferredBy(ctx, referrerID, newUserID); err != nil {
		return nil, err
	}
	if s.cfg.SignupBonus <= 0 {
		return &ReferralReward{}, nil
	}
	for _, id := range []string{referrerID, newUserID} {
		if err := s.credits.ensureAccount(ctx, id); err != nil {
			return nil, err
		}
	}

	keyBase := fmt.Sprintf("referral:%s:%s:signup", referrerID, newUserID)
	referrer, err := s.payReferrer(ctx, "referral_signup", referrerID, s.cfg.SignupBonus, "referral signup bonus", keyBase+":referrer")
	if err != nil {
		return nil, fmt.Errorf("reward referrer: %w", err)
	}

	var referee *MutationResult
	err = s.runner.run(ctx, "referral_signup", func(tx repositories.Tx) error {
		var err error
		referee, err = s.credits.applyTx(ctx, tx, Mutation{
			UserID: newUserID, Type: models.EntryEarn, Amount: s.cfg.SignupBonus,
			Reason: "referral welcome bonus", IdempotencyKey: keyBase + ":referee",
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reward referee: %w", err)
	}
	recordCommitted(referee)

	return &ReferralReward{Referrer: referrer, Referee: referee}, nil
}

// RewardFirstPurchase pays the referrer once when their referee first buys
func (s *ReferralService) RewardFirstPurchase(ctx context.Context, referrerID, purchaserID string) (*MutationResult, error) {
	if err := s.requireReferredBy(ctx, referrerID, purchaserID); err != nil {
		return nil, err
	}
	if s.cfg.FirstPurchaseBonus <= 0 {
		return nil, fmt.Errorf("%w: first purchase bonus disabled", ErrInvalidAmount)
	}
	if err := s.credits.ensureAccount(ctx, referrerID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("referral:%s:%s:first-purchase", referrerID, purchaserID)
	res, err := s.payReferrer(ctx, "referral_first_purchase", referrerID, s.cfg.FirstPurchaseBonus, "referral first purchase bonus", key)
	if err != nil {
		return nil, fmt.Errorf("reward first purchase: %w", err)
	}
	return res, nil
}

// GetReferralStats returns the user's code and referral totals
func (s *ReferralService) GetReferralStats(ctx context.Context, userID string) (*ReferralStats, error) {
	rec, err := s.store.GetReferral(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		if _, err := s.GenerateCode(ctx, userID); err != nil {
			return nil, err
		}
		rec, err = s.store.GetReferral(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("referral stats: %w", err)
	}

	referred, err := rec.ReferredUserIDs()
	if err != nil {
		return nil, fmt.Errorf("referral stats: %w", err)
	}
	return &ReferralStats{
		Code:          rec.Code,
		ShareURL:      s.ShareURL(rec.Code),
		ReferredCount: len(referred),
		CreditsEarned: rec.CreditsEarned,
	}, nil
}

// ShareURL is the signup link carrying code
func (s *ReferralService) ShareURL(code string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + defaultSignupPath + code
}

// QRCode renders the user's share link as a PNG
func (s *ReferralService) QRCode(ctx context.Context, userID string) ([]byte, error) {
	code, err := s.GenerateCode(ctx, userID)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(s.ShareURL(code), qrcode.Medium, qrCodeSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}
