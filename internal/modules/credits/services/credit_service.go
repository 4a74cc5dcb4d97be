package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/models"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/repositories"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/shared/metrics"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// CreditConfig sets the starting grants per tier
type CreditConfig struct {
	StartingBonus map[models.Tier]int64
	BetaDuration  time.Duration
}

// DefaultCreditConfig returns the standard signup grants
func DefaultCreditConfig() CreditConfig {
	return CreditConfig{
		StartingBonus: map[models.Tier]int64{
			models.TierFree:       5,
			models.TierBeta:       10,
			models.TierSubscriber: 25,
		},
		BetaDuration: 90 * 24 * time.Hour,
	}
}

// Mutation is one signed balance change
type Mutation struct {
	UserID         string
	Type           models.EntryType
	Amount         int64
	Reason         string
	RelatedTool    string
	IdempotencyKey string
}

// MutationResult is the committed outcome of a mutation.
// Duplicate is set when the idempotency key had already been applied.
type MutationResult struct {
	Entry      *models.LedgerEntry `json:"entry"`
	NewBalance int64               `json:"new_balance"`
	Duplicate  bool                `json:"duplicate"`
}

// HistoryPage is one page of ledger entries, newest first
type HistoryPage struct {
	Entries    []models.LedgerEntry `json:"entries"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// Reconciliation compares an account against a replay of its ledger
type Reconciliation struct {
	UserID      string `json:"user_id"`
	Balance     int64  `json:"balance"`
	TotalEarned int64  `json:"total_earned"`
	TotalSpent  int64  `json:"total_spent"`
	LedgerSum   int64  `json:"ledger_sum"`
	EntryCount  int64  `json:"entry_count"`
	Consistent  bool   `json:"consistent"`
}

// CreditService owns every balance mutation
type CreditService struct {
	base
	cfg CreditConfig
}

// NewCreditService creates a new credit service
func NewCreditService(store repositories.Store, cfg CreditConfig, opts ...Option) *CreditService {
	return &CreditService{base: newBase(store, opts...), cfg: cfg}
}

// InitializeAccount creates the account with its tier bonus, or returns the existing one unchanged
func (s *CreditService) InitializeAccount(ctx context.Context, userID string, tier models.Tier) (*models.CreditAccount, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if !tier.Valid() {
		return nil, fmt.Errorf("initialize account: unknown tier %q", tier)
	}

	var (
		acc     *models.CreditAccount
		created bool
	)
	err := s.runner.run(ctx, "initialize_account", func(tx repositories.Tx) error {
		created = false
		existing, err := tx.GetAccount(ctx, userID)
		if err == nil {
			acc = existing
			return nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return err
		}

		now := s.now()
		bonus := s.cfg.StartingBonus[tier]
		acc = &models.CreditAccount{
			UserID:      userID,
			Balance:     bonus,
			TotalEarned: bonus,
			LastResetAt: now,
			Tier:        tier,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if tier == models.TierBeta && s.cfg.BetaDuration > 0 {
			expires := now.Add(s.cfg.BetaDuration)
			acc.BetaExpiresAt = &expires
		}
		if err := tx.InsertAccount(ctx, acc); err != nil {
			return err
		}
		if bonus > 0 {
			if err := tx.InsertEntry(ctx, &models.LedgerEntry{
				ID:               "signup:" + userID,
				UserID:           userID,
				Type:             models.EntryEarn,
				Amount:           bonus,
				Reason:           string(tier) + " signup",
				ResultingBalance: bonus,
				CreatedAt:        now,
			}); err != nil {
				return err
			}
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("initialize account: %w", err)
	}

	if created {
		metrics.RecordLedgerEntry(string(models.EntryEarn))
		log.Info().Str("user_id", userID).Str("tier", string(tier)).Int64("balance", acc.Balance).Msg("✅ Credit account initialized")
	}
	return acc, nil
}

// ensureAccount lazily creates a free account for a user touched for the first time
func (s *CreditService) ensureAccount(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	_, err := s.store.GetAccount(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("load account: %w", err)
	}
	_, err = s.InitializeAccount(ctx, userID, models.TierFree)
	return err
}

// applyTx applies m inside tx: it is the single read-check-write path for balances.
// A key that was already applied returns the recorded result without mutating.
func (s *CreditService) applyTx(ctx context.Context, tx repositories.Tx, m Mutation) (*MutationResult, error) {
	id := m.IdempotencyKey
	if id == "" {
		id = uuid.NewString()
	}

	existing, err := tx.GetEntry(ctx, id)
	if err == nil {
		if existing.UserID != m.UserID || existing.Type != m.Type || existing.Amount != m.Amount {
			return nil, fmt.Errorf("%w: %s", ErrIdempotencyKeyReused, id)
		}
		return &MutationResult{Entry: existing, NewBalance: existing.ResultingBalance, Duplicate: true}, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	acc, err := tx.GetAccount(ctx, m.UserID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if acc.IsClosed() {
		return nil, ErrAccountClosed
	}

	newBalance := acc.Balance + m.Amount
	if newBalance < 0 {
		return nil, &InsufficientCreditsError{CurrentBalance: acc.Balance, Requested: -m.Amount}
	}

	if m.Amount >= 0 {
		acc.TotalEarned += m.Amount
	} else {
		acc.TotalSpent += -m.Amount
		if m.Type == models.EntrySpend {
			acc.MonthlyUsed += -m.Amount
		}
	}
	now := s.now()
	acc.Balance = newBalance
	acc.UpdatedAt = now
	if err := tx.UpdateAccount(ctx, acc); err != nil {
		return nil, err
	}

	entry := &models.LedgerEntry{
		ID:               id,
		UserID:           m.UserID,
		Type:             m.Type,
		Amount:           m.Amount,
		Reason:           m.Reason,
		RelatedTool:      m.RelatedTool,
		ResultingBalance: newBalance,
		CreatedAt:        now,
	}
	if err := tx.InsertEntry(ctx, entry); err != nil {
		return nil, err
	}
	return &MutationResult{Entry: entry, NewBalance: newBalance}, nil
}

// apply runs a single mutation in its own transaction
func (s *CreditService) apply(ctx context.Context, op string, m Mutation) (*MutationResult, error) {
	if err := s.ensureAccount(ctx, m.UserID); err != nil {
		return nil, err
	}

	var res *MutationResult
	err := s.runner.run(ctx, op, func(tx repositories.Tx) error {
		var err error
		res, err = s.applyTx(ctx, tx, m)
		return err
	})
	if err != nil {
		noteRejection(m.UserID, err)
		return nil, err
	}

	recordCommitted(res)
	log.Debug().Str("user_id", m.UserID).Str("entry_id", res.Entry.ID).Int64("amount", m.Amount).
		Bool("duplicate", res.Duplicate).Msg(op)
	return res, nil
}

// noteRejection counts and logs a spend refused for balance
func noteRejection(userID string, err error) {
	var insufficient *InsufficientCreditsError
	if errors.As(err, &insufficient) {
		metrics.RecordInsufficientCredits()
		log.Info().Str("user_id", userID).Int64("balance", insufficient.CurrentBalance).
			Int64("requested", insufficient.Requested).Msg("spend rejected: insufficient credits")
	}
}

func recordCommitted(results ...*MutationResult) {
	for _, r := range results {
		if r != nil && !r.Duplicate {
			metrics.RecordLedgerEntry(string(r.Entry.Type))
		}
	}
}

// Spend deducts amount if the balance covers it.
// A short balance returns *InsufficientCreditsError and changes nothing.
func (s *CreditService) Spend(ctx context.Context, userID string, amount int64, reason, relatedTool, idempotencyKey string) (*MutationResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: spend must be positive", ErrInvalidAmount)
	}
	return s.apply(ctx, "spend", Mutation{
		UserID: userID, Type: models.EntrySpend, Amount: -amount,
		Reason: reason, RelatedTool: relatedTool, IdempotencyKey: idempotencyKey,
	})
}

// Earn credits amount to the user
func (s *CreditService) Earn(ctx context.Context, userID string, amount int64, reason, idempotencyKey string) (*MutationResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: earn must be positive", ErrInvalidAmount)
	}
	return s.apply(ctx, "earn", Mutation{
		UserID: userID, Type: models.EntryEarn, Amount: amount, Reason: reason, IdempotencyKey: idempotencyKey,
	})
}

// Refund returns credits to the user, recorded separately from earnings
func (s *CreditService) Refund(ctx context.Context, userID string, amount int64, reason, idempotencyKey string) (*MutationResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: refund must be positive", ErrInvalidAmount)
	}
	return s.apply(ctx, "refund", Mutation{
		UserID: userID, Type: models.EntryRefund, Amount: amount, Reason: reason, IdempotencyKey: idempotencyKey,
	})
}

// Adjust applies a signed operator correction and audits it in the same transaction
func (s *CreditService) Adjust(ctx context.Context, actorID, userID string, amount int64, reason, idempotencyKey string) (*MutationResult, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if amount == 0 {
		return nil, fmt.Errorf("%w: adjustment must be non-zero", ErrInvalidAmount)
	}

	var res *MutationResult
	err := s.runner.run(ctx, "adjust", func(tx repositories.Tx) error {
		before, err := tx.GetAccount(ctx, userID)
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}

		res, err = s.applyTx(ctx, tx, Mutation{
			UserID: userID, Type: models.EntryAdmin, Amount: amount, Reason: reason, IdempotencyKey: idempotencyKey,
		})
		if err != nil || res.Duplicate {
			return err
		}
		return tx.InsertAudit(ctx, audit.NewChange(actorID, audit.ActionAdjust, audit.EntityAccount, userID,
			map[string]int64{"balance": before.Balance},
			map[string]int64{"balance": res.NewBalance, "amount": amount},
			reason, s.now()))
	})
	if err != nil {
		return nil, fmt.Errorf("adjust: %w", err)
	}

	recordCommitted(res)
	log.Info().Str("actor_id", actorID).Str("user_id", userID).Int64("amount", amount).Msg("✅ Balance adjusted")
	return res, nil
}

// CloseAccount tombstones the account. The ledger is kept and reads keep working.
func (s *CreditService) CloseAccount(ctx context.Context, actorID, userID string) (*models.CreditAccount, error) {
	var acc *models.CreditAccount
	err := s.runner.run(ctx, "close_account", func(tx repositories.Tx) error {
		var err error
		acc, err = tx.GetAccount(ctx, userID)
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrAccountNotFound
		}
		if err != nil || acc.IsClosed() {
			return err
		}

		now := s.now()
		acc.ClosedAt = &now
		acc.UpdatedAt = now
		if err := tx.UpdateAccount(ctx, acc); err != nil {
			return err
		}
		return tx.InsertAudit(ctx, audit.NewChange(actorID, audit.ActionClose, audit.EntityAccount, userID,
			nil, map[string]any{"closed_at": now, "balance": acc.Balance}, "account closed", now))
	})
	if err != nil {
		return nil, fmt.Errorf("close account: %w", err)
	}

	log.Info().Str("actor_id", actorID).Str("user_id", userID).Msg("🔒 Credit account closed")
	return acc, nil
}

// GetAccount returns the account without creating it
func (s *CreditService) GetAccount(ctx context.Context, userID string) (*models.CreditAccount, error) {
	acc, err := s.store.GetAccount(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return acc, nil
}

// GetBalance returns the current balance
func (s *CreditService) GetBalance(ctx context.Context, userID string) (int64, error) {
	acc, err := s.GetAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// GetHistory returns ledger entries newest first, limit clamped to 1..100
func (s *CreditService) GetHistory(ctx context.Context, userID string, limit int, cursor string) (*HistoryPage, error) {
	if _, err := s.GetAccount(ctx, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	before, err := repositories.DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	entries, err := s.store.ListEntries(ctx, repositories.EntryQuery{UserID: userID, Limit: limit + 1, Before: before})
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	page := &HistoryPage{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		page.NextCursor = repositories.CursorFor(entries[limit-1]).Encode()
	}
	if page.Entries == nil {
		page.Entries = []models.LedgerEntry{}
	}
	return page, nil
}

// VerifyAccount replays the ledger and checks it against the stored counters
func (s *CreditService) VerifyAccount(ctx context.Context, userID string) (*Reconciliation, error) {
	for attempt := 0; attempt < 3; attempt++ {
		acc, err := s.GetAccount(ctx, userID)
		if err != nil {
			return nil, err
		}
		sum, count, err := s.store.SumEntries(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("verify account: %w", err)
		}
		after, err := s.GetAccount(ctx, userID)
		if err != nil {
			return nil, err
		}
		// a write landed between the reads; the snapshot is torn
		if after.Version != acc.Version {
			continue
		}

		rec := &Reconciliation{
			UserID:      userID,
			Balance:     acc.Balance,
			TotalEarned: acc.TotalEarned,
			TotalSpent:  acc.TotalSpent,
			LedgerSum:   sum,
			EntryCount:  count,
		}
		rec.Consistent = acc.Balance == sum && acc.Balance == acc.TotalEarned-acc.TotalSpent && acc.Balance >= 0
		if !rec.Consistent {
			log.Error().Str("user_id", userID).Int64("balance", acc.Balance).Int64("ledger_sum", sum).
				Msg("❌ Ledger does not reconcile with account")
		}
		return rec, nil
	}
	return nil, fmt.Errorf("verify account: %w", ErrRetriesExhausted)
}
