package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/models"
)

// GormStore is the Postgres Store built on gorm
type GormStore struct {
	gormQueries
}

// NewGormStore creates a store over an open gorm connection
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{gormQueries{db: db}}
}

// WithinTx runs fn inside a database transaction
func (s *GormStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormQueries{db: tx})
	})
	return translateGormError(err)
}

// Ping verifies the database is reachable
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormQueries struct {
	db *gorm.DB
}

// Postgres error codes treated as retryable conflicts
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func translateGormError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}

func (r *gormQueries) first(ctx context.Context, dest any, query string, args ...any) error {
	return translateGormError(r.db.WithContext(ctx).Where(query, args...).First(dest).Error)
}

func (r *gormQueries) insert(ctx context.Context, value any, what string) error {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(value)
	if res.Error != nil {
		return translateGormError(fmt.Errorf("insert %s: %w", what, res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	}
	return nil
}

func (r *gormQueries) cas(ctx context.Context, model any, keyColumn, key string, version int64, fields map[string]any) error {
	fields["version"] = gorm.Expr("version + 1")
	res := r.db.WithContext(ctx).Model(model).
		Where(keyColumn+" = ? AND version = ?", key, version).
		Updates(fields)
	if res.Error != nil {
		return translateGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *gormQueries) GetAccount(ctx context.Context, userID string) (*models.CreditAccount, error) {
	var acc models.CreditAccount
	if err := r.first(ctx, &acc, "user_id = ?", userID); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *gormQueries) InsertAccount(ctx context.Context, acc *models.CreditAccount) error {
	return r.insert(ctx, acc, "account")
}

func (r *gormQueries) UpdateAccount(ctx context.Context, acc *models.CreditAccount) error {
	err := r.cas(ctx, &models.CreditAccount{}, "user_id", acc.UserID, acc.Version, map[string]any{
		"balance":         acc.Balance,
		"total_earned":    acc.TotalEarned,
		"total_spent":     acc.TotalSpent,
		"monthly_used":    acc.MonthlyUsed,
		"last_reset_at":   acc.LastResetAt,
		"tier":            acc.Tier,
		"beta_expires_at": acc.BetaExpiresAt,
		"closed_at":       acc.ClosedAt,
		"updated_at":      acc.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	acc.Version++
	return nil
}

func (r *gormQueries) ListAccountIDs(ctx context.Context, after string, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.CreditAccount{}).
		Where("user_id > ?", after).
		Order("user_id").
		Limit(limit).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return ids, nil
}

func (r *gormQueries) GetEntry(ctx context.Context, id string) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	if err := r.first(ctx, &e, "id = ?", id); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *gormQueries) InsertEntry(ctx context.Context, e *models.LedgerEntry) error {
	return r.insert(ctx, e, "ledger entry")
}

func (r *gormQueries) ListEntries(ctx context.Context, q EntryQuery) ([]models.LedgerEntry, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", q.UserID)
	if q.Before != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND seq < ?))",
			q.Before.CreatedAt, q.Before.CreatedAt, q.Before.Seq)
	}

	var entries []models.LedgerEntry
	err := query.Order("created_at DESC").Order("seq DESC").Limit(q.Limit).Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

func (r *gormQueries) SumEntries(ctx context.Context, userID string) (int64, int64, error) {
	var out struct {
		Sum   int64
		Count int64
	}
	err := r.db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(amount), 0) AS sum, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Scan(&out).Error
	if err != nil {
		return 0, 0, fmt.Errorf("sum entries: %w", err)
	}
	return out.Sum, out.Count, nil
}

func (r *gormQueries) GetReferral(ctx context.Context, userID string) (*models.ReferralRecord, error) {
	var rec models.ReferralRecord
	if err := r.first(ctx, &rec, "user_id = ?", userID); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *gormQueries) GetReferralByCode(ctx context.Context, code string) (*models.ReferralRecord, error) {
	var rec models.ReferralRecord
	if err := r.first(ctx, &rec, "code = ?", code); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *gormQueries) InsertReferral(ctx context.Context, rec *models.ReferralRecord) error {
	return r.insert(ctx, rec, "referral")
}

func (r *gormQueries) UpdateReferral(ctx context.Context, rec *models.ReferralRecord) error {
	err := r.cas(ctx, &models.ReferralRecord{}, "user_id", rec.UserID, rec.Version, map[string]any{
		"referred_by":    rec.ReferredBy,
		"referred_users": rec.ReferredUsers,
		"credits_earned": rec.CreditsEarned,
		"updated_at":     rec.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("update referral: %w", err)
	}
	rec.Version++
	return nil
}

func (r *gormQueries) GetProfile(ctx context.Context, userID string) (*models.GamificationProfile, error) {
	var p models.GamificationProfile
	if err := r.first(ctx, &p, "user_id = ?", userID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormQueries) InsertProfile(ctx context.Context, p *models.GamificationProfile) error {
	return r.insert(ctx, p, "profile")
}

func (r *gormQueries) UpdateProfile(ctx context.Context, p *models.GamificationProfile) error {
	err := r.cas(ctx, &models.GamificationProfile{}, "user_id", p.UserID, p.Version, map[string]any{
		"level":              p.Level,
		"converted_level":    p.ConvertedLevel,
		"xp":                 p.XP,
		"time_bank_minutes":  p.TimeBankMinutes,
		"cumulative_minutes": p.CumulativeMinutes,
		"monthly_minutes":    p.MonthlyMinutes,
		"weekly_missions":    p.WeeklyMissions,
		"updated_at":         p.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	p.Version++
	return nil
}

func (r *gormQueries) GetToolRun(ctx context.Context, id string) (*models.ToolRun, error) {
	var run models.ToolRun
	if err := r.first(ctx, &run, "id = ?", id); err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *gormQueries) InsertToolRun(ctx context.Context, run *models.ToolRun) error {
	return r.insert(ctx, run, "tool run")
}

func (r *gormQueries) InsertAudit(ctx context.Context, a *audit.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return translateGormError(fmt.Errorf("failed to create audit log: %w", err))
	}
	return nil
}

func (r *gormQueries) ListAuditLogs(ctx context.Context, filter audit.AuditFilter) ([]audit.AuditLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&audit.AuditLog{})

	if filter.ActorID != "" {
		query = query.Where("actor_id = ?", filter.ActorID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Entity != "" {
		query = query.Where("entity = ?", filter.Entity)
	}
	if filter.EntityID != "" {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", *filter.EndDate)
	}

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	filter.Normalize()
	var logs []audit.AuditLog
	if err := query.
		Order("created_at DESC").
		Limit(filter.PageSize).
		Offset(filter.Offset()).
		Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get audit logs: %w", err)
	}
	return logs, totalCount, nil
}
