package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/models"
)

// SQLiteStore is the single node Store backed by modernc.org/sqlite
type SQLiteStore struct {
	db *sql.DB
	sqliteQueries
}

// OpenSQLite opens (or creates) the database file at path and applies the schema
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; transactions queue on the connection instead of failing with SQLITE_BUSY
	db.SetMaxOpenConns(1)

	for _, stmt := range SQLiteMigrations() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
	}

	log.Info().Str("path", path).Msg("✅ SQLite credit store ready")
	return &SQLiteStore{db: db, sqliteQueries: sqliteQueries{q: db}}, nil
}

// WithinTx runs fn inside a sqlite transaction
func (s *SQLiteStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateSQLiteError(fmt.Errorf("begin tx: %w", err))
	}

	if err := fn(&sqliteQueries{q: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return translateSQLiteError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// Ping verifies the database is reachable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteQueries runs statements against either the pool or an open transaction
type sqliteQueries struct {
	q queryer
}

type rowScanner interface {
	Scan(dest ...any) error
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func translateSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED,
			sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}

// ─── Accounts ───────────────────────────────────────────────────────────────

const accountColumns = `user_id, balance, total_earned, total_spent, monthly_used, last_reset_at,
	tier, beta_expires_at, closed_at, version, created_at, updated_at`

func scanAccount(row rowScanner) (*models.CreditAccount, error) {
	var (
		acc                   models.CreditAccount
		tier                  string
		lastReset, created    int64
		updated               int64
		betaExpires, closedAt sql.NullInt64
	)
	err := row.Scan(&acc.UserID, &acc.Balance, &acc.TotalEarned, &acc.TotalSpent, &acc.MonthlyUsed,
		&lastReset, &tier, &betaExpires, &closedAt, &acc.Version, &created, &updated)
	if err != nil {
		return nil, translateSQLiteError(err)
	}
	acc.Tier = models.Tier(tier)
	acc.LastResetAt = fromNanos(lastReset)
	acc.BetaExpiresAt = timePtr(betaExpires)
	acc.ClosedAt = timePtr(closedAt)
	acc.CreatedAt = fromNanos(created)
	acc.UpdatedAt = fromNanos(updated)
	return &acc, nil
}

func (s *sqliteQueries) GetAccount(ctx context.Context, userID string) (*models.CreditAccount, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM credit_accounts WHERE user_id = ?`, userID)
	return scanAccount(row)
}

func (s *sqliteQueries) InsertAccount(ctx context.Context, acc *models.CreditAccount) error {
	res, err := s.q.ExecContext(ctx, `INSERT INTO credit_accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		acc.UserID, acc.Balance, acc.TotalEarned, acc.TotalSpent, acc.MonthlyUsed, toNanos(acc.LastResetAt),
		string(acc.Tier), nullNanos(acc.BetaExpiresAt), nullNanos(acc.ClosedAt), acc.Version,
		toNanos(acc.CreatedAt), toNanos(acc.UpdatedAt))
	return insertResult(res, err, "account")
}

func (s *sqliteQueries) UpdateAccount(ctx context.Context, acc *models.CreditAccount) error {
	res, err := s.q.ExecContext(ctx, `UPDATE credit_accounts SET
			balance = ?, total_earned = ?, total_spent = ?, monthly_used = ?, last_reset_at = ?,
			tier = ?, beta_expires_at = ?, closed_at = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?`,
		acc.Balance, acc.TotalEarned, acc.TotalSpent, acc.MonthlyUsed, toNanos(acc.LastResetAt),
		string(acc.Tier), nullNanos(acc.BetaExpiresAt), nullNanos(acc.ClosedAt), toNanos(acc.UpdatedAt),
		acc.UserID, acc.Version)
	if err := casResult(res, err, "account"); err != nil {
		return err
	}
	acc.Version++
	return nil
}

func (s *sqliteQueries) ListAccountIDs(ctx context.Context, after string, limit int) ([]string, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT user_id FROM credit_accounts WHERE user_id > ? ORDER BY user_id LIMIT ?`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

const entryColumns = `seq, id, user_id, type, amount, reason, related_tool, resulting_balance, created_at`

func scanEntry(row rowScanner) (*models.LedgerEntry, error) {
	var (
		e       models.LedgerEntry
		typ     string
		created int64
	)
	if err := row.Scan(&e.Seq, &e.ID, &e.UserID, &typ, &e.Amount, &e.Reason, &e.RelatedTool,
		&e.ResultingBalance, &created); err != nil {
		return nil, translateSQLiteError(err)
	}
	e.Type = models.EntryType(typ)
	e.CreatedAt = fromNanos(created)
	return &e, nil
}

func (s *sqliteQueries) GetEntry(ctx context.Context, id string) (*models.LedgerEntry, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = ?`, id)
	return scanEntry(row)
}

func (s *sqliteQueries) InsertEntry(ctx context.Context, e *models.LedgerEntry) error {
	res, err := s.q.ExecContext(ctx, `INSERT INTO ledger_entries
			(id, user_id, type, amount, reason, related_tool, resulting_balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		e.ID, e.UserID, string(e.Type), e.Amount, e.Reason, e.RelatedTool, e.ResultingBalance, toNanos(e.CreatedAt))
	if err := insertResult(res, err, "ledger entry"); err != nil {
		return err
	}
	if seq, err := res.LastInsertId(); err == nil {
		e.Seq = seq
	}
	return nil
}

func (s *sqliteQueries) ListEntries(ctx context.Context, q EntryQuery) ([]models.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE user_id = ?`
	args := []any{q.UserID}
	if q.Before != nil {
		at := toNanos(q.Before.CreatedAt)
		query += ` AND (created_at < ? OR (created_at = ? AND seq < ?))`
		args = append(args, at, at, q.Before.Seq)
	}
	query += ` ORDER BY created_at DESC, seq DESC LIMIT ?`
	args = append(args, q.Limit)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *sqliteQueries) SumEntries(ctx context.Context, userID string) (int64, int64, error) {
	var sum, count int64
	err := s.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM ledger_entries WHERE user_id = ?`, userID).
		Scan(&sum, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("sum entries: %w", err)
	}
	return sum, count, nil
}

// ─── Referrals ──────────────────────────────────────────────────────────────

const referralColumns = `user_id, code, referred_by, referred_users, credits_earned, version, created_at, updated_at`

func scanReferral(row rowScanner) (*models.ReferralRecord, error) {
	var (
		r                models.ReferralRecord
		referredBy       sql.NullString
		referred         string
		created, updated int64
	)
	if err := row.Scan(&r.UserID, &r.Code, &referredBy, &referred, &r.CreditsEarned, &r.Version,
		&created, &updated); err != nil {
		return nil, translateSQLiteError(err)
	}
	if referredBy.Valid {
		r.ReferredBy = &referredBy.String
	}
	r.ReferredUsers = datatypes.JSON(referred)
	r.CreatedAt = fromNanos(created)
	r.UpdatedAt = fromNanos(updated)
	return &r, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func jsonText(j datatypes.JSON, fallback string) string {
	if len(j) == 0 {
		return fallback
	}
	return string(j)
}

func (s *sqliteQueries) GetReferral(ctx context.Context, userID string) (*models.ReferralRecord, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+referralColumns+` FROM referral_records WHERE user_id = ?`, userID)
	return scanReferral(row)
}

func (s *sqliteQueries) GetReferralByCode(ctx context.Context, code string) (*models.ReferralRecord, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+referralColumns+` FROM referral_records WHERE code = ?`, code)
	return scanReferral(row)
}

func (s *sqliteQueries) InsertReferral(ctx context.Context, r *models.ReferralRecord) error {
	res, err := s.q.ExecContext(ctx, `INSERT INTO referral_records (`+referralColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		r.UserID, r.Code, nullString(r.ReferredBy), jsonText(r.ReferredUsers, "[]"), r.CreditsEarned,
		r.Version, toNanos(r.CreatedAt), toNanos(r.UpdatedAt))
	return insertResult(res, err, "referral")
}

func (s *sqliteQueries) UpdateReferral(ctx context.Context, r *models.ReferralRecord) error {
	res, err := s.q.ExecContext(ctx, `UPDATE referral_records SET
			referred_by = ?, referred_users = ?, credits_earned = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?`,
		nullString(r.ReferredBy), jsonText(r.ReferredUsers, "[]"), r.CreditsEarned, toNanos(r.UpdatedAt),
		r.UserID, r.Version)
	if err := casResult(res, err, "referral"); err != nil {
		return err
	}
	r.Version++
	return nil
}

// ─── Gamification ───────────────────────────────────────────────────────────

const profileColumns = `user_id, level, converted_level, xp, time_bank_minutes, cumulative_minutes,
	monthly_minutes, weekly_missions, version, created_at, updated_at`

func scanProfile(row rowScanner) (*models.GamificationProfile, error) {
	var (
		p                models.GamificationProfile
		missions         string
		created, updated int64
	)
	if err := row.Scan(&p.UserID, &p.Level, &p.ConvertedLevel, &p.XP, &p.TimeBankMinutes,
		&p.CumulativeMinutes, &p.MonthlyMinutes, &missions, &p.Version, &created, &updated); err != nil {
		return nil, translateSQLiteError(err)
	}
	p.WeeklyMissions = datatypes.JSON(missions)
	p.CreatedAt = fromNanos(created)
	p.UpdatedAt = fromNanos(updated)
	return &p, nil
}

func (s *sqliteQueries) GetProfile(ctx context.Context, userID string) (*models.GamificationProfile, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM gamification_profiles WHERE user_id = ?`, userID)
	return scanProfile(row)
}

func (s *sqliteQueries) InsertProfile(ctx context.Context, p *models.GamificationProfile) error {
	res, err := s.q.ExecContext(ctx, `INSERT INTO gamification_profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		p.UserID, p.Level, p.ConvertedLevel, p.XP, p.TimeBankMinutes, p.CumulativeMinutes, p.MonthlyMinutes,
		jsonText(p.WeeklyMissions, "[]"), p.Version, toNanos(p.CreatedAt), toNanos(p.UpdatedAt))
	return insertResult(res, err, "profile")
}

func (s *sqliteQueries) UpdateProfile(ctx context.Context, p *models.GamificationProfile) error {
	res, err := s.q.ExecContext(ctx, `UPDATE gamification_profiles SET
			level = ?, converted_level = ?, xp = ?, time_bank_minutes = ?, cumulative_minutes = ?,
			monthly_minutes = ?, weekly_missions = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?`,
		p.Level, p.ConvertedLevel, p.XP, p.TimeBankMinutes, p.CumulativeMinutes, p.MonthlyMinutes,
		jsonText(p.WeeklyMissions, "[]"), toNanos(p.UpdatedAt), p.UserID, p.Version)
	if err := casResult(res, err, "profile"); err != nil {
		return err
	}
	p.Version++
	return nil
}

// ─── Tool runs ──────────────────────────────────────────────────────────────

func (s *sqliteQueries) GetToolRun(ctx context.Context, id string) (*models.ToolRun, error) {
	var (
		run     models.ToolRun
		result  string
		created int64
	)
	err := s.q.QueryRowContext(ctx, `SELECT id, user_id, tool_id, result, created_at FROM tool_runs WHERE id = ?`, id).
		Scan(&run.ID, &run.UserID, &run.ToolID, &result, &created)
	if err != nil {
		return nil, translateSQLiteError(err)
	}
	run.Result = datatypes.JSON(result)
	run.CreatedAt = fromNanos(created)
	return &run, nil
}

func (s *sqliteQueries) InsertToolRun(ctx context.Context, run *models.ToolRun) error {
	res, err := s.q.ExecContext(ctx, `INSERT INTO tool_runs (id, user_id, tool_id, result, created_at)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		run.ID, run.UserID, run.ToolID, jsonText(run.Result, "{}"), toNanos(run.CreatedAt))
	return insertResult(res, err, "tool run")
}

// ─── Audit ──────────────────────────────────────────────────────────────────

func nullJSON(j datatypes.JSON) sql.NullString {
	if len(j) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(j), Valid: true}
}

func (s *sqliteQueries) InsertAudit(ctx context.Context, a *audit.AuditLog) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := s.q.ExecContext(ctx, `INSERT INTO audit_logs
			(id, actor_id, action, entity, entity_id, old_value, new_value, description, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.ActorID, a.Action, a.Entity, a.EntityID, nullJSON(a.OldValue), nullJSON(a.NewValue),
		a.Description, nullJSON(a.Metadata), toNanos(a.CreatedAt))
	if err != nil {
		return translateSQLiteError(fmt.Errorf("insert audit log: %w", err))
	}
	return nil
}

func (s *sqliteQueries) ListAuditLogs(ctx context.Context, f audit.AuditFilter) ([]audit.AuditLog, int64, error) {
	var (
		where []string
		args  []any
	)
	if f.ActorID != "" {
		where = append(where, "actor_id = ?")
		args = append(args, f.ActorID)
	}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}
	if f.Entity != "" {
		where = append(where, "entity = ?")
		args = append(args, f.Entity)
	}
	if f.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	if f.StartDate != nil {
		where = append(where, "created_at >= ?")
		args = append(args, toNanos(*f.StartDate))
	}
	if f.EndDate != nil {
		where = append(where, "created_at <= ?")
		args = append(args, toNanos(*f.EndDate))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	f.Normalize()
	rows, err := s.q.QueryContext(ctx, `SELECT id, actor_id, action, entity, entity_id, old_value, new_value,
			description, metadata, created_at FROM audit_logs`+clause+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		append(args, f.PageSize, f.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []audit.AuditLog
	for rows.Next() {
		var (
			a                    audit.AuditLog
			id                   string
			oldVal, newVal, meta sql.NullString
			created              int64
		)
		if err := rows.Scan(&id, &a.ActorID, &a.Action, &a.Entity, &a.EntityID, &oldVal, &newVal,
			&a.Description, &meta, &created); err != nil {
			return nil, 0, fmt.Errorf("scan audit log: %w", err)
		}
		a.ID, _ = uuid.Parse(id)
		if oldVal.Valid {
			a.OldValue = datatypes.JSON(oldVal.String)
		}
		if newVal.Valid {
			a.NewValue = datatypes.JSON(newVal.String)
		}
		if meta.Valid {
			a.Metadata = datatypes.JSON(meta.String)
		}
		a.CreatedAt = fromNanos(created)
		logs = append(logs, a)
	}
	return logs, total, rows.Err()
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func insertResult(res sql.Result, err error, what string) error {
	if err != nil {
		return translateSQLiteError(fmt.Errorf("insert %s: %w", what, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	}
	return nil
}

func casResult(res sql.Result, err error, what string) error {
	if err != nil {
		return translateSQLiteError(fmt.Errorf("update %s: %w", what, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: stale %s version", ErrConflict, what)
	}
	return nil
}
