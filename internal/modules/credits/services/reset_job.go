package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/repositories"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/shared/metrics"
)

const (
	resetPageSize        = 500
	defaultResetAttempts = 3
	systemActor          = "system"
)

type resetOutcome string

const (
	outcomeReset   resetOutcome = "reset"
	outcomeSkipped resetOutcome = "skipped"
	outcomeFailed  resetOutcome = "failed"
)

// ResetReport summarises one run of the monthly reset
type ResetReport struct {
	Period        string    `json:"period"`
	Accounts      int       `json:"accounts"`
	Reset         int       `json:"reset"`
	Skipped       int       `json:"skipped"`
	Failed        int       `json:"failed"`
	FailedUserIDs []string  `json:"failed_user_ids,omitempty"`
	Attempts      int       `json:"attempts"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// ResetJob zeroes monthly usage counters once per calendar month (UTC)
type ResetJob struct {
	base
	maxAttempts  int
	retryBackoff time.Duration
}

// NewResetJob creates the job; maxAttempts bounds passes over failed accounts
func NewResetJob(store repositories.Store, maxAttempts int, opts ...Option) *ResetJob {
	if maxAttempts < 1 {
		maxAttempts = defaultResetAttempts
	}
	j := &ResetJob{base: newBase(store, opts...), maxAttempts: maxAttempts}
	// passes are spaced further apart than conflict retries
	j.retryBackoff = j.runner.backoff * 10
	return j
}

// PeriodStart is the first instant of the month containing t
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Run resets every account not yet reset this period.
// Accounts that fail are retried on later passes; the rest are never blocked by them.
func (j *ResetJob) Run(ctx context.Context) (*ResetReport, error) {
	started := j.now()
	period := PeriodStart(started)
	report := &ResetReport{Period: period.Format("2006-01"), StartedAt: started}

	pending, err := j.accountIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("monthly reset: %w", err)
	}
	report.Accounts = len(pending)
	log.Info().Str("period", report.Period).Int("accounts", len(pending)).Msg("🔄 Monthly reset started")

	for attempt := 1; attempt <= j.maxAttempts && len(pending) > 0; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, j.retryBackoff*time.Duration(attempt-1)); err != nil {
				break
			}
		}
		report.Attempts = attempt

		var failed []string
		for _, userID := range pending {
			if ctx.Err() != nil {
				failed = append(failed, userID)
				continue
			}
			outcome, err := j.resetOne(ctx, userID, period)
			if err != nil {
				log.Warn().Err(err).Str("user_id", userID).Int("attempt", attempt).Msg("⚠️ Monthly reset failed for account")
				failed = append(failed, userID)
				continue
			}
			metrics.RecordResetOutcome(string(outcome))
			if outcome == outcomeReset {
				report.Reset++
			} else {
				report.Skipped++
			}
		}
		pending = failed
	}

	report.Failed = len(pending)
	report.FailedUserIDs = pending
	report.FinishedAt = j.now()
	for range pending {
		metrics.RecordResetOutcome(string(outcomeFailed))
	}

	j.audit(ctx, report)
	log.Info().Str("period", report.Period).Int("reset", report.Reset).Int("skipped", report.Skipped).
		Int("failed", report.Failed).Int("attempts", report.Attempts).Msg("✅ Monthly reset finished")
	return report, ctx.Err()
}

func (j *ResetJob) accountIDs(ctx context.Context) ([]string, error) {
	var (
		all   []string
		after string
	)
	for {
		ids, err := j.store.ListAccountIDs(ctx, after, resetPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, ids...)
		if len(ids) < resetPageSize {
			return all, nil
		}
		after = ids[len(ids)-1]
	}
}

// resetOne zeroes one account and its profile's monthly minutes together
func (j *ResetJob) resetOne(ctx context.Context, userID string, period time.Time) (resetOutcome, error) {
	var outcome resetOutcome
	err := j.runner.run(ctx, "monthly_reset", func(tx repositories.Tx) error {
		acc, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		if !acc.LastResetAt.Before(period) || acc.IsClosed() {
			outcome = outcomeSkipped
			return nil
		}

		now := j.now()
		acc.MonthlyUsed = 0
		acc.LastResetAt = now
		acc.UpdatedAt = now
		if err := tx.UpdateAccount(ctx, acc); err != nil {
			return err
		}

		p, err := tx.GetProfile(ctx, userID)
		if errors.Is(err, repositories.ErrNotFound) {
			outcome = outcomeReset
			return nil
		}
		if err != nil {
			return err
		}
		p.MonthlyMinutes = 0
		p.UpdatedAt = now
		if err := tx.UpdateProfile(ctx, p); err != nil {
			return err
		}
		outcome = outcomeReset
		return nil
	})
	return outcome, err
}

func (j *ResetJob) audit(ctx context.Context, report *ResetReport) {
	entry := audit.NewChange(systemActor, audit.ActionJobRun, audit.EntityResetJob, report.Period,
		nil, report, "monthly usage reset", report.FinishedAt)
	actx := context.WithoutCancel(ctx)
	if err := j.store.WithinTx(actx, func(tx repositories.Tx) error {
		return tx.InsertAudit(actx, entry)
	}); err != nil {
		log.Error().Err(err).Str("period", report.Period).Msg("❌ Failed to audit monthly reset")
	}
}
