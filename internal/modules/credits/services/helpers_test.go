package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/models"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/repositories"
)

// Wednesday; the mission week starts Monday 2026-03-09
var testStart = time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: testStart}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

var errInjected = errors.New("injected failure")

// faultStore wraps a real store to simulate lost races and flaky reads
type faultStore struct {
	repositories.Store

	mu sync.Mutex
	// commitConflicts makes that many transactions roll back with ErrConflict after fn ran
	commitConflicts int
	// failAccount makes in-transaction account reads fail n times per user
	failAccount map[string]int
}

func (f *faultStore) WithinTx(ctx context.Context, fn func(tx repositories.Tx) error) error {
	return f.Store.WithinTx(ctx, func(tx repositories.Tx) error {
		if err := fn(&faultTx{Tx: tx, f: f}); err != nil {
			return err
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.commitConflicts > 0 {
			f.commitConflicts--
			return repositories.ErrConflict
		}
		return nil
	})
}

func (f *faultStore) setConflicts(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitConflicts = n
}

func (f *faultStore) failReads(userID string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAccount == nil {
		f.failAccount = map[string]int{}
	}
	f.failAccount[userID] = n
}

type faultTx struct {
	repositories.Tx
	f *faultStore
}

func (t *faultTx) GetAccount(ctx context.Context, userID string) (*models.CreditAccount, error) {
	t.f.mu.Lock()
	n := t.f.failAccount[userID]
	if n > 0 {
		t.f.failAccount[userID] = n - 1
	}
	t.f.mu.Unlock()
	if n > 0 {
		return nil, errInjected
	}
	return t.Tx.GetAccount(ctx, userID)
}

type testEnv struct {
	store        *faultStore
	clock        *fakeClock
	credits      *CreditService
	gamification *GamificationService
	missions     *MissionService
	referrals    *ReferralService
	signup       *SignupService
	usage        *UsageService
	reset        *ResetJob
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	sqlite, err := repositories.OpenSQLite(filepath.Join(t.TempDir(), "credits.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	store := &faultStore{Store: sqlite}
	clock := newFakeClock()
	opts := []Option{WithClock(clock.Now), WithBackoff(0), WithMaxRetries(3)}

	credits := NewCreditService(store, DefaultCreditConfig(), opts...)
	gamification := NewGamificationService(store, credits, DefaultGamificationConfig(), opts...)
	missions := NewMissionService(store, credits, opts...)
	referrals := NewReferralService(store, credits, ReferralConfig{
		SignupBonus: 5, FirstPurchaseBonus: 20, PublicBaseURL: "https://kits.example.com/",
	}, opts...)

	return &testEnv{
		store:        store,
		clock:        clock,
		credits:      credits,
		gamification: gamification,
		missions:     missions,
		referrals:    referrals,
		signup:       NewSignupService(credits, referrals),
		usage:        NewUsageService(store, credits, gamification, missions, opts...),
		reset:        NewResetJob(store, 3, opts...),
	}
}

func (e *testEnv) balance(t *testing.T, userID string) int64 {
	t.Helper()
	b, err := e.credits.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func (e *testEnv) requireConsistent(t *testing.T, userID string) {
	t.Helper()
	rec, err := e.credits.VerifyAccount(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, rec.Consistent, "ledger does not reconcile: %+v", rec)
}
