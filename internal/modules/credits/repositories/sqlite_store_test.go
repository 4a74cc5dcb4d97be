package repositories

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "credits.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func seedAccount(t *testing.T, store *SQLiteStore, userID string, balance int64) {
	t.Helper()
	err := store.WithinTx(context.Background(), func(tx Tx) error {
		return tx.InsertAccount(context.Background(), &models.CreditAccount{
			UserID: userID, Balance: balance, TotalEarned: balance, Tier: models.TierFree,
			LastResetAt: testNow, CreatedAt: testNow, UpdatedAt: testNow,
		})
	})
	require.NoError(t, err)
}

func TestAccountRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetAccount(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	expires := testNow.Add(90 * 24 * time.Hour)
	err = store.WithinTx(ctx, func(tx Tx) error {
		return tx.InsertAccount(ctx, &models.CreditAccount{
			UserID: "u1", Balance: 10, TotalEarned: 10, Tier: models.TierBeta, BetaExpiresAt: &expires,
			LastResetAt: testNow, CreatedAt: testNow, UpdatedAt: testNow,
		})
	})
	require.NoError(t, err)

	acc, err := store.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), acc.Balance)
	assert.Equal(t, models.TierBeta, acc.Tier)
	require.NotNil(t, acc.BetaExpiresAt)
	assert.True(t, expires.Equal(*acc.BetaExpiresAt))
	assert.Nil(t, acc.ClosedAt)
	assert.True(t, testNow.Equal(acc.LastResetAt))
}

func TestInsertAccountTwiceConflicts(t *testing.T) {
	store := newTestStore(t)
	seedAccount(t, store, "u1", 5)

	err := store.WithinTx(context.Background(), func(tx Tx) error {
		return tx.InsertAccount(context.Background(), &models.CreditAccount{UserID: "u1", LastResetAt: testNow})
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateAccountCompareAndSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedAccount(t, store, "u1", 5)

	stale, err := store.GetAccount(ctx, "u1")
	require.NoError(t, err)

	err = store.WithinTx(ctx, func(tx Tx) error {
		acc, err := tx.GetAccount(ctx, "u1")
		if err != nil {
			return err
		}
		acc.Balance = 3
		return tx.UpdateAccount(ctx, acc)
	})
	require.NoError(t, err)

	stale.Balance = 100
	err = store.WithinTx(ctx, func(tx Tx) error { return tx.UpdateAccount(ctx, stale) })
	assert.ErrorIs(t, err, ErrConflict)

	acc, err := store.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), acc.Balance)
	assert.Equal(t, int64(1), acc.Version)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedAccount(t, store, "u1", 5)

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx Tx) error {
		if err := tx.InsertEntry(ctx, &models.LedgerEntry{ID: "e1", UserID: "u1", Type: models.EntryEarn, Amount: 1, CreatedAt: testNow}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetEntry(ctx, "e1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntriesPaginateNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedAccount(t, store, "u1", 0)

	err := store.WithinTx(ctx, func(tx Tx) error {
		for i, id := range []string{"a", "b", "c", "d", "e"} {
			at := testNow.Add(time.Duration(i/2) * time.Minute) // pairs share a timestamp
			if err := tx.InsertEntry(ctx, &models.LedgerEntry{
				ID: id, UserID: "u1", Type: models.EntryEarn, Amount: int64(i + 1), ResultingBalance: int64(i + 1), CreatedAt: at,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	page1, err := store.ListEntries(ctx, EntryQuery{UserID: "u1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "e", page1[0].ID)
	assert.Equal(t, "d", page1[1].ID)

	cursor, err := DecodeCursor(CursorFor(page1[1]).Encode())
	require.NoError(t, err)
	page2, err := store.ListEntries(ctx, EntryQuery{UserID: "u1", Limit: 10, Before: cursor})
	require.NoError(t, err)
	require.Len(t, page2, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{page2[0].ID, page2[1].ID, page2[2].ID})

	sum, count, err := store.SumEntries(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), sum)
	assert.Equal(t, int64(5), count)
}

func TestDuplicateEntryConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	entry := &models.LedgerEntry{ID: "k1", UserID: "u1", Type: models.EntryEarn, Amount: 1, CreatedAt: testNow}

	require.NoError(t, store.WithinTx(ctx, func(tx Tx) error { return tx.InsertEntry(ctx, entry) }))
	err := store.WithinTx(ctx, func(tx Tx) error { return tx.InsertEntry(ctx, entry) })
	assert.ErrorIs(t, err, ErrConflict)
}

func TestReferralAndProfileRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &models.ReferralRecord{UserID: "alice", Code: "ABC123", CreatedAt: testNow, UpdatedAt: testNow}
	added, err := rec.AddReferred("bob")
	require.NoError(t, err)
	require.True(t, added)
	require.NoError(t, store.WithinTx(ctx, func(tx Tx) error { return tx.InsertReferral(ctx, rec) }))

	clash := &models.ReferralRecord{UserID: "carol", Code: "ABC123", CreatedAt: testNow, UpdatedAt: testNow}
	err = store.WithinTx(ctx, func(tx Tx) error { return tx.InsertReferral(ctx, clash) })
	assert.ErrorIs(t, err, ErrConflict)

	got, err := store.GetReferralByCode(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)
	referred, err := got.ReferredUserIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, referred)
	assert.Nil(t, got.ReferredBy)

	p := models.NewGamificationProfile("alice", testNow)
	p.SetMissions([]models.Mission{{ID: "m1", Kind: models.MissionToolRuns, Target: 3, WeekStart: testNow, WeekEnd: testNow.Add(time.Hour)}})
	require.NoError(t, store.WithinTx(ctx, func(tx Tx) error { return tx.InsertProfile(ctx, p) }))

	loaded, err := store.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Level)
	missions, err := loaded.Missions()
	require.NoError(t, err)
	require.Len(t, missions, 1)
	assert.Equal(t, int64(3), missions[0].Target)

	loaded.XP = 40
	require.NoError(t, store.WithinTx(ctx, func(tx Tx) error { return tx.UpdateProfile(ctx, loaded) }))
	assert.Equal(t, int64(1), loaded.Version)
}

func TestAuditLogsFilterAndPage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WithinTx(ctx, func(tx Tx) error {
		for i := 0; i < 3; i++ {
			entry := audit.NewChange("admin", audit.ActionAdjust, audit.EntityAccount, "u1", nil, map[string]int{"i": i}, "", testNow.Add(time.Duration(i)*time.Second))
			if err := tx.InsertAudit(ctx, entry); err != nil {
				return err
			}
		}
		return tx.InsertAudit(ctx, audit.NewChange("system", audit.ActionJobRun, audit.EntityResetJob, "2026-03", nil, nil, "", testNow))
	}))

	logs, total, err := store.ListAuditLogs(ctx, audit.AuditFilter{Action: audit.ActionAdjust, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, logs, 2)
	assert.JSONEq(t, `{"i":2}`, string(logs[0].NewValue))

	ids, err := store.ListAccountIDs(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestListAccountIDsPages(t *testing.T) {
	store := newTestStore(t)
	for _, id := range []string{"c", "a", "b"} {
		seedAccount(t, store, id, 0)
	}

	first, err := store.ListAccountIDs(context.Background(), "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, first)

	rest, err := store.ListAccountIDs(context.Background(), "b", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, rest)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	c, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = DecodeCursor("!!!")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	// valid base64 without the separator
	_, err = DecodeCursor("bm9kb3Q")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	// valid base64 with a non numeric half
	_, err = DecodeCursor("YWJjLjE")
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestToolRunReceiptRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetToolRun(ctx, "run-1")
	assert.ErrorIs(t, err, ErrNotFound)

	run := &models.ToolRun{ID: "run-1", UserID: "u1", ToolID: "t", Result: []byte(`{"new_balance":7}`), CreatedAt: testNow}
	require.NoError(t, store.WithinTx(ctx, func(tx Tx) error { return tx.InsertToolRun(ctx, run) }))

	got, err := store.GetToolRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.JSONEq(t, `{"new_balance":7}`, string(got.Result))
	assert.True(t, testNow.Equal(got.CreatedAt))

	err = store.WithinTx(ctx, func(tx Tx) error { return tx.InsertToolRun(ctx, run) })
	assert.ErrorIs(t, err, ErrConflict)
}
