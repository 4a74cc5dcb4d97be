package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/models"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/modules/credits/repositories"
)

func TestBaseCodeIsDeterministic(t *testing.T) {
	code := BaseCode("alice")
	assert.Len(t, code, 6)
	assert.Equal(t, code, BaseCode("alice"))
	assert.NotEqual(t, code, BaseCode("bob"))
	for _, r := range code {
		assert.True(t, strings.ContainsRune(codeAlphabet, r))
	}
}

func TestGenerateCodeResolvesCollisions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// someone already holds bob's natural code
	err := env.store.WithinTx(ctx, func(tx repositories.Tx) error {
		return tx.InsertReferral(ctx, &models.ReferralRecord{
			UserID: "squatter", Code: BaseCode("bob"), ReferredUsers: datatypes.JSON("[]"),
			CreatedAt: testStart, UpdatedAt: testStart,
		})
	})
	require.NoError(t, err)

	code, err := env.referrals.GenerateCode(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, BaseCode("bob")+"1", code)

	again, err := env.referrals.GenerateCode(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, code, again)
}

func TestLinkIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	code, err := env.referrals.GenerateCode(ctx, "alice")
	require.NoError(t, err)

	first, err := env.referrals.Link(ctx, "bob", strings.ToLower(code))
	require.NoError(t, err)
	assert.True(t, first.Linked)
	assert.Equal(t, "alice", first.ReferrerID)

	second, err := env.referrals.Link(ctx, "bob", code)
	require.NoError(t, err)
	assert.False(t, second.Linked)
	assert.Equal(t, "alice", second.ReferrerID)

	alice, err := env.store.GetReferral(ctx, "alice")
	require.NoError(t, err)
	referred, err := alice.ReferredUserIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, referred)

	bob, err := env.store.GetReferral(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, bob.ReferredBy)
	assert.Equal(t, "alice", *bob.ReferredBy)

	// a second referrer cannot overwrite referredBy
	carolCode, err := env.referrals.GenerateCode(ctx, "carol")
	require.NoError(t, err)
	third, err := env.referrals.Link(ctx, "bob", carolCode)
	require.NoError(t, err)
	assert.False(t, third.Linked)
	assert.Equal(t, "alice", third.ReferrerID)
}

func TestLinkRejectsInvalidCodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.referrals.Link(ctx, "bob", "ZZZZZZ")
	assert.ErrorIs(t, err, ErrInvalidReferralCode)
	_, err = env.referrals.Link(ctx, "bob", "  ")
	assert.ErrorIs(t, err, ErrInvalidReferralCode)

	aliceCode, err := env.referrals.GenerateCode(ctx, "alice")
	require.NoError(t, err)
	_, err = env.referrals.Link(ctx, "alice", aliceCode)
	assert.ErrorIs(t, err, ErrSelfReferral)
	assert.ErrorIs(t, err, ErrInvalidReferralCode)

	_, err = env.referrals.Link(ctx, "bob", aliceCode)
	require.NoError(t, err)
	bobCode, err := env.referrals.GenerateCode(ctx, "bob")
	require.NoError(t, err)
	_, err = env.referrals.Link(ctx, "alice", bobCode)
	assert.ErrorIs(t, err, ErrReferralCycle)
}

func TestRewardSignupPaysBothSidesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	code, err := env.referrals.GenerateCode(ctx, "alice")
	require.NoError(t, err)
	_, err = env.referrals.Link(ctx, "bob", code)
	require.NoError(t, err)

	_, err = env.referrals.RewardSignup(ctx, "carol", "bob")
	assert.ErrorIs(t, err, ErrNotReferred)

	for i := 0; i < 2; i++ {
		_, err := env.referrals.RewardSignup(ctx, "alice", "bob")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(10), env.balance(t, "alice"))
	assert.Equal(t, int64(10), env.balance(t, "bob"))

	stats, err := env.referrals.GetReferralStats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, code, stats.Code)
	assert.Equal(t, 1, stats.ReferredCount)
	assert.Equal(t, int64(5), stats.CreditsEarned)
	assert.Equal(t, "https://kits.example.com/signup?ref="+code, stats.ShareURL)
}

func TestRewardSignupRetryAfterPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	code, err := env.referrals.GenerateCode(ctx, "alice")
	require.NoError(t, err)
	_, err = env.referrals.Link(ctx, "bob", code)
	require.NoError(t, err)
	_, err = env.credits.InitializeAccount(ctx, "bob", models.TierFree)
	require.NoError(t, err)

	env.store.failReads("bob", 1)
	_, err = env.referrals.RewardSignup(ctx, "alice", "bob")
	require.ErrorIs(t, err, errInjected)
	assert.Equal(t, int64(10), env.balance(t, "alice"))
	assert.Equal(t, int64(5), env.balance(t, "bob"))

	reward, err := env.referrals.RewardSignup(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, reward.Referrer.Duplicate)
	assert.False(t, reward.Referee.Duplicate)
	assert.Equal(t, int64(10), env.balance(t, "alice"))
	assert.Equal(t, int64(10), env.balance(t, "bob"))
	env.requireConsistent(t, "alice")
	env.requireConsistent(t, "bob")
}

func TestRewardFirstPurchaseOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	code, err := env.referrals.GenerateCode(ctx, "alice")
	require.NoError(t, err)
	_, err = env.referrals.Link(ctx, "bob", code)
	require.NoError(t, err)

	first, err := env.referrals.RewardFirstPurchase(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(25), first.NewBalance)

	second, err := env.referrals.RewardFirstPurchase(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, int64(25), env.balance(t, "alice"))

	stats, err := env.referrals.GetReferralStats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(20), stats.CreditsEarned)

	_, err = env.referrals.RewardFirstPurchase(ctx, "bob", "alice")
	assert.ErrorIs(t, err, ErrNotReferred)
}

func TestReferralQRCode(t *testing.T) {
	env := newTestEnv(t)

	png, err := env.referrals.QRCode(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestSignupLinksAndRewards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice, err := env.signup.Signup(ctx, SignupRequest{UserID: "alice", Tier: models.TierBeta})
	require.NoError(t, err)
	assert.Equal(t, int64(10), alice.Account.Balance)

	for i := 0; i < 2; i++ {
		bob, err := env.signup.Signup(ctx, SignupRequest{UserID: "bob", ReferralCode: alice.Code})
		require.NoError(t, err)
		assert.Equal(t, "alice", bob.ReferrerID)
		assert.Equal(t, int64(10), bob.Account.Balance)
		assert.Equal(t, i == 0, bob.Linked)
	}
	assert.Equal(t, int64(15), env.balance(t, "alice"))
}

func TestSignupWithInvalidCodeProceedsUnlinked(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.signup.Signup(context.Background(), SignupRequest{UserID: "bob", ReferralCode: "NOPE42"})
	require.NoError(t, err)
	assert.False(t, res.Linked)
	assert.NotEmpty(t, res.Warning)
	assert.NotEmpty(t, res.Code)
	assert.Equal(t, int64(5), res.Account.Balance)
}
