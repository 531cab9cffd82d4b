package storage

import (
	"context"
	"testing"
	"time"

	"wallet-quest-ledger/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newIdentity(wallet string, createdAt time.Time, referrer *string) *models.Identity {
	return &models.Identity{
		WalletAddress:     wallet,
		CompletedQuestIDs: []string{},
		Referrer:          referrer,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
}

func xpEvent(eventType models.XPEventType, amount int64, at time.Time) models.XPEvent {
	return models.XPEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		Amount:      amount,
		Description: "test",
		CreatedAt:   at,
	}
}

func mustCreate(t *testing.T, s Store, identity *models.Identity) {
	t.Helper()
	created, err := s.CreateIdentity(context.Background(), identity)
	require.NoError(t, err)
	require.True(t, created)
}

func mustGet(t *testing.T, s Store, wallet string) *models.Identity {
	t.Helper()
	identity, err := s.GetIdentity(context.Background(), wallet)
	require.NoError(t, err)
	return identity
}

func amounts(events []models.XPEvent) []int64 {
	out := make([]int64, 0, len(events))
	for _, e := range events {
		out = append(out, e.Amount)
	}
	return out
}

// runStoreContract exercises the behaviour every Store must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("CreateIdentity", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, newIdentity("alice", base, nil))

		created, err := s.CreateIdentity(ctx, newIdentity("alice", base.Add(time.Hour), nil))
		require.NoError(t, err)
		assert.False(t, created)

		got := mustGet(t, s, "alice")
		assert.Equal(t, int64(0), got.XP)
		assert.Empty(t, got.CompletedQuestIDs)
		assert.True(t, got.CreatedAt.Equal(base))

		_, err = s.GetIdentity(ctx, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("CreateIdentityCountsReferral", func(t *testing.T) {
		s := newStore(t)
		alice := "alice"
		mustCreate(t, s, newIdentity(alice, base, nil))
		mustCreate(t, s, newIdentity("bob", base, &alice))

		assert.Equal(t, int64(1), mustGet(t, s, "alice").ReferredCount)
		bob := mustGet(t, s, "bob")
		require.NotNil(t, bob.Referrer)
		assert.Equal(t, "alice", *bob.Referrer)
	})

	t.Run("ApplyQuestCompletion", func(t *testing.T) {
		s := newStore(t)
		alice := "alice"
		mustCreate(t, s, newIdentity(alice, base, nil))
		mustCreate(t, s, newIdentity("bob", base, &alice))

		grant := func() models.XPGrant {
			return models.XPGrant{
				WalletAddress: "bob",
				Event:         xpEvent(models.XPEventQuestCompletion, 40, base),
				Referral: &models.ReferralCredit{
					ReferrerWallet: "alice",
					Event:          xpEvent(models.XPEventReferralBonus, 1, base),
				},
			}
		}

		applied, err := s.ApplyQuestCompletion(ctx, grant(), "quiz")
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = s.ApplyQuestCompletion(ctx, grant(), "quiz")
		require.NoError(t, err)
		assert.False(t, applied)

		bob := mustGet(t, s, "bob")
		assert.Equal(t, int64(40), bob.XP)
		assert.Equal(t, []string{"quiz"}, bob.CompletedQuestIDs)

		referrer := mustGet(t, s, "alice")
		assert.Equal(t, int64(1), referrer.XP)
		assert.Equal(t, int64(1), referrer.XPFromReferrals)

		events, total, err := s.ListXPEvents(ctx, "bob", 0, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, []int64{40}, amounts(events))

		events, _, err = s.ListXPEvents(ctx, "alice", 0, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, models.XPEventReferralBonus, events[0].Type)

		_, err = s.ApplyQuestCompletion(ctx, models.XPGrant{
			WalletAddress: "nobody",
			Event:         xpEvent(models.XPEventQuestCompletion, 40, base),
		}, "quiz")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ApplyCheckInRequiresVersion", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, newIdentity("bob", base, nil))
		v := mustGet(t, s, "bob").Version

		grant := func() models.XPGrant {
			return models.XPGrant{WalletAddress: "bob", Event: xpEvent(models.XPEventDailyCheckIn, 1, base)}
		}

		err := s.ApplyCheckIn(ctx, grant(), v+1, 1, base)
		assert.ErrorIs(t, err, ErrVersionConflict)
		assert.Equal(t, int64(0), mustGet(t, s, "bob").XP)

		require.NoError(t, s.ApplyCheckIn(ctx, grant(), v, 1, base))
		bob := mustGet(t, s, "bob")
		assert.Equal(t, int64(1), bob.XP)
		assert.Equal(t, 1, bob.CheckInStreak)
		require.NotNil(t, bob.LastCheckInAt)
		assert.True(t, bob.LastCheckInAt.Equal(base))
		assert.Greater(t, bob.Version, v)

		err = s.ApplyCheckIn(ctx, grant(), v, 2, base)
		assert.ErrorIs(t, err, ErrVersionConflict)

		err = s.ApplyCheckIn(ctx, models.XPGrant{WalletAddress: "nobody", Event: xpEvent(models.XPEventDailyCheckIn, 1, base)}, 0, 1, base)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ApplyXPAdjustment", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, newIdentity("alice", base, nil))

		_, err := s.ApplyXPAdjustment(ctx, "alice", xpEvent(models.XPEventAdminAdjustment, -5, base))
		assert.ErrorIs(t, err, ErrNegativeXP)

		got, err := s.ApplyXPAdjustment(ctx, "alice", xpEvent(models.XPEventAdminAdjustment, 10, base))
		require.NoError(t, err)
		assert.Equal(t, int64(10), got.XP)

		got, err = s.ApplyXPAdjustment(ctx, "alice", xpEvent(models.XPEventAdminAdjustment, -10, base))
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.XP)

		_, total, err := s.ListXPEvents(ctx, "alice", 0, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)

		_, err = s.ApplyXPAdjustment(ctx, "nobody", xpEvent(models.XPEventAdminAdjustment, 1, base))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("SetDisplayName", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, newIdentity("alice", base, nil))
		mustCreate(t, s, newIdentity("bob", base, nil))

		require.NoError(t, s.SetDisplayName(ctx, "alice", "Alice", "alice"))
		assert.ErrorIs(t, s.SetDisplayName(ctx, "bob", "ALICE", "alice"), ErrDuplicateDisplayName)
		require.NoError(t, s.SetDisplayName(ctx, "alice", "ALICE", "alice"))
		assert.ErrorIs(t, s.SetDisplayName(ctx, "nobody", "Ghost", "ghost"), ErrNotFound)

		alice := mustGet(t, s, "alice")
		require.NotNil(t, alice.DisplayName)
		assert.Equal(t, "ALICE", *alice.DisplayName)
		assert.Nil(t, mustGet(t, s, "bob").DisplayName)
	})

	t.Run("SetRewardBoost", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, newIdentity("alice", base, nil))

		require.NoError(t, s.SetRewardBoost(ctx, "alice", true, base))
		assert.True(t, mustGet(t, s, "alice").OwnsRewardBoostAsset)
		assert.ErrorIs(t, s.SetRewardBoost(ctx, "nobody", true, base), ErrNotFound)
	})

	t.Run("ListXPEventsNewestFirst", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, newIdentity("alice", base, nil))
		for i := int64(1); i <= 3; i++ {
			_, err := s.ApplyXPAdjustment(ctx, "alice", xpEvent(models.XPEventAdminAdjustment, i, base.Add(time.Duration(i)*time.Minute)))
			require.NoError(t, err)
		}

		events, total, err := s.ListXPEvents(ctx, "alice", 0, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Equal(t, []int64{3, 2}, amounts(events))

		events, _, err = s.ListXPEvents(ctx, "alice", 2, 2)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, amounts(events))

		events, _, err = s.ListXPEvents(ctx, "alice", 5, 2)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("TopByXP", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, newIdentity("a", base, nil))
		mustCreate(t, s, newIdentity("b", base.Add(-time.Hour), nil))
		mustCreate(t, s, newIdentity("c", base, nil))
		mustCreate(t, s, newIdentity("d", base, nil))
		for wallet, xp := range map[string]int64{"a": 50, "b": 50, "c": 100} {
			_, err := s.ApplyXPAdjustment(ctx, wallet, xpEvent(models.XPEventAdminAdjustment, xp, base))
			require.NoError(t, err)
		}

		top, err := s.TopByXP(ctx, 3)
		require.NoError(t, err)
		wallets := make([]string, 0, len(top))
		for _, identity := range top {
			wallets = append(wallets, identity.WalletAddress)
		}
		assert.Equal(t, []string{"c", "b", "a"}, wallets)
	})

	t.Run("ListWallets", func(t *testing.T) {
		s := newStore(t)
		for _, w := range []string{"w3", "w1", "w5", "w2", "w4"} {
			mustCreate(t, s, newIdentity(w, base, nil))
		}

		page, err := s.ListWallets(ctx, "", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"w1", "w2"}, page)

		page, err = s.ListWallets(ctx, "w2", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"w3", "w4"}, page)

		page, err = s.ListWallets(ctx, "w4", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"w5"}, page)
	})

	t.Run("ConsumeChallengeOnce", func(t *testing.T) {
		s := newStore(t)
		challenge := &models.Challenge{
			Nonce:         uuid.NewString(),
			WalletAddress: "alice",
			Message:       "sign me",
			IssuedAt:      base,
			ExpiresAt:     base.Add(5 * time.Minute),
		}
		require.NoError(t, s.SaveChallenge(ctx, challenge))

		_, err := s.ConsumeChallenge(ctx, challenge.Nonce, "bob")
		assert.ErrorIs(t, err, ErrChallengeNotFound)

		got, err := s.ConsumeChallenge(ctx, challenge.Nonce, "alice")
		require.NoError(t, err)
		assert.Equal(t, "sign me", got.Message)

		_, err = s.ConsumeChallenge(ctx, challenge.Nonce, "alice")
		assert.ErrorIs(t, err, ErrChallengeNotFound)
	})
}
