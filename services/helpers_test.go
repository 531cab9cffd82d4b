package services

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"wallet-quest-ledger/services/mock"
	"wallet-quest-ledger/storage"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testWallet struct {
	Address string
	Key     ed25519.PrivateKey
}

func newTestWallet(t *testing.T) testWallet {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return testWallet{Address: base58.Encode(pub), Key: priv}
}

func (w testWallet) Sign(message string) string {
	return base58.Encode(ed25519.Sign(w.Key, []byte(message)))
}

type ledgerFixture struct {
	store   *storage.MemoryStore
	ledger  *ProgressionService
	balance *mock.MockBalanceOracle
	assets  *mock.MockRewardAssetOracle
	now     time.Time
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &ledgerFixture{
		store:   storage.NewMemoryStore(),
		balance: mock.NewMockBalanceOracle(ctrl),
		assets:  mock.NewMockRewardAssetOracle(ctrl),
		now:     time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.ledger = NewProgressionService(f.store, DefaultQuestCatalog(), f.balance, f.assets, zap.NewNop(), nil)
	f.ledger.Now = func() time.Time { return f.now }
	return f
}

// identity creates a fresh wallet in the ledger.
func (f *ledgerFixture) identity(t *testing.T, referralCode string) string {
	t.Helper()
	w := newTestWallet(t)
	_, created, err := f.ledger.EnsureIdentity(context.Background(), w.Address, referralCode)
	require.NoError(t, err)
	require.True(t, created)
	return w.Address
}

func (f *ledgerFixture) xp(t *testing.T, wallet string) int64 {
	t.Helper()
	profile, err := f.ledger.GetProfile(context.Background(), wallet)
	require.NoError(t, err)
	return profile.XP
}
