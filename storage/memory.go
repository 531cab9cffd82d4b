package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"wallet-quest-ledger/models"
)

// MemoryStore keeps everything in process memory. It is meant for local runs and
// tests; a single mutex makes every operation atomic.
type MemoryStore struct {
	mu         sync.Mutex
	identities map[string]*models.Identity
	events     map[string][]models.XPEvent
	challenges map[string]models.Challenge
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities: make(map[string]*models.Identity),
		events:     make(map[string][]models.XPEvent),
		challenges: make(map[string]models.Challenge),
	}
}

func cloneIdentity(in *models.Identity) *models.Identity {
	out := *in
	out.CompletedQuestIDs = append([]string(nil), in.CompletedQuestIDs...)
	return &out
}

func (s *MemoryStore) CreateIdentity(_ context.Context, identity *models.Identity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[identity.WalletAddress]; ok {
		return false, nil
	}
	stored := cloneIdentity(identity)
	if stored.CompletedQuestIDs == nil {
		stored.CompletedQuestIDs = []string{}
	}
	s.identities[identity.WalletAddress] = stored

	if identity.Referrer != nil {
		if ref, ok := s.identities[*identity.Referrer]; ok {
			ref.ReferredCount++
			ref.Version++
		}
	}
	return true, nil
}

func (s *MemoryStore) GetIdentity(_ context.Context, wallet string) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[wallet]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneIdentity(identity), nil
}

// credit applies a grant; the caller holds the lock and has checked every guard.
func (s *MemoryStore) credit(identity *models.Identity, grant models.XPGrant, now time.Time) {
	identity.XP += grant.Event.Amount
	identity.Version++
	identity.UpdatedAt = now
	s.events[identity.WalletAddress] = append(s.events[identity.WalletAddress], grant.Event)

	if grant.Referral == nil {
		return
	}
	if ref, ok := s.identities[grant.Referral.ReferrerWallet]; ok {
		ref.XP += grant.Referral.Event.Amount
		ref.XPFromReferrals += grant.Referral.Event.Amount
		ref.Version++
		ref.UpdatedAt = now
		s.events[ref.WalletAddress] = append(s.events[ref.WalletAddress], grant.Referral.Event)
	}
}

func (s *MemoryStore) ApplyQuestCompletion(_ context.Context, grant models.XPGrant, questID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[grant.WalletAddress]
	if !ok {
		return false, ErrNotFound
	}
	if identity.HasCompleted(questID) {
		return false, nil
	}
	identity.CompletedQuestIDs = append(identity.CompletedQuestIDs, questID)
	s.credit(identity, grant, grant.Event.CreatedAt)
	return true, nil
}

func (s *MemoryStore) ApplyCheckIn(_ context.Context, grant models.XPGrant, expectedVersion int64, streak int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[grant.WalletAddress]
	if !ok {
		return ErrNotFound
	}
	if identity.Version != expectedVersion {
		return ErrVersionConflict
	}
	checkedIn := at
	identity.LastCheckInAt = &checkedIn
	identity.CheckInStreak = streak
	s.credit(identity, grant, at)
	return nil
}

func (s *MemoryStore) ApplyXPAdjustment(_ context.Context, wallet string, event models.XPEvent) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[wallet]
	if !ok {
		return nil, ErrNotFound
	}
	if identity.XP+event.Amount < 0 {
		return nil, ErrNegativeXP
	}
	s.credit(identity, models.XPGrant{WalletAddress: wallet, Event: event}, event.CreatedAt)
	return cloneIdentity(identity), nil
}

func (s *MemoryStore) SetDisplayName(_ context.Context, wallet, name, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[wallet]
	if !ok {
		return ErrNotFound
	}
	for w, other := range s.identities {
		if w != wallet && other.DisplayNameKey != nil && *other.DisplayNameKey == key {
			return ErrDuplicateDisplayName
		}
	}
	identity.DisplayName = &name
	identity.DisplayNameKey = &key
	identity.Version++
	return nil
}

func (s *MemoryStore) SetRewardBoost(_ context.Context, wallet string, owns bool, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[wallet]
	if !ok {
		return ErrNotFound
	}
	identity.OwnsRewardBoostAsset = owns
	identity.BoostCheckedAt = &checkedAt
	identity.Version++
	return nil
}

func (s *MemoryStore) ListXPEvents(_ context.Context, wallet string, offset, limit int) ([]models.XPEvent, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.events[wallet]
	total := int64(len(all))
	out := make([]models.XPEvent, 0, limit)
	// newest first
	for i := len(all) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, total, nil
}

func (s *MemoryStore) TopByXP(_ context.Context, limit int) ([]models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]models.Identity, 0, len(s.identities))
	for _, identity := range s.identities {
		all = append(all, *cloneIdentity(identity))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].XP != all[j].XP {
			return all[i].XP > all[j].XP
		}
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].WalletAddress < all[j].WalletAddress
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) ListWallets(_ context.Context, after string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallets := make([]string, 0, len(s.identities))
	for w := range s.identities {
		if w > after {
			wallets = append(wallets, w)
		}
	}
	sort.Strings(wallets)
	if len(wallets) > limit {
		wallets = wallets[:limit]
	}
	return wallets, nil
}

func (s *MemoryStore) SaveChallenge(_ context.Context, challenge *models.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.challenges[challenge.Nonce] = *challenge
	return nil
}

func (s *MemoryStore) ConsumeChallenge(_ context.Context, nonce, wallet string) (*models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[nonce]
	if !ok || c.WalletAddress != wallet {
		return nil, ErrChallengeNotFound
	}
	delete(s.challenges, nonce)
	return &c, nil
}

func (s *MemoryStore) PurgeExpiredChallenges(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for nonce, c := range s.challenges {
		if !c.ExpiresAt.After(before) {
			delete(s.challenges, nonce)
			purged++
		}
	}
	return purged, nil
}

func (s *MemoryStore) Ping(context.Context) error  { return nil }
func (s *MemoryStore) Close(context.Context) error { return nil }
