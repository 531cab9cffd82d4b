package services

import (
	"context"
	"sort"

	"wallet-quest-ledger/models"
	"wallet-quest-ledger/storage"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

type LeaderboardService struct {
	Store storage.Store
}

func NewLeaderboardService(store storage.Store) *LeaderboardService {
	return &LeaderboardService{Store: store}
}

// GetLeaderboard returns the top identities by XP. limit < 1 selects the
// default; larger than MaxLeaderboardLimit is clamped.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit < 1 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}
	identities, err := s.Store.TopByXP(ctx, limit)
	if err != nil {
		return nil, err
	}
	return RankIdentities(identities), nil
}

// RankIdentities orders by xp desc, then creation time, then wallet, and
// assigns dense 1-based ranks: equal XP shares a rank, the next XP gets rank+1.
func RankIdentities(identities []models.Identity) []models.LeaderboardEntry {
	sorted := append([]models.Identity(nil), identities...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].XP != sorted[j].XP {
			return sorted[i].XP > sorted[j].XP
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].WalletAddress < sorted[j].WalletAddress
	})

	entries := make([]models.LeaderboardEntry, 0, len(sorted))
	rank := 0
	for i, identity := range sorted {
		if i == 0 || identity.XP != sorted[i-1].XP {
			rank++
		}
		entries = append(entries, models.LeaderboardEntry{
			Rank:          rank,
			WalletAddress: identity.WalletAddress,
			DisplayName:   identity.DisplayName,
			XP:            identity.XP,
		})
	}
	return entries
}
