package models

import (
	"time"
)

// Identity is the progression record for one wallet (denormalized for the hot paths:
// profile reads, leaderboard sorting and the conditional updates of the ledger).
type Identity struct {
	WalletAddress string `gorm:"primaryKey;size:64" json:"wallet_address" bson:"_id"`

	DisplayName    *string `gorm:"size:15" json:"display_name,omitempty" bson:"displayName,omitempty"`
	DisplayNameKey *string `gorm:"size:15;uniqueIndex" json:"-" bson:"displayNameKey,omitempty"` // lower-cased, collision guard

	// Core progression
	XP                int64    `gorm:"not null;default:0;index" json:"xp" bson:"xp"`
	CompletedQuestIDs []string `gorm:"-" json:"completed_quest_ids" bson:"completedQuestIds"`

	// Daily check-in
	CheckInStreak int        `gorm:"not null;default:0" json:"check_in_streak" bson:"checkInStreak"`
	LastCheckInAt *time.Time `json:"last_check_in_at,omitempty" bson:"lastCheckInAt,omitempty"`

	// Cached from the reward asset oracle
	OwnsRewardBoostAsset bool       `gorm:"not null;default:false" json:"owns_reward_boost_asset" bson:"ownsRewardBoostAsset"`
	BoostCheckedAt       *time.Time `json:"-" bson:"boostCheckedAt,omitempty"`

	// Referral graph. Referrer is a lookup-only back reference.
	Referrer        *string `gorm:"size:64;index" json:"referrer,omitempty" bson:"referrer,omitempty"`
	ReferredCount   int64   `gorm:"not null;default:0" json:"referred_count" bson:"referredCount"`
	XPFromReferrals int64   `gorm:"not null;default:0" json:"xp_from_referrals" bson:"xpFromReferrals"`

	// Version is bumped by every ledger mutation; check-ins use it for optimistic concurrency.
	Version int64 `gorm:"not null;default:0" json:"-" bson:"version"`

	CreatedAt time.Time `gorm:"index" json:"created_at" bson:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" bson:"updatedAt"`
}

// HasCompleted reports whether questID is already in the completed set.
func (i *Identity) HasCompleted(questID string) bool {
	for _, id := range i.CompletedQuestIDs {
		if id == questID {
			return true
		}
	}
	return false
}

// CompletedQuest is one member of an identity's completed-quest set. The composite
// unique index is what makes quest completion idempotent in SQL storage.
type CompletedQuest struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	WalletAddress string    `gorm:"size:64;not null;uniqueIndex:ux_wallet_quest,priority:1"`
	QuestID       string    `gorm:"size:64;not null;uniqueIndex:ux_wallet_quest,priority:2"`
	CompletedAt   time.Time `gorm:"not null"`
}
