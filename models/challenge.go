package models

import "time"

// Challenge is a one-time message issued for a wallet. It lives only until it is
// consumed by a verification attempt or expires.
type Challenge struct {
	Nonce         string    `gorm:"primaryKey;size:36" json:"nonce" bson:"_id"`
	WalletAddress string    `gorm:"size:64;not null;index" json:"wallet_address" bson:"walletAddress"`
	Message       string    `gorm:"type:text;not null" json:"message" bson:"message"`
	IssuedAt      time.Time `gorm:"not null" json:"issued_at" bson:"issuedAt"`
	ExpiresAt     time.Time `gorm:"not null;index" json:"expires_at" bson:"expiresAt"`
}

// Expired reports whether the challenge can no longer be used at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// LeaderboardEntry is one ranked row of the XP leaderboard
type LeaderboardEntry struct {
	Rank          int     `json:"rank"`
	WalletAddress string  `json:"wallet_address"`
	DisplayName   *string `json:"display_name,omitempty"`
	XP            int64   `json:"xp"`
}
