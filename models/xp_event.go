package models

import "time"

// XPEventType classifies an entry of the XP event log
type XPEventType string

const (
	XPEventQuestCompletion XPEventType = "quest_completion"
	XPEventDailyCheckIn    XPEventType = "daily_check_in"
	XPEventReferralBonus   XPEventType = "referral_bonus"
	XPEventAdminAdjustment XPEventType = "admin_adjustment"
)

// XPEvent is an append-only log entry. Every change of Identity.XP has exactly one.
type XPEvent struct {
	Seq           uint        `gorm:"primaryKey;autoIncrement" json:"-" bson:"-"`
	ID            string      `gorm:"size:36;uniqueIndex;not null" json:"id" bson:"id"`
	WalletAddress string      `gorm:"size:64;not null;index" json:"-" bson:"-"`
	Type          XPEventType `gorm:"size:32;not null" json:"type" bson:"type"`
	Amount        int64       `gorm:"not null" json:"amount" bson:"amount"`
	Description   string      `gorm:"size:255" json:"description" bson:"description"`
	CreatedAt     time.Time   `gorm:"not null" json:"created_at" bson:"createdAt"`
}

// ReferralCredit is the secondary mutation applied to a referrer together with
// the XP gain that produced it.
type ReferralCredit struct {
	ReferrerWallet string
	Event          XPEvent
}

// XPGrant describes one XP gain for a wallet: the log entry to append (its Amount
// is the xp increment) and, optionally, the referral bonus it triggers.
type XPGrant struct {
	WalletAddress string
	Event         XPEvent
	Referral      *ReferralCredit
}
