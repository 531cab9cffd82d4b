package services

import (
	"fmt"
	"time"

	"wallet-quest-ledger/models"
)

// ReferralBonus is the referrer's share of a referred gain: 1% rounded half up,
// never less than 1 XP for a positive gain.
func ReferralBonus(gainedXP int64) int64 {
	if gainedXP <= 0 {
		return 0
	}
	bonus := (gainedXP + 50) / 100
	if bonus < 1 {
		bonus = 1
	}
	return bonus
}

// referralCredit builds the referrer's side of a gain, or nil when the identity
// was not referred. The credit itself never produces another credit.
func referralCredit(identity *models.Identity, gainedXP int64, now time.Time) *models.ReferralCredit {
	if identity.Referrer == nil || *identity.Referrer == "" {
		return nil
	}
	bonus := ReferralBonus(gainedXP)
	if bonus == 0 {
		return nil
	}
	return &models.ReferralCredit{
		ReferrerWallet: *identity.Referrer,
		Event: newXPEvent(
			models.XPEventReferralBonus,
			bonus,
			fmt.Sprintf("Referral bonus from %s", identity.WalletAddress),
			now,
		),
	}
}
