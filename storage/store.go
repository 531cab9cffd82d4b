// Package storage holds the storage adapters behind the progression ledger.
//
// A Store is opened once at process start, shared by every request and closed at
// shutdown. Every mutation is applied as one atomic unit: either all of its
// effects (xp, set membership, log entry, referral credit) land, or none do.
package storage

import (
	"context"
	"errors"
	"time"

	"wallet-quest-ledger/models"
)

var (
	ErrNotFound             = errors.New("storage: record not found")
	ErrVersionConflict      = errors.New("storage: version conflict")
	ErrDuplicateDisplayName = errors.New("storage: display name already taken")
	ErrChallengeNotFound    = errors.New("storage: challenge not found")
	ErrNegativeXP           = errors.New("storage: adjustment would make xp negative")
)

// Store is the storage adapter consumed by the services.
type Store interface {
	// CreateIdentity inserts the identity if its wallet is unseen. When inserted
	// with a referrer, the referrer's referred count is incremented in the same unit.
	CreateIdentity(ctx context.Context, identity *models.Identity) (created bool, err error)
	GetIdentity(ctx context.Context, wallet string) (*models.Identity, error)

	// ApplyQuestCompletion records questID and the grant only if questID is not
	// already completed. applied is false for the idempotent no-op.
	ApplyQuestCompletion(ctx context.Context, grant models.XPGrant, questID string) (applied bool, err error)
	// ApplyCheckIn applies the grant and the new streak only if the identity is
	// still at expectedVersion; otherwise it returns ErrVersionConflict.
	ApplyCheckIn(ctx context.Context, grant models.XPGrant, expectedVersion int64, streak int, at time.Time) error
	// ApplyXPAdjustment adds event.Amount (possibly negative) to xp, refusing with
	// ErrNegativeXP when the result would drop below zero.
	ApplyXPAdjustment(ctx context.Context, wallet string, event models.XPEvent) (*models.Identity, error)

	SetDisplayName(ctx context.Context, wallet, name, key string) error
	SetRewardBoost(ctx context.Context, wallet string, owns bool, checkedAt time.Time) error

	ListXPEvents(ctx context.Context, wallet string, offset, limit int) ([]models.XPEvent, int64, error)
	// TopByXP orders by xp desc, then created_at asc, then wallet asc.
	TopByXP(ctx context.Context, limit int) ([]models.Identity, error)
	// ListWallets pages through wallets in ascending order, strictly after `after`.
	ListWallets(ctx context.Context, after string, limit int) ([]string, error)

	SaveChallenge(ctx context.Context, challenge *models.Challenge) error
	// ConsumeChallenge removes and returns the challenge for nonce if it was issued
	// to wallet. A second call for the same nonce returns ErrChallengeNotFound.
	ConsumeChallenge(ctx context.Context, nonce, wallet string) (*models.Challenge, error)
	PurgeExpiredChallenges(ctx context.Context, before time.Time) (int64, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
