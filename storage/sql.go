package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-quest-ledger/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLStore implements Store on gorm. Production runs it on PostgreSQL; the guards
// are plain SQL (unique index + ON CONFLICT DO NOTHING, version predicates) so any
// gorm dialect with those features works.
type SQLStore struct {
	DB *gorm.DB
}

// OpenPostgres connects to PostgreSQL and migrates the ledger tables.
func OpenPostgres(dsn string) (*SQLStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewSQLStore(db)
}

// NewSQLStore wraps an open gorm handle and runs AutoMigrate.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(
		&models.Identity{},
		&models.CompletedQuest{},
		&models.XPEvent{},
		&models.Challenge{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &SQLStore{DB: db}, nil
}

func (s *SQLStore) CreateIdentity(ctx context.Context, identity *models.Identity) (bool, error) {
	created := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(identity)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true

		if identity.Referrer == nil {
			return nil
		}
		return tx.Model(&models.Identity{}).
			Where("wallet_address = ?", *identity.Referrer).
			Updates(map[string]any{
				"referred_count": gorm.Expr("referred_count + 1"),
				"version":        gorm.Expr("version + 1"),
			}).Error
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *SQLStore) GetIdentity(ctx context.Context, wallet string) (*models.Identity, error) {
	var identity models.Identity
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("wallet_address = ?", wallet).First(&identity).Error; err != nil {
			return err
		}
		questIDs := []string{}
		if err := tx.Model(&models.CompletedQuest{}).
			Where("wallet_address = ?", wallet).
			Order("id ASC").
			Pluck("quest_id", &questIDs).Error; err != nil {
			return err
		}
		identity.CompletedQuestIDs = questIDs
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// credit increments the wallet's xp (plus any extra columns), appends the log
// entry and applies the referral credit. guard narrows the identity update; when
// it matches no row, credit fails so the surrounding transaction rolls back.
func (s *SQLStore) credit(tx *gorm.DB, grant models.XPGrant, guard func(*gorm.DB) *gorm.DB, extra map[string]any) error {
	updates := map[string]any{
		"xp":         gorm.Expr("xp + ?", grant.Event.Amount),
		"version":    gorm.Expr("version + 1"),
		"updated_at": grant.Event.CreatedAt,
	}
	for k, v := range extra {
		updates[k] = v
	}

	q := tx.Model(&models.Identity{}).Where("wallet_address = ?", grant.WalletAddress)
	if guard != nil {
		q = guard(q)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.Identity{}).Where("wallet_address = ?", grant.WalletAddress).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	event := grant.Event
	event.WalletAddress = grant.WalletAddress
	if err := tx.Create(&event).Error; err != nil {
		return err
	}

	if grant.Referral == nil {
		return nil
	}
	ref := grant.Referral
	res = tx.Model(&models.Identity{}).
		Where("wallet_address = ?", ref.ReferrerWallet).
		Updates(map[string]any{
			"xp":                gorm.Expr("xp + ?", ref.Event.Amount),
			"xp_from_referrals": gorm.Expr("xp_from_referrals + ?", ref.Event.Amount),
			"version":           gorm.Expr("version + 1"),
			"updated_at":        ref.Event.CreatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// referrer is a weak reference; nothing to credit
		return nil
	}
	refEvent := ref.Event
	refEvent.WalletAddress = ref.ReferrerWallet
	return tx.Create(&refEvent).Error
}

func (s *SQLStore) ApplyQuestCompletion(ctx context.Context, grant models.XPGrant, questID string) (bool, error) {
	applied := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.CompletedQuest{
			WalletAddress: grant.WalletAddress,
			QuestID:       questID,
			CompletedAt:   grant.Event.CreatedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := s.credit(tx, grant, nil, nil); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (s *SQLStore) ApplyCheckIn(ctx context.Context, grant models.XPGrant, expectedVersion int64, streak int, at time.Time) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		guard := func(q *gorm.DB) *gorm.DB { return q.Where("version = ?", expectedVersion) }
		return s.credit(tx, grant, guard, map[string]any{
			"check_in_streak":  streak,
			"last_check_in_at": at,
		})
	})
}

func (s *SQLStore) ApplyXPAdjustment(ctx context.Context, wallet string, event models.XPEvent) (*models.Identity, error) {
	grant := models.XPGrant{WalletAddress: wallet, Event: event}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		guard := func(q *gorm.DB) *gorm.DB { return q.Where("xp + ? >= 0", event.Amount) }
		err := s.credit(tx, grant, guard, nil)
		if errors.Is(err, ErrVersionConflict) {
			return ErrNegativeXP
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetIdentity(ctx, wallet)
}

func (s *SQLStore) SetDisplayName(ctx context.Context, wallet, name, key string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.Identity{}).
			Where("display_name_key = ? AND wallet_address <> ?", key, wallet).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrDuplicateDisplayName
		}

		res := tx.Model(&models.Identity{}).
			Where("wallet_address = ?", wallet).
			Updates(map[string]any{
				"display_name":     name,
				"display_name_key": key,
				"version":          gorm.Expr("version + 1"),
			})
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateDisplayName
		}
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *SQLStore) SetRewardBoost(ctx context.Context, wallet string, owns bool, checkedAt time.Time) error {
	res := s.DB.WithContext(ctx).Model(&models.Identity{}).
		Where("wallet_address = ?", wallet).
		Updates(map[string]any{
			"owns_reward_boost_asset": owns,
			"boost_checked_at":        checkedAt,
			"version":                 gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListXPEvents(ctx context.Context, wallet string, offset, limit int) ([]models.XPEvent, int64, error) {
	db := s.DB.WithContext(ctx)

	var total int64
	if err := db.Model(&models.XPEvent{}).Where("wallet_address = ?", wallet).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	events := []models.XPEvent{}
	err := db.Where("wallet_address = ?", wallet).
		Order("seq DESC").
		Offset(offset).
		Limit(limit).
		Find(&events).Error
	return events, total, err
}

func (s *SQLStore) TopByXP(ctx context.Context, limit int) ([]models.Identity, error) {
	var identities []models.Identity
	err := s.DB.WithContext(ctx).
		Order("xp DESC").
		Order("created_at ASC").
		Order("wallet_address ASC").
		Limit(limit).
		Find(&identities).Error
	return identities, err
}

func (s *SQLStore) ListWallets(ctx context.Context, after string, limit int) ([]string, error) {
	wallets := []string{}
	err := s.DB.WithContext(ctx).Model(&models.Identity{}).
		Where("wallet_address > ?", after).
		Order("wallet_address ASC").
		Limit(limit).
		Pluck("wallet_address", &wallets).Error
	return wallets, err
}

func (s *SQLStore) SaveChallenge(ctx context.Context, challenge *models.Challenge) error {
	return s.DB.WithContext(ctx).Create(challenge).Error
}

func (s *SQLStore) ConsumeChallenge(ctx context.Context, nonce, wallet string) (*models.Challenge, error) {
	var challenge models.Challenge
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("nonce = ? AND wallet_address = ?", nonce, wallet).First(&challenge).Error; err != nil {
			return err
		}
		// only the caller whose delete lands owns the challenge
		res := tx.Where("nonce = ?", nonce).Delete(&models.Challenge{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

func (s *SQLStore) PurgeExpiredChallenges(ctx context.Context, before time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Where("expires_at <= ?", before).Delete(&models.Challenge{})
	return res.RowsAffected, res.Error
}

func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLStore) Close(context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
