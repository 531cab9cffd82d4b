package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"wallet-quest-ledger/metrics"
	"wallet-quest-ledger/models"
	"wallet-quest-ledger/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// BaseXPPerLevel scales the level curve: level n -> n+1 needs BaseXPPerLevel*n + floor(BaseXPPerLevel * n^1.2).
const BaseXPPerLevel = 100

// DefaultCheckInRetries bounds the optimistic check-in loop.
const DefaultCheckInRetries = 5

var displayNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,15}$`)

// xpForNextLevel returns the curve term for leaving currentLevel
func xpForNextLevel(currentLevel int) int64 {
	if currentLevel < 1 {
		currentLevel = 1
	}
	return int64(float64(BaseXPPerLevel) * math.Pow(float64(currentLevel), 1.2))
}

// levelThreshold is the total XP at which level+1 starts.
func levelThreshold(level int) int64 {
	return int64(BaseXPPerLevel)*int64(level) + xpForNextLevel(level)
}

// LevelForXP derives the level shown on a profile. Level is never stored.
func LevelForXP(xp int64) int {
	level := 1
	for xp >= levelThreshold(level) {
		level++
	}
	return level
}

func newXPEvent(eventType models.XPEventType, amount int64, description string, now time.Time) models.XPEvent {
	return models.XPEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		Amount:      amount,
		Description: description,
		CreatedAt:   now,
	}
}

// QuestResult is the outcome of a quest submission. AlreadyCompleted results
// are successes with XPAwarded == 0.
type QuestResult struct {
	QuestID          string `json:"quest_id"`
	XPAwarded        int64  `json:"xp_awarded"`
	TotalXP          int64  `json:"total_xp"`
	AlreadyCompleted bool   `json:"already_completed"`
}

type CheckInResult struct {
	XPAwarded int64 `json:"xp_awarded"`
	NewStreak int   `json:"new_streak"`
	TotalXP   int64 `json:"total_xp"`
}

// Profile is the client-facing projection of an Identity.
type Profile struct {
	WalletAddress        string     `json:"wallet_address"`
	DisplayName          *string    `json:"display_name,omitempty"`
	XP                   int64      `json:"xp"`
	Level                int        `json:"level"`
	NextLevelXP          int64      `json:"next_level_xp"`
	CompletedQuestIDs    []string   `json:"completed_quest_ids"`
	CheckInStreak        int        `json:"check_in_streak"`
	LastCheckInAt        *time.Time `json:"last_check_in_at,omitempty"`
	OwnsRewardBoostAsset bool       `json:"owns_reward_boost_asset"`
	Referrer             *string    `json:"referrer,omitempty"`
	ReferredCount        int64      `json:"referred_count"`
	XPFromReferrals      int64      `json:"xp_from_referrals"`
	CreatedAt            time.Time  `json:"created_at"`
}

func newProfile(identity *models.Identity) *Profile {
	level := LevelForXP(identity.XP)
	quests := identity.CompletedQuestIDs
	if quests == nil {
		quests = []string{}
	}
	return &Profile{
		WalletAddress:        identity.WalletAddress,
		DisplayName:          identity.DisplayName,
		XP:                   identity.XP,
		Level:                level,
		NextLevelXP:          levelThreshold(level),
		CompletedQuestIDs:    quests,
		CheckInStreak:        identity.CheckInStreak,
		LastCheckInAt:        identity.LastCheckInAt,
		OwnsRewardBoostAsset: identity.OwnsRewardBoostAsset,
		Referrer:             identity.Referrer,
		ReferredCount:        identity.ReferredCount,
		XPFromReferrals:      identity.XPFromReferrals,
		CreatedAt:            identity.CreatedAt,
	}
}

type XPHistoryPage struct {
	Events     []models.XPEvent `json:"events"`
	Page       int              `json:"page"`
	Size       int              `json:"size"`
	TotalItems int64            `json:"total_items"`
	TotalPages int              `json:"total_pages"`
}

// ProgressionService is the ledger: every XP-affecting operation goes through it.
type ProgressionService struct {
	Store        storage.Store
	Catalog      *QuestCatalog
	Balance      BalanceOracle
	RewardAssets RewardAssetOracle
	Logger       *zap.Logger
	Metrics      *metrics.Metrics

	Now               func() time.Time
	MaxCheckInRetries int
}

func NewProgressionService(store storage.Store, catalog *QuestCatalog, balance BalanceOracle, assets RewardAssetOracle, logger *zap.Logger, m *metrics.Metrics) *ProgressionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressionService{
		Store:             store,
		Catalog:           catalog,
		Balance:           balance,
		RewardAssets:      assets,
		Logger:            logger,
		Metrics:           m,
		Now:               time.Now,
		MaxCheckInRetries: DefaultCheckInRetries,
	}
}

func (s *ProgressionService) now() time.Time {
	return s.Now().UTC()
}

// storageError maps adapter errors onto the ledger taxonomy.
func storageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrIdentityNotFound
	case errors.Is(err, storage.ErrVersionConflict):
		return ErrStorageConflict
	case errors.Is(err, storage.ErrDuplicateDisplayName):
		return ErrDisplayNameTaken
	case errors.Is(err, storage.ErrNegativeXP):
		return ErrAdjustmentBelowZero
	}
	return err
}

func (s *ProgressionService) identity(ctx context.Context, wallet string) (*models.Identity, error) {
	identity, err := s.Store.GetIdentity(ctx, wallet)
	if err != nil {
		return nil, storageError(err)
	}
	return identity, nil
}

// EnsureIdentity returns the identity for wallet, creating it on first sight.
// referralCode is only honoured at creation and only when it names another,
// existing identity.
func (s *ProgressionService) EnsureIdentity(ctx context.Context, wallet, referralCode string) (*models.Identity, bool, error) {
	identity, err := s.Store.GetIdentity(ctx, wallet)
	if err == nil {
		return identity, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	now := s.now()
	fresh := &models.Identity{
		WalletAddress:     wallet,
		CompletedQuestIDs: []string{},
		Referrer:          s.resolveReferrer(ctx, wallet, referralCode),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	created, err := s.Store.CreateIdentity(ctx, fresh)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create identity: %w", err)
	}
	if created {
		s.Logger.Info("🆕 [LEDGER] identity created",
			zap.String("wallet", wallet),
			zap.Bool("referred", fresh.Referrer != nil))
	}

	identity, err = s.identity(ctx, wallet)
	if err != nil {
		return nil, false, err
	}
	return identity, created, nil
}

func (s *ProgressionService) resolveReferrer(ctx context.Context, wallet, code string) *string {
	code = strings.TrimSpace(code)
	if code == "" || code == wallet {
		return nil
	}
	if _, err := ParseWalletAddress(code); err != nil {
		s.Logger.Warn("[LEDGER] ignoring malformed referral code", zap.String("wallet", wallet))
		return nil
	}
	if _, err := s.Store.GetIdentity(ctx, code); err != nil {
		s.Logger.Warn("[LEDGER] ignoring unknown referrer", zap.String("wallet", wallet), zap.String("referrer", code), zap.Error(err))
		return nil
	}
	return &code
}

// CompleteQuest verifies and records a quest submission. Resubmitting a
// completed quest succeeds with zero XP and consults no oracle.
func (s *ProgressionService) CompleteQuest(ctx context.Context, wallet, questID, answer string) (*QuestResult, error) {
	quest, ok := s.Catalog.Lookup(questID)
	if !ok {
		return nil, ErrQuestNotFound
	}
	if quest.Verification.Kind() == models.VerificationSignature {
		return nil, ErrQuestNotSubmittable
	}

	identity, err := s.identity(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if identity.HasCompleted(quest.ID) {
		return &QuestResult{QuestID: quest.ID, TotalXP: identity.XP, AlreadyCompleted: true}, nil
	}

	if err := s.verify(ctx, identity, quest, answer); err != nil {
		s.Logger.Info("[LEDGER] quest rejected",
			zap.String("wallet", wallet),
			zap.String("quest", quest.ID),
			zap.Error(err))
		return nil, err
	}
	return s.award(ctx, identity, quest)
}

// CompleteSignatureQuest applies the wallet-verification quest. Returning users
// get the idempotent no-op.
func (s *ProgressionService) CompleteSignatureQuest(ctx context.Context, identity *models.Identity) (*QuestResult, error) {
	quest := s.Catalog.SignatureQuest()
	if identity.HasCompleted(quest.ID) {
		return &QuestResult{QuestID: quest.ID, TotalXP: identity.XP, AlreadyCompleted: true}, nil
	}
	return s.award(ctx, identity, quest)
}

// normalizeAnswer trims and case folds. Casers hold state, hence one per call.
func normalizeAnswer(answer string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(answer)))
}

func (s *ProgressionService) verify(ctx context.Context, identity *models.Identity, quest models.Quest, answer string) error {
	switch rule := quest.Verification.(type) {
	case models.ExactAnswerRule:
		if normalizeAnswer(answer) != normalizeAnswer(rule.Answer) {
			return ErrAnswerIncorrect
		}
	case models.LinkClickRule:
		if strings.TrimSpace(answer) != LinkClickedSentinel {
			return ErrAnswerIncorrect
		}
	case models.BalanceThresholdRule:
		if s.Balance == nil {
			return ErrOracleUnavailable
		}
		balance, err := s.Balance.Balance(ctx, identity.WalletAddress)
		if err != nil {
			if errors.Is(err, ErrOracleUnavailable) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
		}
		if balance < rule.MinBalance {
			return fmt.Errorf("%w: balance %g below %g", ErrAnswerIncorrect, balance, rule.MinBalance)
		}
	case models.SignatureRule:
		return ErrQuestNotSubmittable
	default:
		return fmt.Errorf("quest %s has no verification rule", quest.ID)
	}
	return nil
}

// award applies the boosted reward and its referral credit as one storage unit.
func (s *ProgressionService) award(ctx context.Context, identity *models.Identity, quest models.Quest) (*QuestResult, error) {
	now := s.now()
	finalXP := ApplyBoost(quest.XPReward, identity.OwnsRewardBoostAsset)
	grant := models.XPGrant{
		WalletAddress: identity.WalletAddress,
		Event:         newXPEvent(models.XPEventQuestCompletion, finalXP, fmt.Sprintf("Completed quest: %s", quest.Title), now),
		Referral:      referralCredit(identity, finalXP, now),
	}

	applied, err := s.Store.ApplyQuestCompletion(ctx, grant, quest.ID)
	if err != nil {
		return nil, storageError(err)
	}

	updated, err := s.identity(ctx, identity.WalletAddress)
	if err != nil {
		return nil, err
	}
	if !applied {
		// a concurrent submission won
		return &QuestResult{QuestID: quest.ID, TotalXP: updated.XP, AlreadyCompleted: true}, nil
	}

	s.Metrics.ObserveXP(string(models.XPEventQuestCompletion), finalXP)
	if grant.Referral != nil {
		s.Metrics.ObserveXP(string(models.XPEventReferralBonus), grant.Referral.Event.Amount)
	}
	s.Logger.Info("🎮 [LEDGER] quest completed",
		zap.String("wallet", identity.WalletAddress),
		zap.String("quest", quest.ID),
		zap.Int64("xp", finalXP),
		zap.Int64("total_xp", updated.XP))

	return &QuestResult{QuestID: quest.ID, XPAwarded: finalXP, TotalXP: updated.XP}, nil
}

// CheckIn records today's check-in. The read of the streak and the write of the
// new streak are tied together by the identity version; a lost race re-reads
// and re-evaluates, so a concurrent duplicate ends as ErrAlreadyCheckedInToday.
func (s *ProgressionService) CheckIn(ctx context.Context, wallet string) (*CheckInResult, error) {
	retries := s.MaxCheckInRetries
	if retries < 1 {
		retries = DefaultCheckInRetries
	}

	for attempt := 1; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		identity, err := s.identity(ctx, wallet)
		if err != nil {
			return nil, err
		}

		now := s.now()
		outcome, err := NextStreak(now, identity.LastCheckInAt, identity.CheckInStreak)
		if err != nil {
			s.Metrics.ObserveCheckIn("already_checked_in")
			return nil, err
		}

		finalXP := ApplyBoost(outcome.BaseXP, identity.OwnsRewardBoostAsset)
		grant := models.XPGrant{
			WalletAddress: wallet,
			Event:         newXPEvent(models.XPEventDailyCheckIn, finalXP, fmt.Sprintf("Daily check-in (day %d)", outcome.Streak), now),
			Referral:      referralCredit(identity, finalXP, now),
		}

		err = s.Store.ApplyCheckIn(ctx, grant, identity.Version, outcome.Streak, now)
		if err == nil {
			s.Metrics.ObserveCheckIn("ok")
			s.Metrics.ObserveXP(string(models.XPEventDailyCheckIn), finalXP)
			if grant.Referral != nil {
				s.Metrics.ObserveXP(string(models.XPEventReferralBonus), grant.Referral.Event.Amount)
			}
			s.Logger.Info("📅 [LEDGER] checked in",
				zap.String("wallet", wallet),
				zap.Int("streak", outcome.Streak),
				zap.Int64("xp", finalXP))
			return &CheckInResult{
				XPAwarded: finalXP,
				NewStreak: outcome.Streak,
				TotalXP:   identity.XP + finalXP,
			}, nil
		}
		if !errors.Is(err, storage.ErrVersionConflict) {
			return nil, storageError(err)
		}

		s.Metrics.ObserveConflict()
		s.Logger.Debug("[LEDGER] check-in version conflict, retrying",
			zap.String("wallet", wallet),
			zap.Int("attempt", attempt))
	}

	s.Metrics.ObserveCheckIn("conflict")
	return nil, ErrStorageConflict
}

// SetDisplayName validates and claims name for wallet. Uniqueness ignores case.
func (s *ProgressionService) SetDisplayName(ctx context.Context, wallet, name string) (*Profile, error) {
	if !displayNamePattern.MatchString(name) {
		return nil, ErrInvalidDisplayName
	}
	if err := s.Store.SetDisplayName(ctx, wallet, name, strings.ToLower(name)); err != nil {
		return nil, storageError(err)
	}
	return s.GetProfile(ctx, wallet)
}

// AdjustXP is the administrative correction path. It may lower xp, never below
// zero, and never produces a referral credit.
func (s *ProgressionService) AdjustXP(ctx context.Context, wallet string, delta int64, reason string) (*Profile, error) {
	if delta == 0 {
		return nil, ErrInvalidAdjustment
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Administrative adjustment"
	}

	event := newXPEvent(models.XPEventAdminAdjustment, delta, reason, s.now())
	identity, err := s.Store.ApplyXPAdjustment(ctx, wallet, event)
	if err != nil {
		return nil, storageError(err)
	}

	s.Logger.Warn("🛠️ [LEDGER] xp adjusted",
		zap.String("wallet", wallet),
		zap.Int64("delta", delta),
		zap.String("reason", reason),
		zap.Int64("total_xp", identity.XP))
	return newProfile(identity), nil
}

func (s *ProgressionService) GetProfile(ctx context.Context, wallet string) (*Profile, error) {
	identity, err := s.identity(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return newProfile(identity), nil
}

// GetXPHistory pages through the event log, newest first.
func (s *ProgressionService) GetXPHistory(ctx context.Context, wallet string, page, size int) (*XPHistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	if _, err := s.identity(ctx, wallet); err != nil {
		return nil, err
	}

	events, total, err := s.Store.ListXPEvents(ctx, wallet, (page-1)*size, size)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.XPEvent{}
	}
	return &XPHistoryPage{
		Events:     events,
		Page:       page,
		Size:       size,
		TotalItems: total,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
	}, nil
}

// RefreshRewardBoost re-queries the reward asset oracle and caches the result
// on the identity.
func (s *ProgressionService) RefreshRewardBoost(ctx context.Context, wallet string) (bool, error) {
	if s.RewardAssets == nil {
		return false, ErrOracleUnavailable
	}
	owns, err := s.RewardAssets.OwnsRewardAsset(ctx, wallet)
	if err != nil {
		if errors.Is(err, ErrOracleUnavailable) {
			return false, err
		}
		return false, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	if err := s.Store.SetRewardBoost(ctx, wallet, owns, s.now()); err != nil {
		return false, storageError(err)
	}
	return owns, nil
}

// Quests lists the catalog without answers.
func (s *ProgressionService) Quests() []QuestView {
	all := s.Catalog.All()
	out := make([]QuestView, 0, len(all))
	for _, q := range all {
		view := QuestView{
			ID:               q.ID,
			Title:            q.Title,
			XPReward:         q.XPReward,
			PathID:           q.PathID,
			Order:            q.Order,
			VerificationKind: q.Verification.Kind(),
		}
		if rule, ok := q.Verification.(models.BalanceThresholdRule); ok {
			minBalance := rule.MinBalance
			view.MinBalance = &minBalance
		}
		out = append(out, view)
	}
	return out
}

// QuestView is a quest as shown to clients; correct answers stay server side.
type QuestView struct {
	ID               string                  `json:"id"`
	Title            string                  `json:"title"`
	XPReward         int64                   `json:"xp_reward"`
	PathID           string                  `json:"path_id"`
	Order            int                     `json:"order"`
	VerificationKind models.VerificationKind `json:"verification_kind"`
	MinBalance       *float64                `json:"min_balance,omitempty"`
}
