package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-quest-ledger/metrics"
	"wallet-quest-ledger/models"
	"wallet-quest-ledger/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultChallengeTTL is how long an issued challenge may be signed and submitted.
const DefaultChallengeTTL = 5 * time.Minute

// AuthState is a step of the login flow. Terminal states are StateSessionIssued
// and StateRejected.
type AuthState string

const (
	StateAwaitingSignature AuthState = "AWAITING_SIGNATURE"
	StateVerified          AuthState = "VERIFIED"
	StateSessionIssued     AuthState = "SESSION_ISSUED"
	StateRejected          AuthState = "REJECTED"
)

const noncePrefix = "Nonce: "

// ChallengeMessage is the exact text a wallet signs.
func ChallengeMessage(wallet, nonce string, issuedAt time.Time) string {
	return fmt.Sprintf("Sign this message to prove you own wallet %s.\n\n%s%s\nIssued At: %s",
		wallet, noncePrefix, nonce, issuedAt.UTC().Format(time.RFC3339))
}

func nonceFromMessage(message string) string {
	for _, line := range strings.Split(message, "\n") {
		if strings.HasPrefix(line, noncePrefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, noncePrefix))
		}
	}
	return ""
}

type AuthRequest struct {
	WalletAddress string
	Message       string
	Signature     string
	ReferralCode  string
}

type AuthResult struct {
	Token          string       `json:"token"`
	ExpiresAt      time.Time    `json:"expires_at"`
	NewIdentity    bool         `json:"new_identity"`
	SignatureQuest *QuestResult `json:"signature_quest"`
	Profile        *Profile     `json:"profile"`
}

// AuthService runs the challenge / signature / session flow and hands verified
// wallets to the ledger.
type AuthService struct {
	Store        storage.Store
	Ledger       *ProgressionService
	Sessions     *SessionIssuer
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	ChallengeTTL time.Duration
	Now          func() time.Time
}

func NewAuthService(store storage.Store, ledger *ProgressionService, sessions *SessionIssuer, logger *zap.Logger, m *metrics.Metrics, challengeTTL time.Duration) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if challengeTTL <= 0 {
		challengeTTL = DefaultChallengeTTL
	}
	return &AuthService{
		Store:        store,
		Ledger:       ledger,
		Sessions:     sessions,
		Logger:       logger,
		Metrics:      m,
		ChallengeTTL: challengeTTL,
		Now:          time.Now,
	}
}

// IssueChallenge creates a single-use challenge for wallet.
func (s *AuthService) IssueChallenge(ctx context.Context, wallet string) (*models.Challenge, error) {
	wallet = strings.TrimSpace(wallet)
	if _, err := ParseWalletAddress(wallet); err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	nonce := uuid.NewString()
	challenge := &models.Challenge{
		Nonce:         nonce,
		WalletAddress: wallet,
		Message:       ChallengeMessage(wallet, nonce, now),
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.ChallengeTTL),
	}
	if err := s.Store.SaveChallenge(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to save challenge: %w", err)
	}

	s.Logger.Debug("[AUTH] challenge issued",
		zap.String("wallet", wallet),
		zap.String("state", string(StateAwaitingSignature)))
	return challenge, nil
}

func (s *AuthService) reject(wallet, reason string) error {
	s.Metrics.ObserveAuth("rejected")
	s.Logger.Info("🚫 [AUTH] verification rejected",
		zap.String("wallet", wallet),
		zap.String("state", string(StateRejected)),
		zap.String("reason", reason))
	return ErrInvalidSignature
}

// VerifyAndAuthenticate checks a signed challenge and issues a session. The
// challenge is consumed before the signature is checked, so it is spent by
// any attempt, successful or not.
func (s *AuthService) VerifyAndAuthenticate(ctx context.Context, req AuthRequest) (*AuthResult, error) {
	wallet := strings.TrimSpace(req.WalletAddress)
	if _, err := ParseWalletAddress(wallet); err != nil {
		s.Metrics.ObserveAuth("invalid_identity")
		return nil, err
	}

	nonce := nonceFromMessage(req.Message)
	if nonce == "" {
		return nil, s.reject(wallet, "no nonce in message")
	}
	challenge, err := s.Store.ConsumeChallenge(ctx, nonce, wallet)
	if errors.Is(err, storage.ErrChallengeNotFound) {
		return nil, s.reject(wallet, "unknown or spent challenge")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if challenge.Expired(s.Now().UTC()) {
		return nil, s.reject(wallet, "challenge expired")
	}
	if challenge.Message != req.Message {
		return nil, s.reject(wallet, "message does not match challenge")
	}

	sig, ok := DecodeSignature(req.Signature)
	if !ok {
		return nil, s.reject(wallet, "malformed signature")
	}
	if !VerifySignature(wallet, []byte(req.Message), sig) {
		return nil, s.reject(wallet, "signature mismatch")
	}

	identity, created, err := s.Ledger.EnsureIdentity(ctx, wallet, req.ReferralCode)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("🔐 [AUTH] wallet verified",
		zap.String("wallet", wallet),
		zap.String("state", string(StateVerified)),
		zap.Bool("new_identity", created))

	// best effort: a stale boost flag does not fail the login
	if s.Ledger.RewardAssets != nil {
		if _, err := s.Ledger.RefreshRewardBoost(ctx, wallet); err != nil {
			s.Logger.Warn("[AUTH] reward boost refresh failed", zap.String("wallet", wallet), zap.Error(err))
		} else if identity, err = s.Ledger.identity(ctx, wallet); err != nil {
			return nil, err
		}
	}

	questResult, err := s.Ledger.CompleteSignatureQuest(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to apply wallet verification quest: %w", err)
	}

	token, expiresAt, err := s.Sessions.Issue(wallet)
	if err != nil {
		return nil, err
	}
	profile, err := s.Ledger.GetProfile(ctx, wallet)
	if err != nil {
		return nil, err
	}

	s.Metrics.ObserveAuth("ok")
	s.Logger.Info("✅ [AUTH] session issued",
		zap.String("wallet", wallet),
		zap.String("state", string(StateSessionIssued)),
		zap.Time("expires_at", expiresAt))

	return &AuthResult{
		Token:          token,
		ExpiresAt:      expiresAt,
		NewIdentity:    created,
		SignatureQuest: questResult,
		Profile:        profile,
	}, nil
}

// Authenticate validates a session token.
func (s *AuthService) Authenticate(token string) (*Session, error) {
	return s.Sessions.Parse(token)
}
