package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// SessionTTL is the fixed validity window of a session credential.
const SessionTTL = 7 * 24 * time.Hour

const minSecretLength = 32

// Session is a validated session credential.
type Session struct {
	WalletAddress string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// SessionIssuer mints and checks HS256 session tokens. Nothing is stored server
// side: validity is the signature plus the expiry.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionIssuer(secret string) (*SessionIssuer, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", minSecretLength)
	}
	return &SessionIssuer{secret: []byte(secret), ttl: SessionTTL, now: time.Now}, nil
}

// Issue signs a credential for wallet.
func (s *SessionIssuer) Issue(wallet string) (string, time.Time, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   wallet,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session: %w", err)
	}
	return token, expiresAt, nil
}

// Parse validates a credential.
func (s *SessionIssuer) Parse(token string) (*Session, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		// expired with nothing else wrong; a forged token stays invalid
		if errors.As(err, &ve) && ve.Errors == jwt.ValidationErrorExpired {
			return nil, ErrSessionExpired
		}
		return nil, ErrSessionInvalid
	}
	if claims.ExpiresAt == nil || claims.Subject == "" {
		return nil, ErrSessionInvalid
	}
	if _, err := ParseWalletAddress(claims.Subject); err != nil {
		return nil, ErrSessionInvalid
	}

	session := &Session{WalletAddress: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	return session, nil
}
