package middleware

import (
	"strings"

	"wallet-quest-ledger/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// WalletAddressKey is the fiber local holding the authenticated wallet.
const WalletAddressKey = "wallet_address"

// SessionAuthenticator validates session tokens.
type SessionAuthenticator interface {
	Authenticate(token string) (*services.Session, error)
}

// SessionMiddleware requires "Authorization: Bearer <session token>" and stores
// the session's wallet in c.Locals(WalletAddressKey). Failures are returned as
// errors for the app's error handler to render.
func SessionMiddleware(auth SessionAuthenticator, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			return services.ErrSessionInvalid
		}

		session, err := auth.Authenticate(token)
		if err != nil {
			logger.Debug("[SESSION] rejected", zap.String("path", c.Path()), zap.Error(err))
			return err
		}

		c.Locals(WalletAddressKey, session.WalletAddress)
		return c.Next()
	}
}

// WalletAddress returns the wallet set by SessionMiddleware.
func WalletAddress(c *fiber.Ctx) string {
	wallet, _ := c.Locals(WalletAddressKey).(string)
	return wallet
}
