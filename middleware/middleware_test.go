package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-quest-ledger/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubAuthenticator map[string]error

func (s stubAuthenticator) Authenticate(token string) (*services.Session, error) {
	err, ok := s[token]
	if !ok {
		return nil, services.ErrSessionInvalid
	}
	if err != nil {
		return nil, err
	}
	return &services.Session{WalletAddress: "wallet-" + token, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func statusOf(err error) int {
	switch err {
	case services.ErrSessionExpired, services.ErrSessionInvalid:
		return fiber.StatusUnauthorized
	}
	return fiber.StatusInternalServerError
}

func TestSessionMiddleware(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(statusOf(err)).SendString(err.Error())
		},
	})
	auth := stubAuthenticator{"good": nil, "old": services.ErrSessionExpired}
	app.Get("/me", SessionMiddleware(auth, zap.NewNop()), func(c *fiber.Ctx) error {
		return c.SendString(WalletAddress(c))
	})

	cases := []struct {
		header string
		status int
	}{
		{"Bearer good", fiber.StatusOK},
		{"Bearer old", fiber.StatusUnauthorized},
		{"Bearer unknown", fiber.StatusUnauthorized},
		{"Bearer ", fiber.StatusUnauthorized},
		{"good", fiber.StatusUnauthorized},
		{"", fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, tc.header)
	}
}

func TestAdminTokenMiddleware(t *testing.T) {
	newApp := func(token string) *fiber.App {
		app := fiber.New()
		app.Post("/admin", AdminTokenMiddleware(token, zap.NewNop()), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusNoContent)
		})
		return app
	}
	call := func(app *fiber.App, header string) int {
		req := httptest.NewRequest(http.MethodPost, "/admin", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	app := newApp("s3cret")
	assert.Equal(t, fiber.StatusNoContent, call(app, "Bearer s3cret"))
	assert.Equal(t, fiber.StatusUnauthorized, call(app, "Bearer nope"))
	assert.Equal(t, fiber.StatusUnauthorized, call(app, ""))

	disabled := newApp("")
	assert.Equal(t, fiber.StatusServiceUnavailable, call(disabled, "Bearer "))
	assert.Equal(t, fiber.StatusServiceUnavailable, call(disabled, "Bearer anything"))
}
