package handlers

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-quest-ledger/middleware"
	"wallet-quest-ledger/services"
	"wallet-quest-ledger/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/mr-tron/base58"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecret     = "0123456789abcdef0123456789abcdef"
	testAdminToken = "admin-token"
)

type testApp struct {
	app    *fiber.App
	store  *storage.MemoryStore
	ledger *services.ProgressionService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := zap.NewNop()
	store := storage.NewMemoryStore()
	ledger := services.NewProgressionService(store, services.DefaultQuestCatalog(), nil, nil, logger, nil)
	sessions, err := services.NewSessionIssuer(testSecret)
	require.NoError(t, err)
	auth := services.NewAuthService(store, ledger, sessions, logger, nil, time.Minute)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	SetupSystemRoutes(app, store, prometheus.NewRegistry())
	SetupAuthRoutes(app, auth)
	SetupLeaderboardRoutes(app, services.NewLeaderboardService(store))
	SetupProgressionRoutes(app, ledger,
		middleware.SessionMiddleware(auth, logger),
		middleware.AdminTokenMiddleware(testAdminToken, logger))

	return &testApp{app: app, store: store, ledger: ledger}
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

// login runs the challenge/verify flow for a fresh wallet and returns its
// address and session token.
func (a *testApp) login(t *testing.T, referral string) (string, string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	wallet := base58.Encode(pub)

	status, challenge := a.do(t, http.MethodPost, "/auth/challenge", "", fiber.Map{"wallet_address": wallet})
	require.Equal(t, http.StatusOK, status)
	message := challenge["message"].(string)

	status, body := a.do(t, http.MethodPost, "/auth/verify", "", fiber.Map{
		"wallet_address": wallet,
		"message":        message,
		"signature":      base58.Encode(ed25519.Sign(priv, []byte(message))),
		"referral_code":  referral,
	})
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, true, body["new_identity"])
	return wallet, body["token"].(string)
}

func TestAuthFlow(t *testing.T) {
	a := newTestApp(t)
	wallet, token := a.login(t, "")

	status, profile := a.do(t, http.MethodGet, "/user/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, wallet, profile["wallet_address"])
	assert.Equal(t, float64(50), profile["xp"])
	assert.Equal(t, float64(1), profile["level"])
}

func TestAuthRoutes_Errors(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do(t, http.MethodPost, "/auth/challenge", "", fiber.Map{"wallet_address": "nope"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, services.ErrInvalidIdentityFormat.Error(), body["error"])

	status, _ = a.do(t, http.MethodPost, "/auth/verify", "", fiber.Map{"wallet_address": "nope"})
	assert.Equal(t, http.StatusBadRequest, status)

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	status, body = a.do(t, http.MethodPost, "/auth/verify", "", fiber.Map{
		"wallet_address": base58.Encode(pub),
		"message":        "Nonce: made-up",
		"signature":      "sig",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, services.ErrInvalidSignature.Error(), body["error"])
}

func TestSessionRequired(t *testing.T) {
	a := newTestApp(t)

	for _, token := range []string{"", "not-a-jwt"} {
		status, _ := a.do(t, http.MethodGet, "/user/profile", token, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		status, _ = a.do(t, http.MethodPost, "/quests/follow-on-x/complete", token, fiber.Map{"answer": "link_clicked"})
		assert.Equal(t, http.StatusUnauthorized, status)
	}
}

func TestQuestRoutes(t *testing.T) {
	a := newTestApp(t)
	_, token := a.login(t, "")

	status, body := a.do(t, http.MethodGet, "/quests", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["quests"], len(services.DefaultQuestCatalog().All()))

	status, body = a.do(t, http.MethodPost, "/quests/follow-on-x/complete", token, fiber.Map{"answer": services.LinkClickedSentinel})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(25), body["xp_awarded"])
	assert.Equal(t, float64(75), body["total_xp"])

	status, body = a.do(t, http.MethodPost, "/quests/follow-on-x/complete", token, fiber.Map{"answer": services.LinkClickedSentinel})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["already_completed"])

	status, _ = a.do(t, http.MethodPost, "/quests/what-is-a-block/complete", token, fiber.Map{"answer": "a cube"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = a.do(t, http.MethodPost, "/quests/nope/complete", token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = a.do(t, http.MethodPost, "/quests/verify-wallet/complete", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	// no oracle configured
	status, body = a.do(t, http.MethodPost, "/quests/hold-sol/complete", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, true, body["retryable"])
}

func TestUserRoutes(t *testing.T) {
	a := newTestApp(t)
	_, token := a.login(t, "")
	_, other := a.login(t, "")

	status, body := a.do(t, http.MethodPost, "/user/check-in", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["new_streak"])

	status, _ = a.do(t, http.MethodPost, "/user/check-in", token, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, body = a.do(t, http.MethodPut, "/user/display-name", token, fiber.Map{"display_name": "satoshi"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "satoshi", body["display_name"])

	status, _ = a.do(t, http.MethodPut, "/user/display-name", other, fiber.Map{"display_name": "satoshi"})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = a.do(t, http.MethodPut, "/user/display-name", other, fiber.Map{"display_name": "no spaces allowed"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = a.do(t, http.MethodGet, "/user/xp-history?page=1&size=1", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["total_items"])
	assert.Len(t, body["events"], 1)
}

func TestAdminRoutes(t *testing.T) {
	a := newTestApp(t)
	wallet, _ := a.login(t, "")

	adjust := fiber.Map{"wallet_address": wallet, "delta": 25, "reason": "bug bounty"}

	status, _ := a.do(t, http.MethodPost, "/admin/xp/adjust", "", adjust)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = a.do(t, http.MethodPost, "/admin/xp/adjust", "wrong", adjust)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := a.do(t, http.MethodPost, "/admin/xp/adjust", testAdminToken, adjust)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(75), body["profile"].(map[string]interface{})["xp"])

	status, _ = a.do(t, http.MethodPost, "/admin/xp/adjust", testAdminToken, fiber.Map{"wallet_address": wallet, "delta": -1000})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = a.do(t, http.MethodPost, "/admin/xp/adjust", testAdminToken, fiber.Map{"wallet_address": wallet, "delta": 0})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(t, http.MethodPost, "/admin/xp/adjust", testAdminToken, fiber.Map{"wallet_address": "bad", "delta": 1})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLeaderboardRoute(t *testing.T) {
	a := newTestApp(t)
	first, token := a.login(t, "")
	second, _ := a.login(t, "")
	status, _ := a.do(t, http.MethodPost, "/user/check-in", token, nil)
	require.Equal(t, http.StatusOK, status)

	status, body := a.do(t, http.MethodGet, "/leaderboard?limit=5", "", nil)
	require.Equal(t, http.StatusOK, status)
	rows := body["leaderboard"].([]interface{})
	require.Len(t, rows, 2)
	assert.Equal(t, first, rows[0].(map[string]interface{})["wallet_address"])
	assert.Equal(t, float64(1), rows[0].(map[string]interface{})["rank"])
	assert.Equal(t, second, rows[1].(map[string]interface{})["wallet_address"])
	assert.Equal(t, float64(2), rows[1].(map[string]interface{})["rank"])

	status, _ = a.do(t, http.MethodGet, "/leaderboard?limit=ten", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestSystemRoutes(t *testing.T) {
	a := newTestApp(t)
	status, body := a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	resp, err := a.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	down := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	SetupSystemRoutes(down, failingPinger{}, prometheus.NewRegistry())
	resp, err = down.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/wrapped", func(c *fiber.Ctx) error {
		return errors.Join(errors.New("step failed"), services.ErrStorageConflict)
	})
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.ErrTeapot })
	app.Get("/other", func(c *fiber.Ctx) error { return errors.New("boom") })

	for path, want := range map[string]int{
		"/wrapped": http.StatusServiceUnavailable,
		"/fiber":   http.StatusTeapot,
		"/other":   http.StatusInternalServerError,
		"/missing": http.StatusNotFound,
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, path)
	}
}
